package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
)

var testTime = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func strPtr(s string) *string { return &s }

func TestRegisterAccountRequest(t *testing.T) {
	t.Run("normalizes email and accepts minimal body", func(t *testing.T) {
		req := &RegisterAccountRequest{Email: "  A@X.com "}
		req.Normalize()
		require.NoError(t, req.Validate())
		assert.Equal(t, "a@x.com", req.Email)
		assert.Equal(t, id.BloodGroup(""), req.ParsedBloodGroup())
	})

	t.Run("rejects invalid blood group", func(t *testing.T) {
		req := &RegisterAccountRequest{Email: "a@x.com", BloodGroup: "C+"}
		req.Normalize()
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects non-http avatar", func(t *testing.T) {
		req := &RegisterAccountRequest{Email: "a@x.com", AvatarURL: "javascript:alert(1)"}
		require.Error(t, req.Validate())
	})

	t.Run("parses lower-case blood group", func(t *testing.T) {
		req := &RegisterAccountRequest{Email: "a@x.com", BloodGroup: "ab-"}
		req.Normalize()
		require.NoError(t, req.Validate())
		assert.Equal(t, id.BloodGroupABNeg, req.ParsedBloodGroup())
	})
}

func TestUpdateProfileRequest(t *testing.T) {
	t.Run("empty body is rejected", func(t *testing.T) {
		req := &UpdateProfileRequest{}
		require.Error(t, req.Validate())
	})

	t.Run("only named fields are carried", func(t *testing.T) {
		req := &UpdateProfileRequest{District: strPtr(" Dhaka "), BloodGroup: strPtr("o+")}
		req.Normalize()
		require.NoError(t, req.Validate())

		u := req.ToUpdate()
		require.NotNil(t, u.District)
		assert.Equal(t, "Dhaka", *u.District)
		require.NotNil(t, u.BloodGroup)
		assert.Equal(t, id.BloodGroupOPos, *u.BloodGroup)
		assert.Nil(t, u.Name)
		assert.Nil(t, u.AvatarURL)
	})

	t.Run("blank name is rejected", func(t *testing.T) {
		req := &UpdateProfileRequest{Name: strPtr("   ")}
		req.Normalize()
		require.Error(t, req.Validate())
	})
}

func TestStatusAndRoleRequests(t *testing.T) {
	status := &UpdateStatusRequest{Status: " Blocked "}
	status.Normalize()
	require.NoError(t, status.Validate())
	assert.Equal(t, AccountStatusBlocked, status.Status)

	require.Error(t, (&UpdateStatusRequest{Status: "deleted"}).Validate())

	role := &UpdateRoleRequest{Role: "ADMIN"}
	role.Normalize()
	require.NoError(t, role.Validate())
	assert.Equal(t, RoleAdmin, role.Role)

	require.Error(t, (&UpdateRoleRequest{Role: "superuser"}).Validate())
}

func TestProfileUpdateApply(t *testing.T) {
	acc, err := NewAccount(id.NewAccountID(), "a@x.com", "A", testTime)
	require.NoError(t, err)
	assert.Equal(t, RoleDonor, acc.Role)
	assert.Equal(t, AccountStatusActive, acc.Status)

	name := "Ayesha"
	ProfileUpdate{Name: &name}.Apply(acc, testTime.Add(1))
	assert.Equal(t, "Ayesha", acc.Name)
	assert.Equal(t, testTime.Add(1), acc.UpdatedAt)
	assert.Equal(t, testTime, acc.CreatedAt)
}
