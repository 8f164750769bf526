package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "bloodlink/pkg/domain-errors"
)

func ptr(s string) *string { return &s }

func TestCreateRequestInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateRequestInput)
		wantErr string
	}{
		{"valid", func(*CreateRequestInput) {}, ""},
		{"missing hospital", func(in *CreateRequestInput) { in.HospitalName = "" }, "hospital_name is required"},
		{"bad blood group", func(in *CreateRequestInput) { in.RecipientBloodGroup = "Z" }, "recipient_blood_group must be one of A+ A- B+ B- AB+ AB- O+ O-"},
		{"bad date", func(in *CreateRequestInput) { in.DonationDate = "10/06/2025" }, "donation_date must be YYYY-MM-DD"},
		{"bad time", func(in *CreateRequestInput) { in.DonationTime = "2pm" }, "donation_time must be HH:MM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			in.Normalize()
			err := in.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tt.wantErr, dErrors.MessageOf(err))
		})
	}
}

func TestUpdateRequestInput(t *testing.T) {
	t.Run("empty update rejected", func(t *testing.T) {
		require.Error(t, (&UpdateRequestInput{}).Validate())
	})

	t.Run("message may be cleared", func(t *testing.T) {
		in := &UpdateRequestInput{RequestMessage: ptr("  ")}
		in.Normalize()
		require.NoError(t, in.Validate())
	})

	t.Run("other fields may not be cleared", func(t *testing.T) {
		in := &UpdateRequestInput{HospitalName: ptr("")}
		require.Error(t, in.Validate())
	})

	t.Run("blood group is parsed", func(t *testing.T) {
		in := &UpdateRequestInput{RecipientBloodGroup: ptr("b+")}
		in.Normalize()
		require.NoError(t, in.Validate())
		u := in.ToUpdate()
		require.NotNil(t, u.RecipientBloodGroup)
		assert.Equal(t, "B+", string(*u.RecipientBloodGroup))
	})
}

func TestClaimInput(t *testing.T) {
	in := &ClaimInput{DonorName: " B ", DonorEmail: " B@X.com"}
	in.Normalize()
	require.NoError(t, in.Validate())
	assert.Equal(t, Donor{Name: "B", Email: "b@x.com"}, in.Donor())

	missing := &ClaimInput{DonorEmail: "b@x.com"}
	require.Error(t, missing.Validate())
}

func TestSetStatusInput(t *testing.T) {
	in := &SetStatusInput{Status: "DONE"}
	in.Normalize()
	require.NoError(t, in.Validate())

	claim := &SetStatusInput{Status: StatusInProgress}
	err := claim.Validate()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
