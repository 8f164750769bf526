package models

import (
	"net/url"
	"strings"

	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/email"
)

type RegisterAccountRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	AvatarURL  string `json:"avatar_url"`
	District   string `json:"district"`
	Upazila    string `json:"upazila"`
	BloodGroup string `json:"blood_group"`
}

func (r *RegisterAccountRequest) Normalize() {
	if r == nil {
		return
	}
	r.Email = email.Normalize(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	r.AvatarURL = strings.TrimSpace(r.AvatarURL)
	r.District = strings.TrimSpace(r.District)
	r.Upazila = strings.TrimSpace(r.Upazila)
	r.BloodGroup = strings.TrimSpace(r.BloodGroup)
}

// Follows validation order: Size -> Required -> Syntax -> Semantic.
func (r *RegisterAccountRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validateProfileSizes(r.Name, r.AvatarURL, r.District, r.Upazila); err != nil {
		return err
	}
	if _, err := email.Parse(r.Email); err != nil {
		return err
	}
	if err := validateAvatarURL(r.AvatarURL); err != nil {
		return err
	}
	if r.BloodGroup != "" {
		if _, err := id.ParseBloodGroup(r.BloodGroup); err != nil {
			return dErrors.New(dErrors.CodeValidation, "blood_group must be one of A+ A- B+ B- AB+ AB- O+ O-")
		}
	}
	return nil
}

// ParsedBloodGroup returns the validated blood group, or "" when none was given.
func (r *RegisterAccountRequest) ParsedBloodGroup() id.BloodGroup {
	g, _ := id.ParseBloodGroup(r.BloodGroup)
	return g
}

// UpdateProfileRequest carries only the fields the caller wants to change.
type UpdateProfileRequest struct {
	Name       *string `json:"name"`
	AvatarURL  *string `json:"avatar_url"`
	District   *string `json:"district"`
	Upazila    *string `json:"upazila"`
	BloodGroup *string `json:"blood_group"`
}

func (r *UpdateProfileRequest) Normalize() {
	if r == nil {
		return
	}
	for _, f := range []*string{r.Name, r.AvatarURL, r.District, r.Upazila, r.BloodGroup} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}

func (r *UpdateProfileRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validateProfileSizes(deref(r.Name), deref(r.AvatarURL), deref(r.District), deref(r.Upazila)); err != nil {
		return err
	}
	if r.Name != nil && *r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name cannot be empty")
	}
	if r.AvatarURL != nil {
		if err := validateAvatarURL(*r.AvatarURL); err != nil {
			return err
		}
	}
	if r.BloodGroup != nil {
		if _, err := id.ParseBloodGroup(*r.BloodGroup); err != nil {
			return dErrors.New(dErrors.CodeValidation, "blood_group must be one of A+ A- B+ B- AB+ AB- O+ O-")
		}
	}
	if r.ToUpdate().IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "at least one field is required")
	}
	return nil
}

// ToUpdate converts the validated request into a ProfileUpdate.
func (r *UpdateProfileRequest) ToUpdate() ProfileUpdate {
	u := ProfileUpdate{
		Name:      r.Name,
		AvatarURL: r.AvatarURL,
		District:  r.District,
		Upazila:   r.Upazila,
	}
	if r.BloodGroup != nil {
		g, err := id.ParseBloodGroup(*r.BloodGroup)
		if err == nil {
			u.BloodGroup = &g
		}
	}
	return u
}

type UpdateStatusRequest struct {
	Status AccountStatus `json:"status"`
}

func (r *UpdateStatusRequest) Normalize() {
	if r == nil {
		return
	}
	r.Status = AccountStatus(strings.ToLower(strings.TrimSpace(string(r.Status))))
}

func (r *UpdateStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	if !r.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "status must be 'active' or 'blocked'")
	}
	return nil
}

type UpdateRoleRequest struct {
	Role Role `json:"role"`
}

func (r *UpdateRoleRequest) Normalize() {
	if r == nil {
		return
	}
	r.Role = Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
}

func (r *UpdateRoleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Role == "" {
		return dErrors.New(dErrors.CodeValidation, "role is required")
	}
	if !r.Role.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "role must be 'donor', 'volunteer' or 'admin'")
	}
	return nil
}

func validateProfileSizes(name, avatarURL, district, upazila string) error {
	if len(name) > 128 {
		return dErrors.New(dErrors.CodeValidation, "name must be 128 characters or less")
	}
	if len(avatarURL) > 2048 {
		return dErrors.New(dErrors.CodeValidation, "avatar_url must be 2048 characters or less")
	}
	if len(district) > 64 || len(upazila) > 64 {
		return dErrors.New(dErrors.CodeValidation, "district and upazila must be 64 characters or less")
	}
	return nil
}

func validateAvatarURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return dErrors.New(dErrors.CodeValidation, "avatar_url must be an absolute http(s) URL")
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
