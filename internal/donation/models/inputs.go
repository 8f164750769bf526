package models

import (
	"strings"
	"time"

	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/email"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	maxShortField   = 128
	maxAddressField = 512
	maxMessage      = 2000
)

type CreateRequestInput struct {
	RecipientName       string `json:"recipient_name"`
	RecipientBloodGroup string `json:"recipient_blood_group"`
	HospitalName        string `json:"hospital_name"`
	District            string `json:"district"`
	Upazila             string `json:"upazila"`
	FullAddress         string `json:"full_address"`
	DonationDate        string `json:"donation_date"`
	DonationTime        string `json:"donation_time"`
	RequestMessage      string `json:"request_message"`
}

func (in *CreateRequestInput) Normalize() {
	if in == nil {
		return
	}
	in.RecipientName = strings.TrimSpace(in.RecipientName)
	in.RecipientBloodGroup = strings.ToUpper(strings.TrimSpace(in.RecipientBloodGroup))
	in.HospitalName = strings.TrimSpace(in.HospitalName)
	in.District = strings.TrimSpace(in.District)
	in.Upazila = strings.TrimSpace(in.Upazila)
	in.FullAddress = strings.TrimSpace(in.FullAddress)
	in.DonationDate = strings.TrimSpace(in.DonationDate)
	in.DonationTime = strings.TrimSpace(in.DonationTime)
	in.RequestMessage = strings.TrimSpace(in.RequestMessage)
}

// Follows validation order: Size -> Required -> Syntax.
func (in *CreateRequestInput) Validate() error {
	if in == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	for name, v := range map[string]string{
		"recipient_name": in.RecipientName,
		"hospital_name":  in.HospitalName,
		"district":       in.District,
		"upazila":        in.Upazila,
	} {
		if len(v) > maxShortField {
			return dErrors.New(dErrors.CodeValidation, name+" is too long")
		}
	}
	if len(in.FullAddress) > maxAddressField {
		return dErrors.New(dErrors.CodeValidation, "full_address is too long")
	}
	if len(in.RequestMessage) > maxMessage {
		return dErrors.New(dErrors.CodeValidation, "request_message is too long")
	}

	required := []struct{ name, value string }{
		{"recipient_name", in.RecipientName},
		{"recipient_blood_group", in.RecipientBloodGroup},
		{"hospital_name", in.HospitalName},
		{"district", in.District},
		{"upazila", in.Upazila},
		{"full_address", in.FullAddress},
		{"donation_date", in.DonationDate},
		{"donation_time", in.DonationTime},
	}
	for _, f := range required {
		if f.value == "" {
			return dErrors.New(dErrors.CodeValidation, f.name+" is required")
		}
	}

	if _, err := id.ParseBloodGroup(in.RecipientBloodGroup); err != nil {
		return dErrors.New(dErrors.CodeValidation, "recipient_blood_group must be one of A+ A- B+ B- AB+ AB- O+ O-")
	}
	return validateSchedule(in.DonationDate, in.DonationTime)
}

type UpdateRequestInput struct {
	RecipientName       *string `json:"recipient_name"`
	RecipientBloodGroup *string `json:"recipient_blood_group"`
	HospitalName        *string `json:"hospital_name"`
	District            *string `json:"district"`
	Upazila             *string `json:"upazila"`
	FullAddress         *string `json:"full_address"`
	DonationDate        *string `json:"donation_date"`
	DonationTime        *string `json:"donation_time"`
	RequestMessage      *string `json:"request_message"`
}

func (in *UpdateRequestInput) fields() []*string {
	return []*string{in.RecipientName, in.RecipientBloodGroup, in.HospitalName, in.District,
		in.Upazila, in.FullAddress, in.DonationDate, in.DonationTime, in.RequestMessage}
}

func (in *UpdateRequestInput) Normalize() {
	if in == nil {
		return
	}
	for _, f := range in.fields() {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	if in.RecipientBloodGroup != nil {
		*in.RecipientBloodGroup = strings.ToUpper(*in.RecipientBloodGroup)
	}
}

func (in *UpdateRequestInput) Validate() error {
	if in == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	empty := true
	for _, f := range in.fields() {
		if f == nil {
			continue
		}
		empty = false
		if len(*f) > maxMessage {
			return dErrors.New(dErrors.CodeValidation, "field is too long")
		}
		if *f == "" && f != in.RequestMessage {
			return dErrors.New(dErrors.CodeValidation, "fields cannot be set to empty")
		}
	}
	if empty {
		return dErrors.New(dErrors.CodeValidation, "at least one field is required")
	}
	if in.RecipientBloodGroup != nil {
		if _, err := id.ParseBloodGroup(*in.RecipientBloodGroup); err != nil {
			return dErrors.New(dErrors.CodeValidation, "recipient_blood_group must be one of A+ A- B+ B- AB+ AB- O+ O-")
		}
	}
	if in.DonationDate != nil {
		if _, err := time.Parse(dateLayout, *in.DonationDate); err != nil {
			return dErrors.New(dErrors.CodeValidation, "donation_date must be YYYY-MM-DD")
		}
	}
	if in.DonationTime != nil {
		if _, err := time.Parse(timeLayout, *in.DonationTime); err != nil {
			return dErrors.New(dErrors.CodeValidation, "donation_time must be HH:MM")
		}
	}
	return nil
}

// ToUpdate converts the validated input into a RequestUpdate.
func (in *UpdateRequestInput) ToUpdate() RequestUpdate {
	u := RequestUpdate{
		RecipientName:  in.RecipientName,
		HospitalName:   in.HospitalName,
		District:       in.District,
		Upazila:        in.Upazila,
		FullAddress:    in.FullAddress,
		DonationDate:   in.DonationDate,
		DonationTime:   in.DonationTime,
		RequestMessage: in.RequestMessage,
	}
	if in.RecipientBloodGroup != nil {
		if g, err := id.ParseBloodGroup(*in.RecipientBloodGroup); err == nil {
			u.RecipientBloodGroup = &g
		}
	}
	return u
}

// ClaimInput identifies the donor taking a request.
type ClaimInput struct {
	DonorName  string `json:"donor_name"`
	DonorEmail string `json:"donor_email"`
}

func (in *ClaimInput) Normalize() {
	if in == nil {
		return
	}
	in.DonorName = strings.TrimSpace(in.DonorName)
	in.DonorEmail = email.Normalize(in.DonorEmail)
}

func (in *ClaimInput) Validate() error {
	if in == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(in.DonorName) > maxShortField {
		return dErrors.New(dErrors.CodeValidation, "donor_name is too long")
	}
	if in.DonorName == "" {
		return dErrors.New(dErrors.CodeValidation, "donor_name is required")
	}
	if _, err := email.Parse(in.DonorEmail); err != nil {
		return err
	}
	return nil
}

func (in *ClaimInput) Donor() Donor {
	return Donor{Name: in.DonorName, Email: in.DonorEmail}
}

type SetStatusInput struct {
	Status Status `json:"donation_status"`
}

func (in *SetStatusInput) Normalize() {
	if in == nil {
		return
	}
	in.Status = Status(strings.ToLower(strings.TrimSpace(string(in.Status))))
}

func (in *SetStatusInput) Validate() error {
	if in == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if in.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "donation_status is required")
	}
	if !in.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeValidation, "donation_status must be 'done' or 'cancelled'")
	}
	return nil
}

// ListQuery is the read side of listDonationRequests.
type ListQuery struct {
	RequesterEmail string
	Recent         bool
	Statuses       []Status
	Limit          int
	Offset         int
}

func validateSchedule(date, clock string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return dErrors.New(dErrors.CodeValidation, "donation_date must be YYYY-MM-DD")
	}
	if _, err := time.Parse(timeLayout, clock); err != nil {
		return dErrors.New(dErrors.CodeValidation, "donation_time must be HH:MM")
	}
	return nil
}
