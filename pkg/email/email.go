// Package email normalizes account emails, the identity key shared by tokens, accounts,
// donation requests and pledges.
package email

import (
	"net/mail"
	"strings"
	"unicode"

	dErrors "bloodlink/pkg/domain-errors"
)

// Normalize trims and lower-cases an email so lookups are case-insensitive.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Parse normalizes and syntax-checks an email address.
func Parse(raw string) (string, error) {
	e := Normalize(raw)
	if e == "" {
		return "", dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if len(e) > 254 {
		return "", dErrors.New(dErrors.CodeValidation, "email must be 254 characters or less")
	}
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return "", dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	return e, nil
}

// DisplayName derives a human name from the local part, e.g. "jane.doe@x" -> "Jane Doe".
// Used when a caller supplies no name.
func DisplayName(email string) string {
	localPart := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "Donor"
	}
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
