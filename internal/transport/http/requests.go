package httptransport

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	dErrors "linkage/pkg/domain-errors"
)

const (
	maxEmailLength = 320
	maxPhoneLength = 20
)

var phonePattern = regexp.MustCompile(`^[+]?[\d\s\-()]+$`)

// IdentifyRequest is the raw wire shape. phoneNumber accepts a JSON string
// or number; numbers are stringified.
type IdentifyRequest struct {
	Email       *string     `json:"email"`
	PhoneNumber *flexString `json:"phoneNumber"`
}

// flexString tolerates clients that send the phone as a bare number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("phoneNumber must be a string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// normalize validates the request and produces the core's input: email
// trimmed and lowercased, phone trimmed only — the stored phone preserves
// the user-entered form.
func (r IdentifyRequest) normalize() (email, phone *string, err error) {
	if r.Email != nil {
		v := strings.ToLower(strings.TrimSpace(*r.Email))
		if v != "" {
			if err := validateEmail(v); err != nil {
				return nil, nil, err
			}
			email = &v
		}
	}
	if r.PhoneNumber != nil {
		v := strings.TrimSpace(string(*r.PhoneNumber))
		if v != "" {
			if err := validatePhone(v); err != nil {
				return nil, nil, err
			}
			phone = &v
		}
	}
	if email == nil && phone == nil {
		return nil, nil, dErrors.New(dErrors.CodeBadRequest, "at least one of email or phoneNumber must be present")
	}
	return email, phone, nil
}

func validateEmail(v string) error {
	if len(v) > maxEmailLength {
		return dErrors.New(dErrors.CodeBadRequest, "email exceeds 320 characters")
	}
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v {
		return dErrors.New(dErrors.CodeBadRequest, "email is not a valid address")
	}
	return nil
}

func validatePhone(v string) error {
	if len(v) > maxPhoneLength {
		return dErrors.New(dErrors.CodeBadRequest, "phoneNumber exceeds 20 characters")
	}
	if !phonePattern.MatchString(v) {
		return dErrors.New(dErrors.CodeBadRequest, "phoneNumber contains disallowed characters")
	}
	return nil
}
