package validator

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

var (
	// ErrEmptyEmail indicates the email address is empty
	ErrEmptyEmail = errors.New("email cannot be empty")

	// ErrInvalidEmail indicates the email address cannot be parsed
	ErrInvalidEmail = errors.New("email address is not valid")

	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits and an optional leading +")

	// ErrInvalidLength indicates phone number has too few or too many digits
	ErrInvalidLength = errors.New("phone number must have between 8 and 15 digits")

	// ErrNameTooLong indicates the guest name exceeds the stored column width
	ErrNameTooLong = errors.New("guest name must be at most 120 characters")
)

const maxNameLength = 120

var (
	// digitsRegex matches an optional + followed by digits
	digitsRegex = regexp.MustCompile(`^\+?\d+$`)

	// moroccanLocal matches a national mobile or landline number: 0 then 5, 6, 7 or 8 and 8 digits
	moroccanLocal = regexp.MustCompile(`^0[5-8]\d{8}$`)
)

// ContactValidator validates and normalizes guest contact details
type ContactValidator struct{}

// NewContactValidator creates a new contact validator instance
func NewContactValidator() *ContactValidator {
	return &ContactValidator{}
}

// ValidateEmail returns the trimmed, lower-cased address
func (v *ContactValidator) ValidateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrEmptyEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(addr.Address), nil
}

// ValidatePhone accepts national Moroccan numbers (0612345678) and international
// numbers (+33 6 12 34 56 78, 0033...). Returns the number in +<digits> form.
func (v *ContactValidator) ValidatePhone(phone string) (string, error) {
	if strings.TrimSpace(phone) == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)
	if !digitsRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	switch {
	case moroccanLocal.MatchString(sanitized):
		sanitized = "+212" + sanitized[1:]
	case strings.HasPrefix(sanitized, "00"):
		sanitized = "+" + sanitized[2:]
	case !strings.HasPrefix(sanitized, "+"):
		sanitized = "+" + sanitized
	}

	digits := len(sanitized) - 1
	if digits < 8 || digits > 15 {
		return "", ErrInvalidLength
	}

	return sanitized, nil
}

// Sanitize removes common separators from a phone number
func (v *ContactValidator) Sanitize(phone string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "", "/", "")
	return replacer.Replace(strings.TrimSpace(phone))
}

// ValidateName trims the guest name and checks it is present and bounded
func (v *ContactValidator) ValidateName(name string) (string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", errors.New("guest name cannot be empty")
	}
	if len([]rune(name)) > maxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}
