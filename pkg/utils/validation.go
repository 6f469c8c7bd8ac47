package utils

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinPasswordLength    = 6
	MaxDisplayNameLength = 100
)

var timeOfDayRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidationError represents a validation error. Key names the localized
// message shown to the user.
type ValidationError struct {
	Field string
	Key   string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Key
}

// ValidateSignup checks the sign-up form in the order the form shows errors.
func ValidateSignup(email, password, displayName string) error {
	if strings.TrimSpace(email) == "" || password == "" || strings.TrimSpace(displayName) == "" {
		return &ValidationError{Field: "form", Key: "error.fill_all_fields"}
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Key: "error.password_too_short"}
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if utf8.RuneCountInString(strings.TrimSpace(displayName)) > MaxDisplayNameLength {
		return &ValidationError{Field: "displayName", Key: "error.display_name_too_long"}
	}
	return nil
}

func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return &ValidationError{Field: "email", Key: "error.email_invalid"}
	}
	return nil
}

// NormalizeEmail converts email to lowercase for storage
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateTimeOfDay accepts 24-hour HH:MM.
func ValidateTimeOfDay(s string) error {
	if !timeOfDayRegex.MatchString(s) {
		return &ValidationError{Field: "time", Key: "error.invalid_time"}
	}
	return nil
}

// Required returns a ValidationError for the first blank field.
func Required(fields map[string]string, order ...string) error {
	for _, name := range order {
		if strings.TrimSpace(fields[name]) == "" {
			return &ValidationError{Field: name, Key: "error.field_required"}
		}
	}
	return nil
}
