package common

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// ValidatePhoneNumber requires an E.164 number such as +15551234567.
func ValidatePhoneNumber(number string) error {
	if err := validate.Var(number, "required,e164"); err != nil {
		return fmt.Errorf("invalid phone number %q: must be E.164 (e.g. +15551234567)", number)
	}
	return nil
}
