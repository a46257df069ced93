package phone

import (
	"fmt"

	"github.com/nyaruka/phonenumbers"
)

// Normalize parses a phone number and returns it in E.164 format
// (+15551234567). The country code is used as a parsing hint for numbers
// written without an international prefix; it defaults to US.
func Normalize(phone, countryCode string) (string, error) {
	if phone == "" {
		return "", fmt.Errorf("phone number cannot be empty")
	}
	if countryCode == "" {
		countryCode = "US"
	}

	parsed, err := phonenumbers.Parse(phone, countryCode)
	if err != nil {
		return "", fmt.Errorf("failed to parse phone number: %w", err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", fmt.Errorf("invalid phone number")
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// NormalizeOrKeep returns the E.164 form when the number is parseable
// and valid, and the input verbatim otherwise. Empty input stays empty.
func NormalizeOrKeep(phone, countryCode string) string {
	if phone == "" || !IsValid(phone, countryCode) {
		return phone
	}
	normalized, err := Normalize(phone, countryCode)
	if err != nil {
		return phone
	}
	return normalized
}

// IsValid reports whether a phone number parses and is valid for the
// given country
func IsValid(phone, countryCode string) bool {
	if countryCode == "" {
		countryCode = "US"
	}
	parsed, err := phonenumbers.Parse(phone, countryCode)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(parsed)
}
