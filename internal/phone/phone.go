// Package phone normalizes Indian mobile numbers into the canonical
// +91XXXXXXXXXX wire format used by the OTP provider and the users table.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

const (
	// CountryCode is the dialing prefix of the service area.
	CountryCode = "91"
	// LocalDigits is the length of the subscriber number after the country code.
	LocalDigits = 10
)

// ErrInvalidFormat is returned when input cannot be normalized to a valid mobile number.
var ErrInvalidFormat = errors.New("invalid phone number format")

var canonical = regexp.MustCompile(`^\+91[6-9]\d{9}$`)

var separators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "", "\t", "")

// Normalize converts user input into +91 followed by ten digits whose first
// digit is a valid mobile prefix (6-9).
func Normalize(raw string) (string, error) {
	s := separators.Replace(strings.TrimSpace(raw))
	if s == "" {
		return "", ErrInvalidFormat
	}

	var local string
	switch {
	case strings.HasPrefix(s, "+"+CountryCode):
		local = s[len(CountryCode)+1:]
	case strings.HasPrefix(s, "+"):
		return "", ErrInvalidFormat
	case strings.HasPrefix(s, "00"+CountryCode) && len(s) == LocalDigits+len(CountryCode)+2:
		local = s[len(CountryCode)+2:]
	case strings.HasPrefix(s, CountryCode) && len(s) == LocalDigits+len(CountryCode):
		local = s[len(CountryCode):]
	case strings.HasPrefix(s, "0") && len(s) == LocalDigits+1:
		local = s[1:]
	default:
		local = s
	}

	e164 := "+" + CountryCode + local
	if !canonical.MatchString(e164) {
		return "", ErrInvalidFormat
	}
	return e164, nil
}

// Valid reports whether s is already in canonical form.
func Valid(s string) bool {
	return canonical.MatchString(s)
}

// Digits returns the canonical number without the leading plus, the form SMS
// gateways expect.
func Digits(e164 string) string {
	return strings.TrimPrefix(e164, "+")
}

// Mask hides all but the last four digits for logging.
func Mask(e164 string) string {
	if len(e164) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(e164)-4) + e164[len(e164)-4:]
}
