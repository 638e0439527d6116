package payments

import (
	"strings"

	"smartbite-api/apperror"
)

const countryCode = "237"

// NormalizePhone turns a Cameroonian mobile number into the 237XXXXXXXXX
// form the gateway expects. Local numbers start with 6 (mobile) or 2 (fixed).
func NormalizePhone(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)

	switch {
	case strings.HasPrefix(digits, countryCode):
	case strings.HasPrefix(digits, "6"), strings.HasPrefix(digits, "2"):
		digits = countryCode + digits
	default:
		return "", apperror.ErrInvalidPhone
	}
	if len(digits) != len(countryCode)+9 {
		return "", apperror.ErrInvalidPhone.Withf("phone number must have 9 digits after the %s country code", countryCode)
	}
	return digits, nil
}
