package phone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalid = errors.New("invalid phone number")

const region = "KE"

// Parse accepts 07.., 01.., 7.., 1.., +254.. and 254.. with the usual separators; only Kenyan mobile numbers pass
func Parse(raw string) (*phonenumbers.PhoneNumber, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "254") {
		cleaned = "+" + cleaned
	}
	num, err := phonenumbers.Parse(cleaned, region)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, raw)
	}
	if !phonenumbers.IsValidNumberForRegion(num, region) {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, raw)
	}
	switch phonenumbers.GetNumberType(num) {
	case phonenumbers.MOBILE, phonenumbers.FIXED_LINE_OR_MOBILE:
	default:
		return nil, fmt.Errorf("%w: %s is not a mobile number", ErrInvalid, raw)
	}
	return num, nil
}

// Normalize returns the 2547XXXXXXXX / 2541XXXXXXXX form Daraja expects
func Normalize(raw string) (string, error) {
	num, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(phonenumbers.Format(num, phonenumbers.E164), "+"), nil
}

// E164 returns the +254 form used by SMS gateways
func E164(raw string) (string, error) {
	num, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// Equal compares two numbers after normalization
func Equal(a, b string) bool {
	na, err := Normalize(a)
	if err != nil {
		return false
	}
	nb, err := Normalize(b)
	if err != nil {
		return false
	}
	return na == nb
}
