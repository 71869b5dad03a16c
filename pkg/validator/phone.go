package validator

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
)

// ErrInvalidPhone is returned when a number cannot be parsed for the configured region.
var ErrInvalidPhone = errors.New("invalid phone number")

var phoneRegion atomic.Value

func init() {
	phoneRegion.Store("US")
}

// SetPhoneRegion sets the default region used for numbers without a country prefix.
func SetPhoneRegion(region string) {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return
	}
	phoneRegion.Store(region)
}

// PhoneRegion returns the configured default region.
func PhoneRegion() string {
	return phoneRegion.Load().(string)
}

// NormalizePhone parses raw against the default region and returns its E.164 form.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhone
	}
	num, err := phonenumbers.Parse(raw, PhoneRegion())
	if err != nil {
		return "", ErrInvalidPhone
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func validatePhone(fl validator.FieldLevel) bool {
	_, err := NormalizePhone(fl.Field().String())
	return err == nil
}
