package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Prefix of three capitals followed by a Crockford base32 ULID.
var entityIDPattern = regexp.MustCompile(`^[A-Z]{3}[0-9A-HJKMNP-TV-Z]{26}$`)

// IsEntityID reports whether value looks like a generated record identifier.
func IsEntityID(value string) bool {
	return entityIDPattern.MatchString(value)
}

func validateEntityID(fl validator.FieldLevel) bool {
	return IsEntityID(fl.Field().String())
}
