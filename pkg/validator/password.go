package validator

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	PasswordMinLength = 8
	PasswordMaxLength = 20
)

var (
	errPasswordLength     = errors.New("must be between 8 and 20 characters")
	errPasswordComplexity = errors.New("must contain upper and lower case letters, a digit and a symbol")
	errPasswordCommon     = errors.New("is too common")
	errPasswordRepeated   = errors.New("must not be a repeated pattern")
)

// Lower-cased, compared after folding the candidate.
var commonPasswords = map[string]struct{}{}

func init() {
	for _, pw := range []string{
		"password", "password1", "password12", "password123", "password1!", "p@ssw0rd", "p@ssword1",
		"passw0rd!", "qwerty123", "qwerty123!", "qwertyuiop", "1q2w3e4r", "1q2w3e4r!", "abc12345",
		"abcd1234!", "welcome1", "welcome1!", "welcome123", "letmein1!", "iloveyou1", "admin123",
		"admin123!", "administrator1", "changeme1!", "sunshine1", "football1", "monkey123",
		"dragon123", "baseball1", "trustno1!", "superman1", "princess1", "starwars1", "zaq12wsx",
		"!qaz2wsx", "1qaz@wsx", "qazwsx123", "secret123", "summer2024!", "winter2024!",
	} {
		commonPasswords[pw] = struct{}{}
	}
}

// CheckPassword reports the first complexity rule the candidate breaks.
func CheckPassword(password string) error {
	length := utf8.RuneCountInString(password)
	if length < PasswordMinLength || length > PasswordMaxLength {
		return errPasswordLength
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		return errPasswordComplexity
	}

	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		return errPasswordCommon
	}
	if isRepeatedPattern(password) {
		return errPasswordRepeated
	}
	return nil
}

// isRepeatedPattern matches values built from a single unit repeated, such as "Ab1!Ab1!".
func isRepeatedPattern(value string) bool {
	runes := []rune(value)
	n := len(runes)
	for size := 1; size <= n/2; size++ {
		if n%size != 0 {
			continue
		}
		unit := string(runes[:size])
		if strings.Repeat(unit, n/size) == value {
			return true
		}
	}
	return false
}

func validatePassword(fl validator.FieldLevel) bool {
	return CheckPassword(fl.Field().String()) == nil
}
