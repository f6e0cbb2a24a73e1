package dto

import (
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

// NewValidator returns a validator with the "username" and "password"
// rules registered.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return IsAcceptablePassword(fl.Field().String())
	})
	return v
}

// IsAcceptablePassword: at least 6 characters with a letter and a digit.
func IsAcceptablePassword(pwd string) bool {
	if utf8.RuneCountInString(pwd) < 6 {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range pwd {
		if unicode.IsLetter(r) {
			hasLetter = true
		}
		if unicode.IsDigit(r) {
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}
