package authweb

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	// MinPasswordLength applies to login and registration.
	MinPasswordLength = 8

	// PasswordInputPattern is rendered as the HTML pattern attribute of the
	// registration password input. ValidateRegistrationPassword enforces the
	// same rule server side.
	PasswordInputPattern = `(?=.*\d)(?=.*[a-z])(?=.*[A-Z]).{8,}`

	// PasswordInputTitle is the browser hint shown when PasswordInputPattern fails.
	PasswordInputTitle = "Must be more than 8 characters, including number, lowercase letter, uppercase letter"
)

const (
	MsgInvalidEmail     = "Please enter a valid email address."
	MsgPasswordTooShort = "Password must be at least 8 characters."
	MsgPasswordStrength = "Password must include a number, a lowercase and an uppercase letter."
	MsgPasswordRequired = "Please enter your password."
	MsgInvalidGender    = "Please select a gender."
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,6}$`)

// The browser compiles PasswordInputPattern with the v flag and anchors it:
// character classes are ASCII only and "." matches any code point except a
// line terminator.
var (
	passwordDigit      = regexp.MustCompile(`[0-9]`)
	passwordLower      = regexp.MustCompile(`[a-z]`)
	passwordUpper      = regexp.MustCompile(`[A-Z]`)
	passwordSingleLine = regexp.MustCompile(`^[^\n\r\x{2028}\x{2029}]*$`)
)

// EmailRule accepts addresses shaped like local@domain.tld.
var EmailRule = validation.Match(emailPattern).Error(MsgInvalidEmail)

// ValidateEmail reports whether s is a well formed email address.
func ValidateEmail(s string) error {
	return validation.Validate(s, validation.Required.Error(MsgInvalidEmail), EmailRule)
}

// ValidatePassword checks the minimum length.
func ValidatePassword(s string) error {
	return validation.Validate(s,
		validation.Required.Error(MsgPasswordTooShort),
		validation.RuneLength(MinPasswordLength, 0).Error(MsgPasswordTooShort),
	)
}

// ValidateRegistrationPassword checks the minimum length and requires at
// least one ASCII digit, lowercase and uppercase letter, the same rule
// PasswordInputPattern applies in the browser.
func ValidateRegistrationPassword(s string) error {
	if err := ValidatePassword(s); err != nil {
		return err
	}
	return validation.Validate(s,
		validation.Match(passwordSingleLine).Error(MsgPasswordStrength),
		validation.Match(passwordDigit).Error(MsgPasswordStrength),
		validation.Match(passwordLower).Error(MsgPasswordStrength),
		validation.Match(passwordUpper).Error(MsgPasswordStrength),
	)
}

// ValidateGender accepts one of Genders.
func ValidateGender(s string) error {
	return validation.Validate(Gender(s),
		validation.Required.Error(MsgInvalidGender),
		validation.In(GenderMale, GenderFemale, GenderOther).Error(MsgInvalidGender),
	)
}

// FormatValidationErrorToMap flattens ozzo validation errors into a field to
// message map. Non field errors are stored under "form".
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr == nil {
				continue
			}
			out[field] = capitalize(ferr.Error())
		}
		return out
	}

	out["form"] = err.Error()
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
