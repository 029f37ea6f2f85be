package authweb

import (
	"errors"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"user@example.com",
		"first.last@sub.example.co",
		"a_b-c@x.io",
	}
	for _, email := range valid {
		assert.NoError(t, ValidateEmail(email), email)
	}

	invalid := []string{
		"",
		"plainaddress",
		"@example.com",
		"user@",
		"user@example",
		"user@example.c",
		"user@example.toolongtld",
		"user name@example.com",
		"user+tag@example.com",
	}
	for _, email := range invalid {
		err := ValidateEmail(email)
		if assert.Error(t, err, email) {
			assert.Equal(t, MsgInvalidEmail, err.Error())
		}
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("12345678"))
	assert.NoError(t, ValidatePassword("ñandúñandú"))

	for _, pw := range []string{"", "1234567", "short"} {
		err := ValidatePassword(pw)
		if assert.Error(t, err, pw) {
			assert.Equal(t, MsgPasswordTooShort, err.Error())
		}
	}
}

func TestValidateRegistrationPassword(t *testing.T) {
	assert.NoError(t, ValidateRegistrationPassword("Secret123"))

	err := ValidateRegistrationPassword("Sec1")
	assert.EqualError(t, err, MsgPasswordTooShort)

	for _, pw := range []string{"alllowercase1", "ALLUPPERCASE1", "NoDigitsHere"} {
		err := ValidateRegistrationPassword(pw)
		assert.EqualError(t, err, MsgPasswordStrength, pw)
	}
}

func TestValidateRegistrationPasswordMatchesInputPattern(t *testing.T) {
	cases := []struct {
		name     string
		password string
		err      string
	}{
		{"ascii classes", "Abcdefg1", ""},
		{"accented filler", "Abcdéfg1", ""},
		{"eight code points", "Ab1ééééé", ""},
		{"seven code points", "Ab1éééé", MsgPasswordTooShort},
		{"accented uppercase only", "abcdefgÉ1", MsgPasswordStrength},
		{"accented lowercase only", "ABCDEFGé1", MsgPasswordStrength},
		{"arabic indic digit", "abcdefgH١", MsgPasswordStrength},
		{"fullwidth digit", "abcdefgH１", MsgPasswordStrength},
		{"line feed", "Abcdefg1\nx", MsgPasswordStrength},
		{"line separator", "Abcdefg1\u2028x", MsgPasswordStrength},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRegistrationPassword(tc.password)
			if tc.err == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tc.err)
		})
	}
}

func TestValidateGender(t *testing.T) {
	for _, g := range Genders {
		assert.NoError(t, ValidateGender(string(g)))
	}
	assert.EqualError(t, ValidateGender(""), MsgInvalidGender)
	assert.EqualError(t, ValidateGender("robot"), MsgInvalidGender)
}

func TestFormatValidationErrorToMap(t *testing.T) {
	assert.Empty(t, FormatValidationErrorToMap(nil))

	err := validation.Errors{
		"email":    errors.New("please enter a valid email address."),
		"password": nil,
	}
	out := FormatValidationErrorToMap(err)
	assert.Equal(t, map[string]string{"email": "Please enter a valid email address."}, out)

	out = FormatValidationErrorToMap(assert.AnError)
	assert.Equal(t, assert.AnError.Error(), out["form"])
}
