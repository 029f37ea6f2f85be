package authweb

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeSubmissionInFlight = "FORM_SUBMISSION_IN_FLIGHT"
	textCodeInvalidForm        = "FORM_VALIDATION_FAILED"
	textCodeProviderFailed     = "IDENTITY_PROVIDER_FAILED"
)

// ErrSubmissionInFlight is returned when a form is submitted while a previous
// submission of the same form has not completed.
var ErrSubmissionInFlight = goerrors.New("a submission for this form is already in progress", goerrors.CategoryConflict).
	WithTextCode(textCodeSubmissionInFlight).
	WithCode(goerrors.CodeConflict)

// ErrProviderUnavailable is returned by handlers when no identity provider was configured.
var ErrProviderUnavailable = errors.New("identity provider not configured")

// ProviderErrorCode is the opaque failure reason reported by the identity provider.
type ProviderErrorCode string

const (
	CodeEmailAlreadyInUse     ProviderErrorCode = "auth/email-already-in-use"
	CodeInvalidEmail          ProviderErrorCode = "auth/invalid-email"
	CodeWeakPassword          ProviderErrorCode = "auth/weak-password"
	CodeWrongPassword         ProviderErrorCode = "auth/wrong-password"
	CodeUserNotFound          ProviderErrorCode = "auth/user-not-found"
	CodeInvalidCredential     ProviderErrorCode = "auth/invalid-credential"
	CodeUserDisabled          ProviderErrorCode = "auth/user-disabled"
	CodeTooManyRequests       ProviderErrorCode = "auth/too-many-requests"
	CodeInvalidUserToken      ProviderErrorCode = "auth/invalid-user-token"
	CodeNetworkRequestFailed  ProviderErrorCode = "auth/network-request-failed"
	CodeInternalProviderError ProviderErrorCode = "auth/internal-error"
)

// ProviderError captures a failed identity provider call.
type ProviderError struct {
	Operation string
	Code      ProviderErrorCode
	Message   string
	Err       error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "identity provider error"
	}

	scope := "identity provider"
	if e.Operation != "" {
		scope = e.Operation
	}

	switch {
	case e.Message != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Message)
	case e.Code != "":
		return fmt.Sprintf("%s failed: %s", scope, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	}
	return scope + " failed"
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Metadata returns the loggable attributes of the error.
func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}
	return map[string]any{
		"operation": e.Operation,
		"code":      string(e.Code),
		"message":   e.Message,
	}
}

// ProviderErrorCodeOf extracts the provider code from err, if any.
func ProviderErrorCodeOf(err error) ProviderErrorCode {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ""
}

// ProviderMessage returns the message the provider attached to err. Errors
// that did not come from the provider fall back to err.Error().
func ProviderMessage(err error) string {
	if err == nil {
		return ""
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		if perr.Message != "" {
			return perr.Message
		}
		if perr.Code != "" {
			return string(perr.Code)
		}
	}
	return err.Error()
}

const defaultRegistrationFailure = "Registration failed. Please try again."

var registrationFailureMessages = map[ProviderErrorCode]string{
	CodeEmailAlreadyInUse: "This email is already registered. Please login.",
	CodeInvalidEmail:      "Invalid email address.",
	CodeWeakPassword:      "Password should be stronger (at least 8 characters).",
}

// RegistrationFailureMessage maps an account creation failure to the message
// shown on the registration form.
func RegistrationFailureMessage(err error) string {
	if msg, ok := registrationFailureMessages[ProviderErrorCodeOf(err)]; ok {
		return msg
	}
	return defaultRegistrationFailure
}

func newValidationError(message string, fields map[string]string) *goerrors.Error {
	meta := make(map[string]any, len(fields))
	for k, v := range fields {
		meta[k] = v
	}
	return goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(textCodeInvalidForm).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(meta)
}

func withProviderMetadata(rich *goerrors.Error, err error) *goerrors.Error {
	rich = rich.WithTextCode(textCodeProviderFailed)
	var perr *ProviderError
	if errors.As(err, &perr) {
		rich = rich.WithMetadata(perr.Metadata())
	}
	return rich
}
