package firebase

import (
	"context"
	"errors"
	"strings"

	authweb "github.com/goliatone/go-auth-web"
	"google.golang.org/api/googleapi"
)

// serverCodes maps the Identity Toolkit error tokens to provider codes.
var serverCodes = map[string]authweb.ProviderErrorCode{
	"EMAIL_EXISTS":                authweb.CodeEmailAlreadyInUse,
	"INVALID_EMAIL":               authweb.CodeInvalidEmail,
	"WEAK_PASSWORD":               authweb.CodeWeakPassword,
	"EMAIL_NOT_FOUND":             authweb.CodeUserNotFound,
	"INVALID_PASSWORD":            authweb.CodeWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":   authweb.CodeInvalidCredential,
	"USER_DISABLED":               authweb.CodeUserDisabled,
	"TOO_MANY_ATTEMPTS_TRY_LATER": authweb.CodeTooManyRequests,
	"INVALID_ID_TOKEN":            authweb.CodeInvalidUserToken,
	"TOKEN_EXPIRED":               authweb.CodeInvalidUserToken,
	"USER_NOT_FOUND":              authweb.CodeUserNotFound,
}

const (
	msgNetworkFailure = "A network error (such as timeout, interrupted connection or unreachable host) has occurred."
	msgTimeout        = "The request to the identity service timed out."
)

// translateError converts a client error into an *authweb.ProviderError.
// The message reported by the service is kept verbatim. Transport errors get
// a fixed message: their text holds the request URL and with it the API key.
func translateError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		message := msgNetworkFailure
		if errors.Is(err, context.DeadlineExceeded) {
			message = msgTimeout
		}
		return &authweb.ProviderError{
			Operation: operation,
			Code:      authweb.CodeNetworkRequestFailed,
			Message:   message,
			Err:       err,
		}
	}

	message := apiErr.Message
	if message == "" && len(apiErr.Errors) > 0 {
		message = apiErr.Errors[0].Message
	}

	code, ok := serverCodes[errorToken(message)]
	if !ok {
		code = authweb.CodeInternalProviderError
	}

	return &authweb.ProviderError{
		Operation: operation,
		Code:      code,
		Message:   message,
		Err:       err,
	}
}

// errorToken extracts "WEAK_PASSWORD" from "WEAK_PASSWORD : Password should be at least 6 characters".
func errorToken(message string) string {
	token, _, _ := strings.Cut(message, ":")
	return strings.TrimSpace(token)
}
