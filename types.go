package authweb

import (
	"context"
	"fmt"
	"time"
)

// Logger is the logging surface used across the package. A *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// IdentityProvider is the external managed authentication service. It owns
// credential storage, verification, token issuance and email delivery.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, creds Credentials) (*User, error)
	SignIn(ctx context.Context, creds Credentials) (*User, error)
	SendPasswordReset(ctx context.Context, email string) error
	SendEmailVerification(ctx context.Context, user *User) error
	UpdateProfile(ctx context.Context, user *User, update ProfileUpdate) error
}

// Notifier surfaces transient messages to the user.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// Navigator moves the user to another page.
type Navigator interface {
	Navigate(path string)
	NavigateAfter(path string, delay time.Duration)
}

// Credentials only live for the duration of a submission.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"-"`
}

// User is the account object returned by the identity provider.
type User struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name"`
	EmailVerified bool   `json:"email_verified"`
	// IDToken authorizes follow-up calls made on behalf of this user.
	// It is never persisted.
	IDToken string `json:"-"`
}

// ProfileUpdate holds the profile fields written after account creation.
type ProfileUpdate struct {
	DisplayName string `json:"display_name"`
	Gender      Gender `json:"gender"`
}

// Gender is the value selected on the registration form.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Genders lists the options rendered by the registration form, in order.
var Genders = []Gender{GenderMale, GenderFemale, GenderOther}

// Routes holds the three navigable paths.
type Routes struct {
	Home     string
	Login    string
	Register string
}

// DefaultRoutes returns the standard page paths.
func DefaultRoutes() Routes {
	return Routes{
		Home:     "/",
		Login:    "/login",
		Register: "/register",
	}
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println(format("DBG", msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println(format("INF", msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println(format("WRN", msg, args...))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println(format("ERR", msg, args...))
}

func format(level, msg string, args ...any) string {
	out := fmt.Sprintf("[%s] AUTHWEB %s", level, msg)
	for i := 0; i+1 < len(args); i += 2 {
		out += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	return out
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
