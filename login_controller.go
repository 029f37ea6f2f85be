package authweb

import (
	"context"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

const (
	MsgLoginSuccess           = "Login successful!"
	MsgLoginFailedPrefix      = "Login Failed: "
	MsgResetEmailRequired     = "Please enter your email address to reset the password."
	MsgResetSent              = "Password reset link sent to your email!"
	MsgResetSentNotification  = "Password reset link sent!"
	MsgResetFailedPrefix      = "Error resetting password: "
	MsgLoginSubmittingCaption = "Logging in..."
	MsgResetSubmittingCaption = "Sending email..."
)

const (
	loginFormName = "login"
	resetFormName = "password_reset"
)

// LoginController owns the login page: the sign in form, the password reset
// form and the two visibility toggles.
type LoginController struct {
	deps     controllerDeps
	provider IdentityProvider
	login    *FormMachine
	reset    *FormMachine

	mu             sync.Mutex
	showPassword   bool
	forgotPassword bool
}

// NewLoginController returns a controller with both forms idle, the password
// masked and the reset form closed.
func NewLoginController(provider IdentityProvider, opts ...ControllerOption) *LoginController {
	deps := newControllerDeps(opts...)
	return &LoginController{
		deps:     deps,
		provider: provider,
		login:    NewFormMachine(loginFormName, WithFormClock(deps.now)),
		reset:    NewFormMachine(resetFormName, WithFormClock(deps.now)),
	}
}

// Login signs the user in. Malformed input fails locally without reaching
// the provider. On success the user is sent to the home page.
func (c *LoginController) Login(ctx context.Context, creds Credentials) error {
	if err := c.login.Begin(); err != nil {
		return err
	}

	creds.Email = strings.TrimSpace(creds.Email)
	rec := c.deps.recorder(loginFormName)

	if err := validateLogin(creds); err != nil {
		fields := FormatValidationErrorToMap(err)
		_ = c.login.Fail(ReasonValidation, "", fields)
		rec.record(ctx, ActivityEvent{
			EventType:   ActivityLoginFailure,
			EmailDomain: EmailDomain(creds.Email),
			Reason:      ReasonValidation,
		})
		return newValidationError("login form is invalid", fields)
	}

	if c.provider == nil {
		_ = c.login.Fail(ReasonProvider, MsgLoginFailedPrefix+ErrProviderUnavailable.Error(), nil)
		return ErrProviderUnavailable
	}

	callCtx, cancel := c.deps.callContext(ctx)
	defer cancel()

	user, err := c.provider.SignIn(callCtx, creds)
	if err != nil {
		code := ProviderErrorCodeOf(err)
		msg := MsgLoginFailedPrefix + ProviderMessage(err)
		_ = c.login.Fail(ReasonProvider, msg, nil)
		c.deps.notifier.Error(msg)
		c.deps.logger.Info("login failed", "email_domain", EmailDomain(creds.Email), "code", string(code))
		rec.record(ctx, ActivityEvent{
			EventType:   ActivityLoginFailure,
			EmailDomain: EmailDomain(creds.Email),
			Reason:      ReasonProvider,
			Code:        code,
		})
		return withProviderMetadata(
			goerrors.Wrap(err, goerrors.CategoryAuth, msg).WithCode(goerrors.CodeUnauthorized),
			err,
		)
	}

	_ = c.login.Succeed(MsgLoginSuccess)
	c.deps.notifier.Success(MsgLoginSuccess)
	c.deps.navigator.Navigate(c.deps.routes.Home)

	event := ActivityEvent{
		EventType:   ActivityLoginSuccess,
		EmailDomain: EmailDomain(creds.Email),
	}
	if user != nil {
		event.UserID = user.UID
	}
	rec.record(ctx, event)
	return nil
}

// RequestPasswordReset asks the provider to email a reset link. An empty
// address fails locally.
func (c *LoginController) RequestPasswordReset(ctx context.Context, email string) error {
	if err := c.reset.Begin(); err != nil {
		return err
	}

	email = strings.TrimSpace(email)
	rec := c.deps.recorder(resetFormName)

	if email == "" {
		fields := map[string]string{"email": MsgResetEmailRequired}
		_ = c.reset.Fail(ReasonValidation, MsgResetEmailRequired, fields)
		rec.record(ctx, ActivityEvent{
			EventType: ActivityPasswordResetFailure,
			Reason:    ReasonValidation,
		})
		return newValidationError(MsgResetEmailRequired, fields)
	}

	if c.provider == nil {
		_ = c.reset.Fail(ReasonProvider, MsgResetFailedPrefix+ErrProviderUnavailable.Error(), nil)
		return ErrProviderUnavailable
	}

	callCtx, cancel := c.deps.callContext(ctx)
	defer cancel()

	if err := c.provider.SendPasswordReset(callCtx, email); err != nil {
		code := ProviderErrorCodeOf(err)
		msg := MsgResetFailedPrefix + ProviderMessage(err)
		_ = c.reset.Fail(ReasonProvider, msg, nil)
		c.deps.notifier.Error(msg)
		rec.record(ctx, ActivityEvent{
			EventType:   ActivityPasswordResetFailure,
			EmailDomain: EmailDomain(email),
			Reason:      ReasonProvider,
			Code:        code,
		})
		return withProviderMetadata(goerrors.Wrap(err, goerrors.CategoryOperation, msg), err)
	}

	_ = c.reset.Succeed(MsgResetSent)
	c.deps.notifier.Success(MsgResetSentNotification)

	c.mu.Lock()
	c.forgotPassword = false
	c.mu.Unlock()

	rec.record(ctx, ActivityEvent{
		EventType:   ActivityPasswordResetRequested,
		EmailDomain: EmailDomain(email),
	})
	return nil
}

// TogglePasswordVisibility flips the password field between masked and
// plain text and returns true when the password is visible.
func (c *LoginController) TogglePasswordVisibility() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.showPassword = !c.showPassword
	return c.showPassword
}

// ToggleForgotPasswordForm switches between the sign in form and the reset
// form. Settled messages from either form are cleared.
func (c *LoginController) ToggleForgotPasswordForm() bool {
	c.mu.Lock()
	c.forgotPassword = !c.forgotPassword
	open := c.forgotPassword
	c.mu.Unlock()

	// a running submission keeps its state
	_ = c.login.Reset()
	_ = c.reset.Reset()
	return open
}

// PasswordVisible reports whether the password field renders as plain text.
func (c *LoginController) PasswordVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.showPassword
}

// ForgotPasswordOpen reports whether the reset form replaces the sign in form.
func (c *LoginController) ForgotPasswordOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forgotPassword
}

// LoginState returns the sign in form state.
func (c *LoginController) LoginState() FormState { return c.login.State() }

// ResetState returns the password reset form state.
func (c *LoginController) ResetState() FormState { return c.reset.State() }

// LoginView is the template model of the login page.
type LoginView struct {
	Login          FormState
	Reset          FormState
	ShowPassword   bool
	ForgotPassword bool
	LoginCaption   string
	ResetCaption   string
}

// View snapshots the controller for rendering.
func (c *LoginController) View() LoginView {
	v := LoginView{
		Login:          c.login.State(),
		Reset:          c.reset.State(),
		ShowPassword:   c.PasswordVisible(),
		ForgotPassword: c.ForgotPasswordOpen(),
		LoginCaption:   "Login",
		ResetCaption:   "Send Password Reset Email",
	}
	if v.Login.Loading() {
		v.LoginCaption = MsgLoginSubmittingCaption
	}
	if v.Reset.Loading() {
		v.ResetCaption = MsgResetSubmittingCaption
	}
	return v
}

func validateLogin(creds Credentials) error {
	return validation.Errors{
		"email":    ValidateEmail(creds.Email),
		"password": validation.Validate(creds.Password, validation.Required.Error(MsgPasswordRequired)),
	}.Filter()
}
