package authweb

import (
	"context"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

const (
	MsgRegisterSuccess             = "Registration successful! Please verify your email."
	MsgRegisterSuccessNotification = "Registration successful! Please verify your email and login."
	MsgVerificationFailed          = "Error sending verification email. Please try again."
	MsgProfileUpdateFailed         = "Error updating profile information."
	MsgFirstNameRequired           = "Please enter your first name."
	MsgLastNameRequired            = "Please enter your last name."
	MsgRegisterSubmittingCaption   = "Registering..."
)

const registerFormName = "register"

// RegistrationInput is the registration form payload.
type RegistrationInput struct {
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	Email     string `form:"email" json:"email"`
	Password  string `form:"password" json:"-"`
	Gender    Gender `form:"gender" json:"gender"`
}

// DisplayName joins the first and last name.
func (in RegistrationInput) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(in.FirstName) + " " + strings.TrimSpace(in.LastName))
}

// Validate checks every field locally. Errors are keyed by form field name.
func (in *RegistrationInput) Validate() error {
	return validation.Errors{
		"first_name": validation.Validate(in.FirstName, validation.Required.Error(MsgFirstNameRequired)),
		"last_name":  validation.Validate(in.LastName, validation.Required.Error(MsgLastNameRequired)),
		"email":      validation.Validate(in.Email, validation.Required.Error(MsgInvalidEmail), EmailRule),
		"password":   ValidateRegistrationPassword(in.Password),
		"gender":     ValidateGender(string(in.Gender)),
	}.Filter()
}

// RegistrationResult aggregates the calls made after the account exists.
// A non nil User means the account was created, whatever the follow-up
// errors say.
type RegistrationResult struct {
	User            *User
	ProfileErr      error
	VerificationErr error
}

// Complete reports whether every follow-up call succeeded.
func (r *RegistrationResult) Complete() bool {
	return r != nil && r.User != nil && r.ProfileErr == nil && r.VerificationErr == nil
}

// RegisterController owns the registration form.
type RegisterController struct {
	deps     controllerDeps
	provider IdentityProvider
	form     *FormMachine
}

// NewRegisterController returns a controller with an idle form.
func NewRegisterController(provider IdentityProvider, opts ...ControllerOption) *RegisterController {
	deps := newControllerDeps(opts...)
	return &RegisterController{
		deps:     deps,
		provider: provider,
		form:     NewFormMachine(registerFormName, WithFormClock(deps.now)),
	}
}

// State returns the registration form state.
func (c *RegisterController) State() FormState { return c.form.State() }

// SubmitCaption is the label of the submit control.
func (c *RegisterController) SubmitCaption() string {
	if c.form.State().Loading() {
		return MsgRegisterSubmittingCaption
	}
	return "Register"
}

// Register creates the account, then updates the profile and sends the
// verification email concurrently. Account creation is never rolled back:
// a failed profile update is reported and the registration still counts as
// successful, a failed verification email leaves the form failed.
func (c *RegisterController) Register(ctx context.Context, in RegistrationInput) (*RegistrationResult, error) {
	if err := c.form.Begin(); err != nil {
		return nil, err
	}

	in.Email = strings.TrimSpace(in.Email)
	rec := c.deps.recorder(registerFormName)

	if err := in.Validate(); err != nil {
		fields := FormatValidationErrorToMap(err)
		_ = c.form.Fail(ReasonValidation, "", fields)
		rec.record(ctx, ActivityEvent{
			EventType:   ActivityRegisterFailure,
			EmailDomain: EmailDomain(in.Email),
			Reason:      ReasonValidation,
		})
		return nil, newValidationError("registration form is invalid", fields)
	}

	if c.provider == nil {
		_ = c.form.Fail(ReasonProvider, defaultRegistrationFailure, nil)
		return nil, ErrProviderUnavailable
	}

	callCtx, cancel := c.deps.callContext(ctx)
	defer cancel()

	user, err := c.provider.CreateAccount(callCtx, Credentials{Email: in.Email, Password: in.Password})
	if err != nil {
		code := ProviderErrorCodeOf(err)
		msg := RegistrationFailureMessage(err)
		_ = c.form.Fail(ReasonProvider, msg, nil)
		c.deps.notifier.Error(msg)
		c.deps.logger.Info("account creation failed", "email_domain", EmailDomain(in.Email), "code", string(code))
		rec.record(ctx, ActivityEvent{
			EventType:   ActivityRegisterFailure,
			EmailDomain: EmailDomain(in.Email),
			Reason:      ReasonProvider,
			Code:        code,
		})
		return nil, withProviderMetadata(goerrors.Wrap(err, goerrors.CategoryOperation, msg), err)
	}
	if user == nil {
		user = &User{Email: in.Email}
	}

	result := c.followUp(callCtx, user, ProfileUpdate{
		DisplayName: in.DisplayName(),
		Gender:      in.Gender,
	})

	if result.ProfileErr != nil {
		c.deps.notifier.Error(MsgProfileUpdateFailed)
		c.deps.logger.Warn("profile update failed", "uid", user.UID, "error", result.ProfileErr)
		rec.record(ctx, ActivityEvent{
			EventType:   ActivityProfileUpdateFailure,
			UserID:      user.UID,
			EmailDomain: EmailDomain(in.Email),
			Reason:      ReasonProvider,
			Code:        ProviderErrorCodeOf(result.ProfileErr),
		})
	}

	if result.VerificationErr != nil {
		_ = c.form.Fail(ReasonVerification, MsgVerificationFailed, map[string]string{
			"email": MsgVerificationFailed,
		})
		c.deps.notifier.Error(MsgVerificationFailed)
		c.deps.logger.Warn("verification email failed", "uid", user.UID, "error", result.VerificationErr)
		rec.record(ctx, ActivityEvent{
			EventType:   ActivityVerificationFailure,
			UserID:      user.UID,
			EmailDomain: EmailDomain(in.Email),
			Reason:      ReasonVerification,
			Code:        ProviderErrorCodeOf(result.VerificationErr),
		})
		return result, withProviderMetadata(
			goerrors.Wrap(result.VerificationErr, goerrors.CategoryOperation, MsgVerificationFailed),
			result.VerificationErr,
		)
	}

	_ = c.form.Succeed(MsgRegisterSuccess)
	c.deps.notifier.Success(MsgRegisterSuccessNotification)
	c.deps.navigator.NavigateAfter(c.deps.routes.Login, c.deps.redirectDelay)

	rec.record(ctx, ActivityEvent{
		EventType:   ActivityRegisterSuccess,
		UserID:      user.UID,
		EmailDomain: EmailDomain(in.Email),
		Metadata: map[string]any{
			"profile_updated": result.ProfileErr == nil,
		},
	})
	return result, nil
}

// followUp runs the profile update and the verification email in parallel.
// Each call keeps its own error so one failure never cancels the other.
func (c *RegisterController) followUp(ctx context.Context, user *User, update ProfileUpdate) *RegistrationResult {
	result := &RegistrationResult{User: user}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		result.ProfileErr = c.provider.UpdateProfile(ctx, user, update)
	}()
	go func() {
		defer wg.Done()
		result.VerificationErr = c.provider.SendEmailVerification(ctx, user)
	}()
	wg.Wait()

	return result
}
