package authweb

import (
	"errors"
	"time"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// Form field names shared by the handlers and the templates.
const (
	FieldFormID       = "form_id"
	FieldEmail        = "email"
	FieldPassword     = "password"
	FieldFirstName    = "first_name"
	FieldLastName     = "last_name"
	FieldGender       = "gender"
	FieldShowPassword = "show_password"
)

// RegisterAuthRoutes mounts the three pages and their form handlers.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Get(controller.Routes.Home, controller.Home).
		SetName("home.get")

	app.Get(controller.Routes.Login, controller.LoginShow).
		SetName("sign-in.get")
	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")
	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).
		SetName("pwd-reset.post")

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	return controller
}

type AuthControllerRoutes struct {
	Home          string
	Login         string
	PasswordReset string
	Register      string
}

type AuthControllerViews struct {
	Home     string
	Login    string
	Register string
}

// AuthController serves the public auth pages. Every request gets fresh form
// controllers; the provider, guard and sinks are shared.
type AuthController struct {
	Debug         bool
	Logger        Logger
	Provider      IdentityProvider
	Activity      ActivitySink
	Guard         *SubmissionGuard
	Routes        *AuthControllerRoutes
	Views         *AuthControllerViews
	ErrorHandler  router.ErrorHandler
	RedirectDelay time.Duration
	CallTimeout   time.Duration
}

type AuthControllerOption func(*AuthController) *AuthController

// WithAuthProvider sets the identity provider used by every form.
func WithAuthProvider(p IdentityProvider) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Provider = p
		return c
	}
}

func WithAuthLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

func WithAuthDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func WithAuthActivity(s ActivitySink) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Activity = normalizeActivitySink(s)
		return c
	}
}

func WithAuthGuard(g *SubmissionGuard) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if g != nil {
			c.Guard = g
		}
		return c
	}
}

func WithAuthErrorHandler(h router.ErrorHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if h != nil {
			c.ErrorHandler = h
		}
		return c
	}
}

// WithAuthRedirectDelay sets how long the registration page stays up after
// a successful registration.
func WithAuthRedirectDelay(d time.Duration) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if d >= 0 {
			c.RedirectDelay = d
		}
		return c
	}
}

// WithAuthCallTimeout bounds each identity provider call.
func WithAuthCallTimeout(d time.Duration) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.CallTimeout = d
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:        defLogger{},
		Activity:      noopActivitySink{},
		Guard:         NewSubmissionGuard(DefaultSubmissionTTL),
		RedirectDelay: DefaultRedirectDelay,
		Routes: &AuthControllerRoutes{
			Home:          "/",
			Login:         "/login",
			PasswordReset: "/login/password-reset",
			Register:      "/register",
		},
		Views: &AuthControllerViews{
			Home:     "home",
			Login:    "login",
			Register: "register",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = defaultErrHandler(c.Logger)
	}

	if c.Provider == nil {
		panic("Missing IdentityProvider in auth controller...")
	}

	return c
}

func (a *AuthController) Home(ctx router.Context) error {
	return a.render(ctx, a.Views.Home, router.ViewContext{
		"routes": a.Routes,
	})
}

func (a *AuthController) LoginShow(ctx router.Context) error {
	out := newPageOutcome()
	lc := a.loginController(out)

	if ctx.Query("forgot") == "1" {
		lc.ToggleForgotPasswordForm()
	}
	if ctx.Query(FieldShowPassword) == "1" {
		lc.TogglePasswordVisibility()
	}

	return a.respond(ctx, a.Views.Login, a.loginViewContext(lc, ""), out)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	formID := ctx.FormValue(FieldFormID)
	if !a.Guard.Acquire(formID) {
		return a.submissionInFlight(ctx, a.Views.Login, a.loginViewContext(a.loginController(newPageOutcome()), ctx.FormValue(FieldEmail)))
	}
	defer a.Guard.Release(formID)

	out := newPageOutcome()
	lc := a.loginController(out)
	if ctx.FormValue(FieldShowPassword) == "1" {
		lc.TogglePasswordVisibility()
	}

	creds := Credentials{
		Email:    ctx.FormValue(FieldEmail),
		Password: ctx.FormValue(FieldPassword),
	}
	a.debugPayload("login payload", creds)

	if err := lc.Login(ctx.Context(), creds); err != nil && isFatal(err) {
		return a.ErrorHandler(ctx, err)
	}

	return a.respond(ctx, a.Views.Login, a.loginViewContext(lc, creds.Email), out)
}

func (a *AuthController) PasswordResetPost(ctx router.Context) error {
	email := ctx.FormValue(FieldEmail)

	formID := ctx.FormValue(FieldFormID)
	if !a.Guard.Acquire(formID) {
		lc := a.loginController(newPageOutcome())
		lc.ToggleForgotPasswordForm()
		return a.submissionInFlight(ctx, a.Views.Login, a.loginViewContext(lc, email))
	}
	defer a.Guard.Release(formID)

	out := newPageOutcome()
	lc := a.loginController(out)
	lc.ToggleForgotPasswordForm()

	a.debugPayload("password reset payload", map[string]string{"email": email})

	if err := lc.RequestPasswordReset(ctx.Context(), email); err != nil && isFatal(err) {
		return a.ErrorHandler(ctx, err)
	}

	return a.respond(ctx, a.Views.Login, a.loginViewContext(lc, email), out)
}

func (a *AuthController) RegistrationShow(ctx router.Context) error {
	rc := a.registerController(newPageOutcome())
	return a.render(ctx, a.Views.Register, a.registerViewContext(rc, RegistrationInput{}))
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	in := RegistrationInput{
		FirstName: ctx.FormValue(FieldFirstName),
		LastName:  ctx.FormValue(FieldLastName),
		Email:     ctx.FormValue(FieldEmail),
		Password:  ctx.FormValue(FieldPassword),
		Gender:    Gender(ctx.FormValue(FieldGender)),
	}

	formID := ctx.FormValue(FieldFormID)
	if !a.Guard.Acquire(formID) {
		rc := a.registerController(newPageOutcome())
		return a.submissionInFlight(ctx, a.Views.Register, a.registerViewContext(rc, in))
	}
	defer a.Guard.Release(formID)

	out := newPageOutcome()
	rc := a.registerController(out)

	a.debugPayload("register payload", in)

	if _, err := rc.Register(ctx.Context(), in); err != nil && isFatal(err) {
		return a.ErrorHandler(ctx, err)
	}

	return a.respond(ctx, a.Views.Register, a.registerViewContext(rc, in), out)
}

func (a *AuthController) submissionInFlight(ctx router.Context, view string, data router.ViewContext) error {
	a.Logger.Warn("duplicate form submission", "view", view)
	data["notifications"] = []Notification{{
		Level:   NotificationError,
		Message: ErrSubmissionInFlight.Message,
	}}
	return a.render(ctx, view, data)
}

func (a *AuthController) controllerOptions(out *pageOutcome) []ControllerOption {
	return []ControllerOption{
		WithNotifier(out.notes),
		WithNavigator(out.nav),
		WithLogger(a.Logger),
		WithActivitySink(a.Activity),
		WithRoutes(Routes{
			Home:     a.Routes.Home,
			Login:    a.Routes.Login,
			Register: a.Routes.Register,
		}),
		WithRedirectDelay(a.RedirectDelay),
		WithCallTimeout(a.CallTimeout),
	}
}

func (a *AuthController) loginController(out *pageOutcome) *LoginController {
	return NewLoginController(a.Provider, a.controllerOptions(out)...)
}

func (a *AuthController) registerController(out *pageOutcome) *RegisterController {
	return NewRegisterController(a.Provider, a.controllerOptions(out)...)
}

func (a *AuthController) loginViewContext(lc *LoginController, email string) router.ViewContext {
	view := lc.View()
	return router.ViewContext{
		"routes":          a.Routes,
		"form_id":         uuid.NewString(),
		"record":          map[string]string{FieldEmail: email},
		"login":           formStateView(view.Login, view.LoginCaption),
		"reset":           formStateView(view.Reset, view.ResetCaption),
		"show_password":   view.ShowPassword,
		"forgot_password": view.ForgotPassword,
	}
}

func (a *AuthController) registerViewContext(rc *RegisterController, in RegistrationInput) router.ViewContext {
	return router.ViewContext{
		"routes":  a.Routes,
		"form_id": uuid.NewString(),
		"record": map[string]string{
			FieldFirstName: in.FirstName,
			FieldLastName:  in.LastName,
			FieldEmail:     in.Email,
			FieldGender:    string(in.Gender),
		},
		"form": formStateView(rc.State(), rc.SubmitCaption()),
	}
}

func formStateView(s FormState, caption string) router.ViewContext {
	errs := s.FieldErrors
	if errs == nil {
		errs = map[string]string{}
	}
	return router.ViewContext{
		"status":    string(s.Status),
		"reason":    string(s.Reason),
		"message":   s.Message,
		"errors":    errs,
		"loading":   s.Loading(),
		"succeeded": s.Succeeded(),
		"failed":    s.Failed(),
		"caption":   caption,
	}
}

// isFatal reports errors that cannot be shown on the form itself.
func isFatal(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
