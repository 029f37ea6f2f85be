package authweb

import (
	"context"
	"time"
)

// ControllerOption configures the form controllers.
type ControllerOption func(*controllerDeps)

type controllerDeps struct {
	notifier      Notifier
	navigator     Navigator
	logger        Logger
	activity      ActivitySink
	routes        Routes
	redirectDelay time.Duration
	callTimeout   time.Duration
	now           func() time.Time
}

// DefaultRedirectDelay gives the user time to read the registration message
// before moving to the login page.
const DefaultRedirectDelay = 2 * time.Second

func newControllerDeps(opts ...ControllerOption) controllerDeps {
	d := controllerDeps{
		notifier:      discardNotifier{},
		navigator:     discardNavigator{},
		logger:        defLogger{},
		activity:      noopActivitySink{},
		routes:        DefaultRoutes(),
		redirectDelay: DefaultRedirectDelay,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&d)
		}
	}
	return d
}

// WithNotifier sets the notification layer.
func WithNotifier(n Notifier) ControllerOption {
	return func(d *controllerDeps) {
		if n != nil {
			d.notifier = n
		}
	}
}

// WithNavigator sets the navigation target.
func WithNavigator(n Navigator) ControllerOption {
	return func(d *controllerDeps) {
		if n != nil {
			d.navigator = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) ControllerOption {
	return func(d *controllerDeps) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithActivitySink sets where form outcomes are recorded.
func WithActivitySink(s ActivitySink) ControllerOption {
	return func(d *controllerDeps) {
		d.activity = normalizeActivitySink(s)
	}
}

// WithRoutes overrides the navigation targets.
func WithRoutes(r Routes) ControllerOption {
	return func(d *controllerDeps) {
		if r.Home != "" {
			d.routes.Home = r.Home
		}
		if r.Login != "" {
			d.routes.Login = r.Login
		}
		if r.Register != "" {
			d.routes.Register = r.Register
		}
	}
}

// WithRedirectDelay overrides the delay before leaving the registration page.
func WithRedirectDelay(delay time.Duration) ControllerOption {
	return func(d *controllerDeps) {
		if delay >= 0 {
			d.redirectDelay = delay
		}
	}
}

// WithCallTimeout bounds every identity provider call. Zero means no bound
// beyond the caller context.
func WithCallTimeout(timeout time.Duration) ControllerOption {
	return func(d *controllerDeps) {
		d.callTimeout = timeout
	}
}

// WithClock injects the clock used for form states and activity events.
func WithClock(clock func() time.Time) ControllerOption {
	return func(d *controllerDeps) {
		if clock != nil {
			d.now = clock
		}
	}
}

func (d controllerDeps) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.callTimeout)
}

func (d controllerDeps) recorder(form string) activityRecorder {
	return activityRecorder{
		form:   form,
		sink:   d.activity,
		logger: d.logger,
		now:    d.now,
	}
}

type discardNotifier struct{}

func (discardNotifier) Success(string) {}
func (discardNotifier) Error(string)   {}

type discardNavigator struct{}

func (discardNavigator) Navigate(string)                     {}
func (discardNavigator) NavigateAfter(string, time.Duration) {}
