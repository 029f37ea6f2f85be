package authweb

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActivityEventType enumerates form outcomes worth auditing.
type ActivityEventType string

const (
	ActivityLoginSuccess           ActivityEventType = "auth.login.success"
	ActivityLoginFailure           ActivityEventType = "auth.login.failure"
	ActivityPasswordResetRequested ActivityEventType = "auth.password_reset.requested"
	ActivityPasswordResetFailure   ActivityEventType = "auth.password_reset.failure"
	ActivityRegisterSuccess        ActivityEventType = "auth.register.success"
	ActivityRegisterFailure        ActivityEventType = "auth.register.failure"
	ActivityProfileUpdateFailure   ActivityEventType = "auth.register.profile_update.failure"
	ActivityVerificationFailure    ActivityEventType = "auth.register.verification.failure"
)

// ActivityEvent describes the outcome of a submission. It never carries
// passwords, tokens or full email addresses.
type ActivityEvent struct {
	ID          uuid.UUID
	EventType   ActivityEventType
	Form        string
	UserID      string
	EmailDomain string
	Reason      FailureReason
	Code        ProviderErrorCode
	Metadata    map[string]any
	OccurredAt  time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []ActivitySink

// Record implements ActivitySink.
func (m MultiSink) Record(ctx context.Context, event ActivityEvent) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// EmailDomain returns the part of email after the last "@".
func EmailDomain(email string) string {
	idx := strings.LastIndex(email, "@")
	if idx < 0 || idx == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[idx+1:])
}

type activityRecorder struct {
	form   string
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

// record is best effort: sink failures are logged and never reach the user.
func (r activityRecorder) record(ctx context.Context, event ActivityEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Form == "" {
		event.Form = r.form
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now()
	}

	if err := normalizeActivitySink(r.sink).Record(ctx, event); err != nil {
		normalizeLogger(r.logger).Warn("activity sink error",
			"form", event.Form,
			"event", string(event.EventType),
			"error", err,
		)
	}
}
