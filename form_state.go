package authweb

import (
	"maps"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const textCodeInvalidFormTransition = "INVALID_FORM_STATE_TRANSITION"

// ErrInvalidFormTransition is returned when a form is moved along an edge
// that is not part of the transition graph.
var ErrInvalidFormTransition = goerrors.New("invalid form state transition", goerrors.CategoryInternal).
	WithTextCode(textCodeInvalidFormTransition).
	WithCode(goerrors.CodeInternal)

// FormStatus is the tag of a FormState.
type FormStatus string

const (
	FormIdle       FormStatus = "idle"
	FormSubmitting FormStatus = "submitting"
	FormSucceeded  FormStatus = "succeeded"
	FormFailed     FormStatus = "failed"
)

// FailureReason qualifies a failed FormState.
type FailureReason string

const (
	ReasonValidation   FailureReason = "validation_failed"
	ReasonProvider     FailureReason = "provider_failed"
	ReasonVerification FailureReason = "verification_failed"
)

// FormState is an immutable snapshot of a form.
type FormState struct {
	Status      FormStatus        `json:"status"`
	Reason      FailureReason     `json:"reason,omitempty"`
	Message     string            `json:"message,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Loading reports whether the submit control must be disabled.
func (s FormState) Loading() bool { return s.Status == FormSubmitting }

// Succeeded reports whether the last submission succeeded.
func (s FormState) Succeeded() bool { return s.Status == FormSucceeded }

// Failed reports whether the last submission failed.
func (s FormState) Failed() bool { return s.Status == FormFailed }

// FieldError returns the message attached to field.
func (s FormState) FieldError(field string) string {
	return s.FieldErrors[field]
}

// FormMachine guards the lifecycle of a single form instance.
type FormMachine struct {
	mu          sync.Mutex
	name        string
	state       FormState
	transitions map[FormStatus]map[FormStatus]struct{}
	now         func() time.Time
}

// FormMachineOption customizes a FormMachine.
type FormMachineOption func(*FormMachine)

// WithFormClock injects the clock used to stamp states.
func WithFormClock(clock func() time.Time) FormMachineOption {
	return func(m *FormMachine) {
		if clock != nil {
			m.now = clock
		}
	}
}

// NewFormMachine returns a machine in the idle state.
func NewFormMachine(name string, opts ...FormMachineOption) *FormMachine {
	m := &FormMachine{
		name: name,
		transitions: map[FormStatus]map[FormStatus]struct{}{
			FormIdle: {
				FormSubmitting: {},
			},
			FormSubmitting: {
				FormSucceeded: {},
				FormFailed:    {},
			},
			FormSucceeded: {
				FormSubmitting: {},
				FormIdle:       {},
			},
			FormFailed: {
				FormSubmitting: {},
				FormIdle:       {},
			},
		},
		now: time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.state = FormState{Status: FormIdle, UpdatedAt: m.now()}
	return m
}

// Name identifies the form in logs and activity events.
func (m *FormMachine) Name() string { return m.name }

// State returns a copy of the current state.
func (m *FormMachine) State() FormState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// Begin starts a submission. Messages and field errors from the previous
// attempt are cleared. It fails with ErrSubmissionInFlight while another
// submission is running.
func (m *FormMachine) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Status == FormSubmitting {
		return ErrSubmissionInFlight
	}

	return m.transition(FormState{Status: FormSubmitting})
}

// Succeed completes the running submission.
func (m *FormMachine) Succeed(message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(FormState{Status: FormSucceeded, Message: message})
}

// Fail completes the running submission with a reason and optional field errors.
func (m *FormMachine) Fail(reason FailureReason, message string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transition(FormState{
		Status:      FormFailed,
		Reason:      reason,
		Message:     message,
		FieldErrors: maps.Clone(fields),
	})
}

// Reset returns a settled form to idle.
func (m *FormMachine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Status == FormIdle {
		return nil
	}
	return m.transition(FormState{Status: FormIdle})
}

func (m *FormMachine) transition(next FormState) error {
	from := m.state.Status
	if !m.canTransition(from, next.Status) {
		return ErrInvalidFormTransition.Clone().WithMetadata(map[string]any{
			"form": m.name,
			"from": from,
			"to":   next.Status,
		})
	}
	next.UpdatedAt = m.now()
	m.state = next
	return nil
}

func (m *FormMachine) canTransition(from, to FormStatus) bool {
	if allowed, ok := m.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (m *FormMachine) snapshot() FormState {
	out := m.state
	out.FieldErrors = maps.Clone(m.state.FieldErrors)
	return out
}
