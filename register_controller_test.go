package authweb

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type registerFixture struct {
	provider *fakeProvider
	notes    *NotificationBuffer
	nav      *navSpy
	sink     *captureSink
	ctrl     *RegisterController
}

func newRegisterFixture(opts ...ControllerOption) *registerFixture {
	f := &registerFixture{
		provider: newFakeProvider(),
		notes:    &NotificationBuffer{},
		nav:      &navSpy{},
		sink:     &captureSink{},
	}
	base := []ControllerOption{
		WithNotifier(f.notes),
		WithNavigator(f.nav),
		WithActivitySink(f.sink),
		WithClock(fixedNow),
	}
	f.ctrl = NewRegisterController(f.provider, append(base, opts...)...)
	return f
}

func validRegistration() RegistrationInput {
	return RegistrationInput{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.com",
		Password:  "Secret123",
		Gender:    GenderFemale,
	}
}

func TestRegistrationInputValidate(t *testing.T) {
	in := validRegistration()
	assert.NoError(t, in.Validate())
	assert.Equal(t, "Jane Doe", in.DisplayName())

	bad := RegistrationInput{Email: "nope", Password: "short", Gender: "robot"}
	fields := FormatValidationErrorToMap(bad.Validate())
	assert.Equal(t, map[string]string{
		"first_name": MsgFirstNameRequired,
		"last_name":  MsgLastNameRequired,
		"email":      MsgInvalidEmail,
		"password":   MsgPasswordTooShort,
		"gender":     MsgInvalidGender,
	}, fields)
}

func TestRegisterShortPasswordSkipsProvider(t *testing.T) {
	f := newRegisterFixture()
	in := validRegistration()
	in.Password = "Ab1"

	result, err := f.ctrl.Register(context.Background(), in)
	require.Error(t, err)
	assert.Nil(t, result)

	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich))
	assert.Equal(t, goerrors.CategoryValidation, rich.Category)

	assert.Equal(t, 0, f.provider.TotalCalls())
	s := f.ctrl.State()
	assert.Equal(t, ReasonValidation, s.Reason)
	assert.Equal(t, MsgPasswordTooShort, s.FieldError("password"))
	assert.Equal(t, 0, f.nav.Calls())
}

func TestRegisterInvalidEmailSkipsProvider(t *testing.T) {
	f := newRegisterFixture()
	in := validRegistration()
	in.Email = "jane@"

	_, err := f.ctrl.Register(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, 0, f.provider.TotalCalls())
	assert.Equal(t, MsgInvalidEmail, f.ctrl.State().FieldError("email"))
}

func TestRegisterSuccess(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newRegisterFixture()

	result, err := f.ctrl.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Complete())

	assert.Equal(t, 1, f.provider.Calls("create"))
	assert.Equal(t, 1, f.provider.Calls("profile"))
	assert.Equal(t, 1, f.provider.Calls("verify"))
	assert.Equal(t, ProfileUpdate{DisplayName: "Jane Doe", Gender: GenderFemale}, f.provider.lastProfile)

	// both follow-ups act on the created account
	require.Len(t, f.provider.followUsers, 2)
	assert.Same(t, result.User, f.provider.followUsers[0])
	assert.Same(t, result.User, f.provider.followUsers[1])

	s := f.ctrl.State()
	assert.True(t, s.Succeeded())
	assert.Equal(t, MsgRegisterSuccess, s.Message)

	nav, ok := f.nav.last()
	require.True(t, ok)
	assert.Equal(t, Navigation{Path: "/login", Delay: 2 * time.Second}, nav)
	assert.Equal(t, 1, f.nav.Calls())

	last, ok := f.notes.Last(NotificationSuccess)
	require.True(t, ok)
	assert.Equal(t, MsgRegisterSuccessNotification, last.Message)

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, ActivityRegisterSuccess, events[0].EventType)
	assert.Equal(t, true, events[0].Metadata["profile_updated"])
}

func TestRegisterProfileFailureStillSucceeds(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newRegisterFixture(WithRedirectDelay(2 * time.Second))
	f.provider.profileErr = &ProviderError{Code: CodeInternalProviderError, Message: "INTERNAL"}

	result, err := f.ctrl.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Error(t, result.ProfileErr)
	assert.False(t, result.Complete())

	assert.True(t, f.ctrl.State().Succeeded())

	nav, ok := f.nav.last()
	require.True(t, ok)
	assert.Equal(t, "/login", nav.Path)
	assert.Equal(t, 2*time.Second, nav.Delay)

	errNote, ok := f.notes.Last(NotificationError)
	require.True(t, ok)
	assert.Equal(t, MsgProfileUpdateFailed, errNote.Message)
	_, ok = f.notes.Last(NotificationSuccess)
	assert.True(t, ok)

	assert.Equal(t, []ActivityEventType{ActivityProfileUpdateFailure, ActivityRegisterSuccess}, f.sink.Types())
	assert.Equal(t, false, f.sink.Events()[1].Metadata["profile_updated"])
}

func TestRegisterVerificationFailureLeavesFormFailed(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newRegisterFixture()
	f.provider.verificationErr = &ProviderError{Code: CodeTooManyRequests, Message: "TOO_MANY_ATTEMPTS_TRY_LATER"}

	result, err := f.ctrl.Register(context.Background(), validRegistration())
	require.Error(t, err)
	require.NotNil(t, result)
	assert.NotNil(t, result.User, "the account is not rolled back")

	s := f.ctrl.State()
	assert.True(t, s.Failed())
	assert.Equal(t, ReasonVerification, s.Reason)
	assert.Equal(t, MsgVerificationFailed, s.FieldError("email"))

	assert.Equal(t, 0, f.nav.Calls())
	assert.Equal(t, 1, f.provider.Calls("profile"))
}

func TestRegisterCreateFailureMapsMessage(t *testing.T) {
	tests := []struct {
		code ProviderErrorCode
		want string
	}{
		{CodeEmailAlreadyInUse, "This email is already registered. Please login."},
		{CodeInvalidEmail, "Invalid email address."},
		{CodeWeakPassword, "Password should be stronger (at least 8 characters)."},
		{CodeNetworkRequestFailed, "Registration failed. Please try again."},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			f := newRegisterFixture()
			f.provider.createErr = &ProviderError{Code: tt.code, Message: "raw"}

			result, err := f.ctrl.Register(context.Background(), validRegistration())
			require.Error(t, err)
			assert.Nil(t, result)

			s := f.ctrl.State()
			assert.Equal(t, ReasonProvider, s.Reason)
			assert.Equal(t, tt.want, s.Message)
			assert.Equal(t, 0, f.provider.Calls("profile"))
			assert.Equal(t, 0, f.provider.Calls("verify"))
			assert.Equal(t, 0, f.nav.Calls())
		})
	}
}

func TestRegisterFollowUpsRunConcurrently(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newRegisterFixture()
	f.provider.entered = make(chan string, 3)
	f.provider.followGate = make(chan struct{})

	// the gate opens only once both follow-ups are waiting on it
	go func() {
		seen := map[string]bool{}
		for op := range f.provider.entered {
			seen[op] = true
			if seen["profile"] && seen["verify"] {
				close(f.provider.followGate)
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := f.ctrl.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.True(t, result.Complete())
	assert.True(t, f.ctrl.State().Succeeded())
}

func TestRegisterSecondSubmissionWhileInFlight(t *testing.T) {
	f := newRegisterFixture()
	f.provider.gate = make(chan struct{})
	f.provider.entered = make(chan string, 3)

	done := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Register(context.Background(), validRegistration())
		done <- err
	}()

	assert.Equal(t, "create", <-f.provider.entered)
	assert.Equal(t, MsgRegisterSubmittingCaption, f.ctrl.SubmitCaption())

	_, err := f.ctrl.Register(context.Background(), validRegistration())
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(f.provider.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.provider.Calls("create"))
	assert.Equal(t, "Register", f.ctrl.SubmitCaption())
}

func TestRegisterFollowUpFailuresReportedIndependently(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newRegisterFixture()
	f.provider.profileErr = &ProviderError{Code: CodeInternalProviderError, Message: "INTERNAL"}
	f.provider.verificationErr = &ProviderError{Code: CodeTooManyRequests, Message: "TOO_MANY_ATTEMPTS_TRY_LATER"}

	result, err := f.ctrl.Register(context.Background(), validRegistration())
	require.Error(t, err)
	require.NotNil(t, result)

	assert.Equal(t, CodeInternalProviderError, ProviderErrorCodeOf(result.ProfileErr))
	assert.Equal(t, CodeTooManyRequests, ProviderErrorCodeOf(result.VerificationErr))
	assert.Equal(t, 1, f.provider.Calls("profile"))
	assert.Equal(t, 1, f.provider.Calls("verify"))

	var messages []string
	for _, n := range f.notes.Items() {
		messages = append(messages, n.Message)
	}
	assert.ElementsMatch(t, []string{MsgProfileUpdateFailed, MsgVerificationFailed}, messages)
	assert.Equal(t, []ActivityEventType{ActivityProfileUpdateFailure, ActivityVerificationFailure}, f.sink.Types())
}
