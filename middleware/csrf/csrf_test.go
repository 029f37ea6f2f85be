package csrf

import (
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestSecureKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func newMockContextWithBase(method, ip string) *router.MockContext {
	ctx := router.NewMockContext()
	ctx.On("Method").Return(method)
	ctx.On("IP").Return(ip)
	ctx.On("Locals", DefaultContextKey, mock.Anything).Return(nil)
	ctx.On("LocalsMerge", DefaultTemplateHelpersKey, mock.Anything).Return(map[string]any{}).Maybe()
	return ctx
}

func passThrough(called *bool) router.HandlerFunc {
	return func(ctx router.Context) error {
		*called = true
		return nil
	}
}

func captureErrors(captured *error) router.ErrorHandler {
	return func(ctx router.Context, err error) error {
		*captured = err
		return err
	}
}

func TestMiddlewareIssuesTokenOnSafeMethod(t *testing.T) {
	var called bool
	handler := New(Config{SecureKey: newTestSecureKey()})(passThrough(&called))

	ctx := newMockContextWithBase("GET", "10.0.0.1")
	require.NoError(t, handler(ctx))
	require.True(t, called)

	token, ok := ctx.LocalsMock[DefaultContextKey].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)
	ctx.AssertCalled(t, "LocalsMerge", DefaultTemplateHelpersKey, mock.Anything)
}

func TestMiddlewareAcceptsTokenFromSameClient(t *testing.T) {
	var captured error
	cfg := Config{SecureKey: newTestSecureKey(), ErrorHandler: captureErrors(&captured)}

	var called bool
	handler := New(cfg)(passThrough(&called))

	getCtx := newMockContextWithBase("GET", "10.0.0.1")
	require.NoError(t, handler(getCtx))
	token := getCtx.LocalsMock[DefaultContextKey].(string)

	called = false
	postCtx := newMockContextWithBase("POST", "10.0.0.1")
	postCtx.On("FormValue", DefaultFieldName).Return(token)

	require.NoError(t, handler(postCtx))
	require.NoError(t, captured)
	require.True(t, called)

	rotated := postCtx.LocalsMock[DefaultContextKey].(string)
	assert.NotEqual(t, token, rotated)
}

func TestMiddlewareRejectsTokenFromOtherClient(t *testing.T) {
	var captured error
	cfg := Config{SecureKey: newTestSecureKey(), ErrorHandler: captureErrors(&captured)}

	var called bool
	handler := New(cfg)(passThrough(&called))

	getCtx := newMockContextWithBase("GET", "10.0.0.1")
	require.NoError(t, handler(getCtx))
	token := getCtx.LocalsMock[DefaultContextKey].(string)

	called = false
	postCtx := newMockContextWithBase("POST", "10.0.0.2")
	postCtx.On("FormValue", DefaultFieldName).Return(token)

	err := handler(postCtx)
	require.Error(t, err)
	require.ErrorIs(t, captured, ErrTokenMismatch)
	require.False(t, called)
}

func TestMiddlewareRejectsTamperedToken(t *testing.T) {
	var captured error
	cfg := Config{SecureKey: newTestSecureKey(), ErrorHandler: captureErrors(&captured)}

	var called bool
	handler := New(cfg)(passThrough(&called))

	postCtx := newMockContextWithBase("POST", "10.0.0.1")
	postCtx.On("FormValue", DefaultFieldName).Return("tampered")

	require.Error(t, handler(postCtx))
	require.ErrorIs(t, captured, ErrTokenMismatch)
	require.False(t, called)
}

func TestMiddlewareSkip(t *testing.T) {
	var called bool
	handler := New(Config{
		SecureKey: newTestSecureKey(),
		Skip:      func(router.Context) bool { return true },
	})(passThrough(&called))

	ctx := router.NewMockContext()
	require.NoError(t, handler(ctx))
	require.True(t, called)
	ctx.AssertNotCalled(t, "Method")
}

func TestSignerExpiration(t *testing.T) {
	signer, err := NewSigner(newTestSecureKey(), time.Minute)
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return now }

	token, err := signer.Issue("10.0.0.1")
	require.NoError(t, err)
	require.NoError(t, signer.Verify(token, "10.0.0.1"))

	now = now.Add(2 * time.Minute)
	require.ErrorIs(t, signer.Verify(token, "10.0.0.1"), ErrTokenExpired)
}

func TestSignerMissingToken(t *testing.T) {
	signer, err := NewSigner(newTestSecureKey(), 0)
	require.NoError(t, err)
	require.ErrorIs(t, signer.Verify("", "10.0.0.1"), ErrTokenMissing)
}

func TestSignerRejectsOtherKey(t *testing.T) {
	a, err := NewSigner(newTestSecureKey(), time.Hour)
	require.NoError(t, err)
	b, err := NewSigner([]byte("fedcba9876543210fedcba9876543210"), time.Hour)
	require.NoError(t, err)

	token, err := a.Issue("binding")
	require.NoError(t, err)
	require.ErrorIs(t, b.Verify(token, "binding"), ErrTokenMismatch)
}

func TestNewSignerShortKey(t *testing.T) {
	_, err := NewSigner([]byte("short"), time.Hour)
	require.Error(t, err)
}

func TestShortSecureKeyPanics(t *testing.T) {
	require.Panics(t, func() {
		New(Config{SecureKey: []byte("short")})
	})
}

func TestHelpers(t *testing.T) {
	helpers := Helpers(`tok"en`, "", "")

	assert.Equal(t, `tok"en`, helpers["csrf_token"])
	assert.Equal(t, DefaultHeaderName, helpers["csrf_header_name"])

	field := helpers["csrf_field"].(string)
	assert.Contains(t, field, `name="`+DefaultFieldName+`"`)
	assert.Contains(t, field, `value="tok&#34;en"`)
	assert.Equal(t, `<meta name="csrf-token" content="tok&#34;en">`, helpers["csrf_meta"])
}

func TestHelpersFromContext(t *testing.T) {
	ctx := router.NewMockContext()
	ctx.LocalsMock[DefaultContextKey] = "abc"

	helpers := HelpersFromContext(ctx, "")
	assert.Equal(t, "abc", helpers["csrf_token"])
	assert.Contains(t, helpers["csrf_field"], `value="abc"`)
}
