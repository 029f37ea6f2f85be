package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"html"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	// DefaultContextKey is the locals key holding the token of the request.
	DefaultContextKey = "csrf_token"
	// DefaultFieldName is the hidden form field carrying the token.
	DefaultFieldName = "_token"
	// DefaultHeaderName is the header carrying the token for scripted requests.
	DefaultHeaderName = "X-CSRF-Token"
	// DefaultTemplateHelpersKey is the locals key the helper map is merged into.
	DefaultTemplateHelpersKey = "template_helpers"
	// DefaultExpiration bounds the age of a token.
	DefaultExpiration = 2 * time.Hour
	// MinSecureKeyLength is the shortest accepted signing key.
	MinSecureKeyLength = 32
)

const (
	tokenVersion = "v1"
	nonceLength  = 16
)

var (
	ErrTokenMissing = goerrors.New("CSRF token missing", goerrors.CategoryBadInput).
			WithTextCode("CSRF_TOKEN_MISSING").
			WithCode(goerrors.CodeBadRequest)
	ErrTokenMismatch = goerrors.New("CSRF token mismatch", goerrors.CategoryAuthz).
				WithTextCode("CSRF_TOKEN_MISMATCH").
				WithCode(goerrors.CodeForbidden)
	ErrTokenExpired = goerrors.New("CSRF token expired", goerrors.CategoryAuthz).
			WithTextCode("CSRF_TOKEN_EXPIRED").
			WithCode(goerrors.CodeForbidden)
)

// Config configures the middleware.
type Config struct {
	// Skip bypasses the middleware for matching requests.
	Skip func(router.Context) bool

	// SecureKey signs the tokens. A random key is generated when empty,
	// which invalidates outstanding tokens on restart.
	SecureKey []byte

	// Expiration bounds the age of a token.
	Expiration time.Duration

	ContextKey         string
	FieldName          string
	HeaderName         string
	TemplateHelpersKey string

	// SafeMethods are never validated.
	SafeMethods []string

	// Binding returns the value a token is tied to. Defaults to the client IP.
	Binding func(router.Context) string

	ErrorHandler router.ErrorHandler

	// Now is the clock used to stamp and expire tokens.
	Now func() time.Time
}

// New returns a middleware that issues a token on every request and
// validates it on unsafe methods. It panics when SecureKey is set but shorter
// than MinSecureKeyLength.
func New(config ...Config) router.MiddlewareFunc {
	cfg := configDefault(config...)
	signer := &Signer{key: cfg.SecureKey, ttl: cfg.Expiration, now: cfg.Now}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			binding := cfg.Binding(ctx)

			if !slices.Contains(cfg.SafeMethods, strings.ToUpper(ctx.Method())) {
				received := ctx.FormValue(cfg.FieldName)
				if received == "" {
					received = ctx.GetString(cfg.HeaderName, "")
				}
				if err := signer.Verify(received, binding); err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
			}

			token, err := signer.Issue(binding)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, token)
			ctx.LocalsMerge(cfg.TemplateHelpersKey, Helpers(token, cfg.FieldName, cfg.HeaderName))

			return next(ctx)
		}
	}
}

// Signer issues and verifies stateless tokens of the form
// base64url(version.timestamp.nonce.signature). The binding is signed but
// not embedded.
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSigner returns a signer for key.
func NewSigner(key []byte, ttl time.Duration) (*Signer, error) {
	if len(key) < MinSecureKeyLength {
		return nil, fmt.Errorf("csrf: secure key must be at least %d bytes, got %d", MinSecureKeyLength, len(key))
	}
	if ttl <= 0 {
		ttl = DefaultExpiration
	}
	return &Signer{key: key, ttl: ttl, now: time.Now}, nil
}

// Issue returns a token tied to binding.
func (s *Signer) Issue(binding string) (string, error) {
	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "csrf: unable to read nonce")
	}

	ts := strconv.FormatInt(s.now().UTC().Unix(), 10)
	nonceHex := hex.EncodeToString(nonce)
	sig := s.sign(ts, nonceHex, binding)

	raw := strings.Join([]string{tokenVersion, ts, nonceHex, sig}, ".")
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// Verify checks that token was issued by this signer for binding and has
// not expired.
func (s *Signer) Verify(token, binding string) error {
	if token == "" {
		return ErrTokenMissing
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ".")
	if len(parts) != 4 || parts[0] != tokenVersion {
		return ErrTokenMismatch
	}
	ts, nonceHex, sig := parts[1], parts[2], parts[3]

	expected := s.sign(ts, nonceHex, binding)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return ErrTokenMismatch
	}

	issued, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}
	if s.ttl > 0 && s.now().UTC().After(time.Unix(issued, 0).Add(s.ttl)) {
		return ErrTokenExpired
	}
	return nil
}

func (s *Signer) sign(ts, nonce, binding string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(tokenVersion + "." + ts + "." + nonce + "." + binding))
	return hex.EncodeToString(mac.Sum(nil))
}

// Helpers returns the template values rendered by the auth pages.
func Helpers(token, fieldName, headerName string) map[string]any {
	if fieldName == "" {
		fieldName = DefaultFieldName
	}
	if headerName == "" {
		headerName = DefaultHeaderName
	}
	escaped := html.EscapeString(token)
	return map[string]any{
		"csrf_token":       token,
		"csrf_field":       `<input type="hidden" name="` + fieldName + `" value="` + escaped + `">`,
		"csrf_meta":        `<meta name="csrf-token" content="` + escaped + `">`,
		"csrf_header_name": headerName,
	}
}

// HelpersFromContext builds Helpers from the token stored under contextKey.
func HelpersFromContext(ctx router.Context, contextKey string) map[string]any {
	if contextKey == "" {
		contextKey = DefaultContextKey
	}
	token, _ := ctx.Locals(contextKey).(string)
	return Helpers(token, DefaultFieldName, DefaultHeaderName)
}

func configDefault(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Expiration <= 0 {
		cfg.Expiration = DefaultExpiration
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	if cfg.FieldName == "" {
		cfg.FieldName = DefaultFieldName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}
	if cfg.TemplateHelpersKey == "" {
		cfg.TemplateHelpersKey = DefaultTemplateHelpersKey
	}
	if cfg.SafeMethods == nil {
		cfg.SafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}
	}
	if cfg.Binding == nil {
		cfg.Binding = func(ctx router.Context) string { return ctx.IP() }
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.SecureKey = initializeSecureKey(cfg.SecureKey)
	return cfg
}

func defaultErrorHandler(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ctx.Status(richErr.Code).SendString(richErr.Message)
	}
	return ctx.Status(router.StatusInternalServerError).SendString("CSRF validation error")
}

func initializeSecureKey(current []byte) []byte {
	if len(current) > 0 {
		if len(current) < MinSecureKeyLength {
			panic(fmt.Errorf("csrf: secure key must be at least %d bytes, got %d", MinSecureKeyLength, len(current)))
		}
		return current
	}
	key := make([]byte, MinSecureKeyLength)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		panic(fmt.Errorf("csrf: unable to initialize secure key: %w", err))
	}
	return key
}
