package firebase

import (
	"context"

	authweb "github.com/goliatone/go-auth-web"
	goerrors "github.com/goliatone/go-errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

const (
	opCreateAccount     = "create_account"
	opSignIn            = "sign_in"
	opPasswordReset     = "send_password_reset"
	opEmailVerification = "send_email_verification"
	opUpdateProfile     = "update_profile"

	requestPasswordReset = "PASSWORD_RESET"
	requestVerifyEmail   = "VERIFY_EMAIL"
)

var tracer = otel.Tracer("github.com/goliatone/go-auth-web/provider/firebase")

// IdentityProvider implements authweb.IdentityProvider on top of the
// Identity Toolkit v3 REST API. The client handle is shared and read only.
type IdentityProvider struct {
	config Config
	rp     *identitytoolkit.RelyingpartyService
}

var _ authweb.IdentityProvider = (*IdentityProvider)(nil)

// NewIdentityProvider creates a provider authenticated with the project API key.
func NewIdentityProvider(ctx context.Context, cfg Config, opts ...option.ClientOption) (*IdentityProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "firebase: invalid configuration")
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if endpoint := cfg.endpoint(); endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(endpoint))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := identitytoolkit.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "firebase: failed to create identity toolkit client")
	}

	return &IdentityProvider{config: cfg, rp: svc.Relyingparty}, nil
}

// CreateAccount implements authweb.IdentityProvider.
func (p *IdentityProvider) CreateAccount(ctx context.Context, creds authweb.Credentials) (user *authweb.User, err error) {
	ctx, span := startSpan(ctx, opCreateAccount)
	defer func() { endSpan(span, err) }()

	resp, err := p.rp.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    creds.Email,
		Password: creds.Password,
	}).Context(ctx).Do()
	if err != nil {
		return nil, translateError(opCreateAccount, err)
	}

	return &authweb.User{
		UID:         resp.LocalId,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		IDToken:     resp.IdToken,
	}, nil
}

// SignIn implements authweb.IdentityProvider.
func (p *IdentityProvider) SignIn(ctx context.Context, creds authweb.Credentials) (user *authweb.User, err error) {
	ctx, span := startSpan(ctx, opSignIn)
	defer func() { endSpan(span, err) }()

	resp, err := p.rp.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             creds.Email,
		Password:          creds.Password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, translateError(opSignIn, err)
	}

	return &authweb.User{
		UID:         resp.LocalId,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		IDToken:     resp.IdToken,
	}, nil
}

// SendPasswordReset implements authweb.IdentityProvider.
func (p *IdentityProvider) SendPasswordReset(ctx context.Context, email string) (err error) {
	ctx, span := startSpan(ctx, opPasswordReset)
	defer func() { endSpan(span, err) }()

	_, err = p.rp.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: requestPasswordReset,
		Email:       email,
		ContinueUrl: p.config.ContinueURL,
	}).Context(ctx).Do()
	return translateError(opPasswordReset, err)
}

// SendEmailVerification implements authweb.IdentityProvider.
func (p *IdentityProvider) SendEmailVerification(ctx context.Context, user *authweb.User) (err error) {
	ctx, span := startSpan(ctx, opEmailVerification)
	defer func() { endSpan(span, err) }()

	if user == nil || user.IDToken == "" {
		return missingToken(opEmailVerification)
	}

	_, err = p.rp.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: requestVerifyEmail,
		IdToken:     user.IDToken,
		ContinueUrl: p.config.ContinueURL,
	}).Context(ctx).Do()
	return translateError(opEmailVerification, err)
}

// UpdateProfile implements authweb.IdentityProvider. The gender is only
// written when LegacyGenderPhotoURL is set.
func (p *IdentityProvider) UpdateProfile(ctx context.Context, user *authweb.User, update authweb.ProfileUpdate) (err error) {
	ctx, span := startSpan(ctx, opUpdateProfile)
	defer func() { endSpan(span, err) }()

	if user == nil || user.IDToken == "" {
		return missingToken(opUpdateProfile)
	}

	req := &identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		IdToken:     user.IDToken,
		DisplayName: update.DisplayName,
	}
	if p.config.LegacyGenderPhotoURL {
		req.PhotoUrl = string(update.Gender)
	}

	_, err = p.rp.SetAccountInfo(req).Context(ctx).Do()
	return translateError(opUpdateProfile, err)
}

func missingToken(operation string) error {
	return &authweb.ProviderError{
		Operation: operation,
		Code:      authweb.CodeInvalidUserToken,
		Message:   "missing ID token",
	}
}

func startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "firebase."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("identity.operation", operation)),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := authweb.ProviderErrorCodeOf(err); code != "" {
			span.SetAttributes(attribute.String("identity.error_code", string(code)))
		}
	}
	span.End()
}
