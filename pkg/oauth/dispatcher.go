package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getmockd/mockidp/pkg/directory"
	"github.com/getmockd/mockidp/pkg/logging"
)

// Grant outcomes recorded alongside the grant type.
const (
	OutcomeSuccess = "success"
)

// DispatcherConfig wires a Dispatcher to its collaborators.
type DispatcherConfig struct {
	Users    UserRegistry
	Apps     ApplicationRegistry
	Codes    *CodeStore
	Refresh  *RefreshStore
	Issuer   *Issuer
	Recorder Recorder
	Logger   *slog.Logger
}

// Dispatcher runs token requests against the stores and the issuer.
type Dispatcher struct {
	users    UserRegistry
	apps     ApplicationRegistry
	codes    *CodeStore
	refresh  *RefreshStore
	issuer   *Issuer
	recorder Recorder
	logger   *slog.Logger
}

// NewDispatcher checks that every collaborator is present.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	switch {
	case cfg.Users == nil:
		return nil, errors.New("dispatcher requires a user registry")
	case cfg.Apps == nil:
		return nil, errors.New("dispatcher requires an application registry")
	case cfg.Codes == nil:
		return nil, errors.New("dispatcher requires a code store")
	case cfg.Refresh == nil:
		return nil, errors.New("dispatcher requires a refresh token store")
	case cfg.Issuer == nil:
		return nil, errors.New("dispatcher requires an issuer")
	}
	return &Dispatcher{
		users:    cfg.Users,
		apps:     cfg.Apps,
		codes:    cfg.Codes,
		refresh:  cfg.Refresh,
		issuer:   cfg.Issuer,
		recorder: orNopRecorder(cfg.Recorder),
		logger:   logging.Component(cfg.Logger, "oauth"),
	}, nil
}

// Exchange runs grant for tenant. The client is resolved first; then the
// variant's required fields are checked; no store is touched until both
// pass. Errors are always *Error.
func (d *Dispatcher) Exchange(ctx context.Context, tenant string, grant Grant) (resp *TokenResponse, err error) {
	if grant == nil {
		return nil, ErrUnsupportedGrantType
	}
	defer func() {
		outcome := OutcomeSuccess
		if err != nil {
			outcome = AsError(err).Code
		} else {
			d.logger.Info("grant completed",
				"grant_type", grant.GrantType(),
				"client_id", grant.Client().ClientID,
				"tenant", tenant,
			)
		}
		d.recorder.GrantCompleted(grant.GrantType(), outcome)
	}()

	client := grant.Client()
	app, ok := d.apps.FindByID(client.ClientID)
	if !ok {
		d.logger.Debug("unknown client", "grant_type", grant.GrantType(), "client_id", client.ClientID)
		return nil, ErrInvalidClient.WithDescription("unknown client_id")
	}

	switch g := grant.(type) {
	case AuthorizationCodeGrant:
		return d.authorizationCode(ctx, tenant, app, g)
	case ClientCredentialsGrant:
		return d.clientCredentials(tenant, app, g)
	case RefreshTokenGrant:
		return d.refreshToken(ctx, tenant, app, g)
	case PasswordGrant:
		return d.password(ctx, tenant, app, g)
	default:
		return nil, ErrUnsupportedGrantType
	}
}

func (d *Dispatcher) authorizationCode(ctx context.Context, tenant string, app *directory.Application, g AuthorizationCodeGrant) (*TokenResponse, error) {
	if g.Code == "" || g.RedirectURI == "" {
		return nil, ErrInvalidRequest.WithDescription("code and redirect_uri are required")
	}
	if app.ClientSecret != "" {
		if g.ClientSecret == "" {
			return nil, ErrInvalidClient.WithDescription("client_secret is required")
		}
		if !d.apps.VerifySecret(app.AppID, g.ClientSecret) {
			return nil, ErrInvalidClient.WithDescription("client_secret does not match")
		}
	}

	code, err := d.codes.Consume(g.Code, app.AppID, g.RedirectURI, g.CodeVerifier)
	if err != nil {
		return nil, d.rejectGrant(g, err, "authorization code is invalid or expired")
	}

	user, ok := d.users.FindByID(code.UserID)
	if !ok {
		return nil, d.rejectGrant(g, fmt.Errorf("user %q no longer exists", code.UserID), "authorization code is invalid or expired")
	}

	return d.userTokens(ctx, tenant, user, app, code.Scope, code.Nonce)
}

func (d *Dispatcher) clientCredentials(tenant string, app *directory.Application, g ClientCredentialsGrant) (*TokenResponse, error) {
	if g.ClientSecret == "" {
		return nil, ErrInvalidRequest.WithDescription("client_secret is required")
	}
	if !d.apps.VerifySecret(app.AppID, g.ClientSecret) {
		return nil, ErrInvalidClient.WithDescription("client_secret does not match")
	}

	scope := g.Scope
	if scope == "" {
		scope = DefaultServiceScope
	}
	access, err := d.issuer.ClientCredentialsToken(tenant, app, scope)
	if err != nil {
		return nil, d.serverError(g, err)
	}

	return d.response(scope, access), nil
}

func (d *Dispatcher) refreshToken(ctx context.Context, tenant string, app *directory.Application, g RefreshTokenGrant) (*TokenResponse, error) {
	if g.RefreshToken == "" {
		return nil, ErrInvalidRequest.WithDescription("refresh_token is required")
	}
	if err := d.checkOptionalSecret(app, g.ClientSecret); err != nil {
		return nil, err
	}

	rec, err := d.refresh.Validate(g.RefreshToken, app.AppID)
	if err != nil {
		return nil, d.rejectGrant(g, err, "refresh token is invalid or expired")
	}
	user, ok := d.users.FindByID(rec.UserID)
	if !ok {
		return nil, d.rejectGrant(g, fmt.Errorf("user %q no longer exists", rec.UserID), "refresh token is invalid or expired")
	}

	scope := g.Scope
	if scope == "" {
		scope = DefaultUserScope
	}
	return d.userTokens(ctx, tenant, user, app, scope, "")
}

func (d *Dispatcher) password(ctx context.Context, tenant string, app *directory.Application, g PasswordGrant) (*TokenResponse, error) {
	if g.Username == "" || g.Password == "" {
		return nil, ErrInvalidRequest.WithDescription("username and password are required")
	}
	if err := d.checkOptionalSecret(app, g.ClientSecret); err != nil {
		return nil, err
	}

	user, ok := d.users.VerifyCredentials(g.Username, g.Password)
	if !ok {
		return nil, d.rejectGrant(g, errors.New("credential verification failed"), "invalid username or password")
	}

	scope := g.Scope
	if scope == "" {
		scope = DefaultUserScope
	}
	return d.userTokens(ctx, tenant, user, app, scope, "")
}

// checkOptionalSecret enforces a presented secret when the app has one.
// Omitting the secret is allowed.
func (d *Dispatcher) checkOptionalSecret(app *directory.Application, secret string) error {
	if secret == "" || app.ClientSecret == "" {
		return nil
	}
	if !d.apps.VerifySecret(app.AppID, secret) {
		return ErrInvalidClient.WithDescription("client_secret does not match")
	}
	return nil
}

// userTokens issues the access, ID and refresh triple. The refresh token
// is stored last so a signing failure leaves no state behind.
func (d *Dispatcher) userTokens(ctx context.Context, tenant string, user *directory.User, app *directory.Application, scope, nonce string) (*TokenResponse, error) {
	access, err := d.issuer.AccessToken(tenant, user, app, scope)
	if err != nil {
		return nil, d.serverError(nil, err)
	}
	idToken, err := d.issuer.IDToken(tenant, user, app, nonce)
	if err != nil {
		return nil, d.serverError(nil, err)
	}
	refresh, err := d.refresh.Issue(ctx, user.ID, app.AppID)
	if err != nil {
		return nil, d.serverError(nil, err)
	}
	d.recorder.TokenIssued(TokenKindRefresh)

	resp := d.response(scope, access)
	resp.IDToken = idToken
	resp.RefreshToken = refresh
	return resp, nil
}

func (d *Dispatcher) response(scope, access string) *TokenResponse {
	ttl := int(d.issuer.AccessTTL().Seconds())
	return &TokenResponse{
		TokenType:    "Bearer",
		ExpiresIn:    ttl,
		ExtExpiresIn: ttl,
		Scope:        scope,
		AccessToken:  access,
	}
}

// rejectGrant logs the specific cause and returns a generic invalid_grant.
func (d *Dispatcher) rejectGrant(g Grant, cause error, desc string) error {
	d.logger.Debug("grant rejected",
		"grant_type", g.GrantType(),
		"client_id", g.Client().ClientID,
		"reason", cause.Error(),
	)
	return ErrInvalidGrant.WithDescription(desc)
}

func (d *Dispatcher) serverError(g Grant, cause error) error {
	attrs := []any{"error", cause}
	if g != nil {
		attrs = append(attrs, "grant_type", g.GrantType())
	}
	d.logger.Error("token issuance failed", attrs...)
	return ErrServerError.WithDescription("failed to issue token")
}
