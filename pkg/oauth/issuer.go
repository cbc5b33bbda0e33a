package oauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/getmockd/mockidp/internal/id"
	"github.com/getmockd/mockidp/pkg/directory"
)

const (
	// DefaultAccessTTL is the lifetime of access, ID and client-credentials
	// tokens.
	DefaultAccessTTL = time.Hour

	// DefaultTenant is used when a request names no tenant.
	DefaultTenant = "common"
)

// Signer signs a claim set into a compact JWT. *keys.Manager implements it.
type Signer interface {
	Sign(claims jwt.MapClaims) (string, error)
}

// IssuerConfig configures an Issuer.
type IssuerConfig struct {
	// BaseURL is the externally visible emulator URL. The tenant issuer is
	// BaseURL/<tenant>/v2.0.
	BaseURL string

	// DefaultTenant fills iss and tid when a request names no tenant.
	// Empty means DefaultTenant.
	DefaultTenant string

	AccessTTL time.Duration
	Signer    Signer
	Recorder  Recorder
	Now       func() time.Time
}

// Issuer builds and signs the three token shapes.
type Issuer struct {
	baseURL   string
	tenant    string
	accessTTL time.Duration
	signer    Signer
	recorder  Recorder
	now       func() time.Time
}

// NewIssuer validates cfg and returns an Issuer.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if cfg.Signer == nil {
		return nil, errors.New("issuer requires a signer")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("issuer requires a base URL")
	}
	tenant := cfg.DefaultTenant
	if tenant == "" {
		tenant = DefaultTenant
	}
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &Issuer{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		tenant:    tenant,
		accessTTL: ttl,
		signer:    cfg.Signer,
		recorder:  orNopRecorder(cfg.Recorder),
		now:       clockOrNow(cfg.Now),
	}, nil
}

// IssuerURL returns the iss value for tenant.
func (i *Issuer) IssuerURL(tenant string) string {
	return i.baseURL + "/" + i.tenantOrDefault(tenant) + "/v2.0"
}

// BaseURL returns the emulator base URL without a trailing slash.
func (i *Issuer) BaseURL() string {
	return i.baseURL
}

// AccessTTL returns the token lifetime in effect.
func (i *Issuer) AccessTTL() time.Duration {
	return i.accessTTL
}

// AccessToken issues a delegated access token for user acting through app.
func (i *Issuer) AccessToken(tenant string, user *directory.User, app *directory.Application, scope string) (string, error) {
	claims, err := i.baseClaims(tenant)
	if err != nil {
		return "", err
	}
	claims["aud"] = "api://" + app.AppID
	claims["azp"] = app.AppID
	claims["azpacr"] = "1"
	claims["sub"] = user.ID
	claims["oid"] = user.ID
	claims["name"] = user.DisplayName
	claims["preferred_username"] = user.UserPrincipalName
	claims["scp"] = scope

	return i.sign(claims, TokenKindAccess)
}

// IDToken issues an OIDC ID token. nonce is included only when non-empty.
func (i *Issuer) IDToken(tenant string, user *directory.User, app *directory.Application, nonce string) (string, error) {
	claims, err := i.baseClaims(tenant)
	if err != nil {
		return "", err
	}
	claims["aud"] = app.AppID
	claims["sub"] = user.ID
	claims["oid"] = user.ID
	claims["name"] = user.DisplayName
	claims["preferred_username"] = user.UserPrincipalName
	claims["email"] = user.Email()
	if user.GivenName != "" {
		claims["given_name"] = user.GivenName
	}
	if user.Surname != "" {
		claims["family_name"] = user.Surname
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}

	return i.sign(claims, TokenKindID)
}

// ClientCredentialsToken issues an app-only token. sub and oid are fresh
// identifiers since no user is involved.
func (i *Issuer) ClientCredentialsToken(tenant string, app *directory.Application, scope string) (string, error) {
	claims, err := i.baseClaims(tenant)
	if err != nil {
		return "", err
	}
	if scope == "" {
		scope = DefaultServiceScope
	}
	claims["aud"] = scope
	claims["azp"] = app.AppID
	claims["azpacr"] = "1"
	claims["appid"] = app.AppID
	claims["appidacr"] = "1"
	claims["idtyp"] = "app"
	claims["sub"] = id.UUID()
	claims["oid"] = id.UUID()

	return i.sign(claims, TokenKindClientCredentials)
}

func (i *Issuer) baseClaims(tenant string) (jwt.MapClaims, error) {
	aio, err := id.Token(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate aio: %w", err)
	}
	rh, err := id.Token(8)
	if err != nil {
		return nil, fmt.Errorf("failed to generate rh: %w", err)
	}

	now := i.now().Unix()
	return jwt.MapClaims{
		"iss": i.IssuerURL(tenant),
		"iat": now,
		"nbf": now,
		"exp": now + int64(i.accessTTL/time.Second),
		"uti": id.UUID(),
		"aio": aio,
		"rh":  rh,
		"ver": TokenVersion,
		"tid": i.tenantOrDefault(tenant),
	}, nil
}

func (i *Issuer) sign(claims jwt.MapClaims, kind string) (string, error) {
	token, err := i.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	i.recorder.TokenIssued(kind)
	return token, nil
}

func (i *Issuer) tenantOrDefault(tenant string) string {
	if tenant == "" {
		return i.tenant
	}
	return tenant
}
