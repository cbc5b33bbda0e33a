package oauth

import (
	"net/url"
)

// ClientAuth is the client identity presented with a token request, from
// HTTP Basic or from the client_id/client_secret form fields.
type ClientAuth struct {
	ClientID     string
	ClientSecret string
}

// Grant is one token request, parsed. The set of implementations is
// closed: AuthorizationCodeGrant, ClientCredentialsGrant,
// RefreshTokenGrant and PasswordGrant.
type Grant interface {
	GrantType() string
	Client() ClientAuth
	grant()
}

// AuthorizationCodeGrant redeems a code issued by the authorize endpoint.
type AuthorizationCodeGrant struct {
	ClientAuth
	Code         string
	RedirectURI  string
	CodeVerifier string
}

// ClientCredentialsGrant requests an app-only token.
type ClientCredentialsGrant struct {
	ClientAuth
	Scope string
}

// RefreshTokenGrant exchanges a refresh token for a new token set.
type RefreshTokenGrant struct {
	ClientAuth
	RefreshToken string
	Scope        string
}

// PasswordGrant is the resource-owner password credentials flow.
type PasswordGrant struct {
	ClientAuth
	Username string
	Password string
	Scope    string
}

func (AuthorizationCodeGrant) GrantType() string { return GrantTypeAuthorizationCode }
func (ClientCredentialsGrant) GrantType() string { return GrantTypeClientCredentials }
func (RefreshTokenGrant) GrantType() string      { return GrantTypeRefreshToken }
func (PasswordGrant) GrantType() string          { return GrantTypePassword }

func (g AuthorizationCodeGrant) Client() ClientAuth { return g.ClientAuth }
func (g ClientCredentialsGrant) Client() ClientAuth { return g.ClientAuth }
func (g RefreshTokenGrant) Client() ClientAuth      { return g.ClientAuth }
func (g PasswordGrant) Client() ClientAuth          { return g.ClientAuth }

func (AuthorizationCodeGrant) grant() {}
func (ClientCredentialsGrant) grant() {}
func (RefreshTokenGrant) grant()      {}
func (PasswordGrant) grant()          {}

// ParseGrant builds the Grant variant named by form's grant_type. basic,
// when non-nil, holds HTTP Basic credentials and takes precedence over the
// form fields. Unknown grant types fail with ErrUnsupportedGrantType.
// Required fields are not checked here; Dispatcher.Exchange does that after
// resolving the client.
func ParseGrant(form url.Values, basic *ClientAuth) (Grant, error) {
	client := ClientAuth{
		ClientID:     form.Get("client_id"),
		ClientSecret: form.Get("client_secret"),
	}
	if basic != nil {
		client = *basic
	}

	switch gt := form.Get("grant_type"); gt {
	case GrantTypeAuthorizationCode:
		return AuthorizationCodeGrant{
			ClientAuth:   client,
			Code:         form.Get("code"),
			RedirectURI:  form.Get("redirect_uri"),
			CodeVerifier: form.Get("code_verifier"),
		}, nil
	case GrantTypeClientCredentials:
		return ClientCredentialsGrant{
			ClientAuth: client,
			Scope:      form.Get("scope"),
		}, nil
	case GrantTypeRefreshToken:
		return RefreshTokenGrant{
			ClientAuth:   client,
			RefreshToken: form.Get("refresh_token"),
			Scope:        form.Get("scope"),
		}, nil
	case GrantTypePassword:
		return PasswordGrant{
			ClientAuth: client,
			Username:   form.Get("username"),
			Password:   form.Get("password"),
			Scope:      form.Get("scope"),
		}, nil
	case "":
		return nil, ErrInvalidRequest.WithDescription("grant_type is required")
	default:
		return nil, ErrUnsupportedGrantType.WithDescription("grant_type " + gt + " is not supported")
	}
}
