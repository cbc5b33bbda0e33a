package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/getmockd/mockidp/pkg/directory"
	"github.com/getmockd/mockidp/pkg/logging"
)

// AuthorizeRequest is an authorization request, from the query string or
// the login form. Exactly one of TestUser or Username/Password identifies
// the user.
type AuthorizeRequest struct {
	Tenant              string
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string

	// TestUser is a user principal name that is signed in without a
	// password.
	TestUser string

	Username string
	Password string
}

// AuthorizerConfig wires an Authorizer.
type AuthorizerConfig struct {
	Users  UserRegistry
	Apps   ApplicationRegistry
	Codes  *CodeStore
	Logger *slog.Logger
}

// Authorizer handles the front-channel half of the authorization code
// flow: it authenticates the user and mints the code.
type Authorizer struct {
	users  UserRegistry
	apps   ApplicationRegistry
	codes  *CodeStore
	logger *slog.Logger
}

// NewAuthorizer checks that every collaborator is present.
func NewAuthorizer(cfg AuthorizerConfig) (*Authorizer, error) {
	if cfg.Users == nil || cfg.Apps == nil || cfg.Codes == nil {
		return nil, errors.New("authorizer requires users, applications and a code store")
	}
	return &Authorizer{
		users:  cfg.Users,
		apps:   cfg.Apps,
		codes:  cfg.Codes,
		logger: logging.Component(cfg.Logger, "oauth"),
	}, nil
}

// Validate checks the client and the redirect URI. Errors from Validate
// must be shown to the user agent, never redirected.
func (a *Authorizer) Validate(req AuthorizeRequest) (*directory.Application, error) {
	app, ok := a.apps.FindByID(req.ClientID)
	if !ok {
		return nil, ErrInvalidClient.WithDescription("unknown client_id")
	}
	if req.RedirectURI == "" || !a.apps.IsRedirectURIRegistered(app.AppID, req.RedirectURI) {
		return nil, ErrInvalidRedirectURI.WithDescription("redirect_uri is not registered for this client")
	}
	return app, nil
}

// Authorize authenticates the user named by req and returns the redirect
// carrying a fresh code and the caller's state.
//
// When the returned redirect is non-empty alongside an error, the error
// has been encoded into the redirect and the caller should follow it.
// When the redirect is empty the error must be rendered locally.
func (a *Authorizer) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	app, err := a.Validate(req)
	if err != nil {
		return "", err
	}

	if req.ResponseType != ResponseTypeCode {
		target, rerr := errorRedirect(req.RedirectURI, req.State, ErrUnsupportedResponseType.WithDescription("only response_type=code is supported"))
		if rerr != nil {
			return "", ErrInvalidRedirectURI.WithDescription(rerr.Error())
		}
		return target, ErrUnsupportedResponseType
	}

	user, err := a.authenticate(req)
	if err != nil {
		return "", err
	}

	scope := req.Scope
	if scope == "" {
		scope = DefaultUserScope
	}
	code, err := a.codes.Issue(ctx, CodeRequest{
		UserID:              user.ID,
		ClientID:            app.AppID,
		RedirectURI:         req.RedirectURI,
		Scope:               scope,
		State:               req.State,
		Nonce:               req.Nonce,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	})
	if err != nil {
		a.logger.Error("failed to issue authorization code", "error", err)
		return "", ErrServerError.WithDescription("failed to issue authorization code")
	}

	a.logger.Debug("authorization code issued", "client_id", app.AppID, "user", user.UserPrincipalName)

	params := url.Values{"code": {code}}
	if req.State != "" {
		params.Set("state", req.State)
	}
	target, err := appendQuery(req.RedirectURI, params)
	if err != nil {
		return "", ErrInvalidRedirectURI.WithDescription(err.Error())
	}
	return target, nil
}

func (a *Authorizer) authenticate(req AuthorizeRequest) (*directory.User, error) {
	if req.TestUser != "" {
		user, ok := a.users.FindByPrincipalName(req.TestUser)
		if !ok {
			return nil, ErrAccessDenied.WithDescription("unknown test_user")
		}
		return user, nil
	}
	if req.Username == "" || req.Password == "" {
		return nil, ErrInvalidRequest.WithDescription("username and password are required")
	}
	user, ok := a.users.VerifyCredentials(req.Username, req.Password)
	if !ok {
		a.logger.Debug("login failed", "username", req.Username)
		return nil, ErrAccessDenied.WithDescription("invalid username or password")
	}
	return user, nil
}

func errorRedirect(redirectURI, state string, oerr *Error) (string, error) {
	params := url.Values{"error": {oerr.Code}}
	if oerr.Description != "" {
		params.Set("error_description", oerr.Description)
	}
	if state != "" {
		params.Set("state", state)
	}
	return appendQuery(redirectURI, params)
}

// appendQuery adds params to uri, keeping any query it already has.
func appendQuery(uri string, params url.Values) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid redirect_uri: %w", err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
