package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/getmockd/mockidp/pkg/httputil"
	"github.com/getmockd/mockidp/pkg/oauth"
)

// handleAuthorize serves GET /authorize. A test_user parameter signs that
// user in immediately; otherwise the login form is shown.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := authorizeRequest(tenant(r), q)
	req.TestUser = q.Get("test_user")

	if req.TestUser != "" || req.ResponseType != oauth.ResponseTypeCode {
		s.authorize(w, r, req)
		return
	}

	app, err := s.authorizer.Validate(req)
	if err != nil {
		httputil.WriteOAuthError(w, err)
		return
	}
	s.render(w, http.StatusOK, loginTemplate, s.loginPage(req, app.DisplayName, ""))
}

// handleLogin serves the login form submission.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		httputil.WriteOAuthError(w, oauth.ErrInvalidRequest.WithDescription("malformed form body"))
		return
	}

	req := authorizeRequest(tenant(r), r.PostForm)
	if req.ResponseType == "" {
		req.ResponseType = oauth.ResponseTypeCode
	}
	req.Username = r.PostForm.Get("username")
	req.Password = r.PostForm.Get("password")
	if req.Username == "" || req.Password == "" {
		s.loginFailed(w, req, "Enter your username and password.")
		return
	}
	s.authorize(w, r, req)
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request, req oauth.AuthorizeRequest) {
	target, err := s.authorizer.Authorize(r.Context(), req)
	if target != "" {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	if req.Username != "" && errors.Is(err, oauth.ErrAccessDenied) {
		s.loginFailed(w, req, "Your username or password is incorrect.")
		return
	}
	httputil.WriteOAuthError(w, err)
}

func (s *Server) loginFailed(w http.ResponseWriter, req oauth.AuthorizeRequest, msg string) {
	app, err := s.authorizer.Validate(req)
	if err != nil {
		httputil.WriteOAuthError(w, err)
		return
	}
	s.render(w, http.StatusUnauthorized, loginTemplate, s.loginPage(req, app.DisplayName, msg))
}

func (s *Server) loginPage(req oauth.AuthorizeRequest, appName, msg string) loginPage {
	return loginPage{
		Tenant:              req.Tenant,
		AppName:             appName,
		Error:               msg,
		Username:            req.Username,
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		ResponseType:        req.ResponseType,
		Scope:               req.Scope,
		State:               req.State,
		Nonce:               req.Nonce,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	}
}

func authorizeRequest(tenant string, v url.Values) oauth.AuthorizeRequest {
	return oauth.AuthorizeRequest{
		Tenant:              tenant,
		ClientID:            v.Get("client_id"),
		RedirectURI:         v.Get("redirect_uri"),
		ResponseType:        v.Get("response_type"),
		Scope:               v.Get("scope"),
		State:               v.Get("state"),
		Nonce:               v.Get("nonce"),
		CodeChallenge:       v.Get("code_challenge"),
		CodeChallengeMethod: v.Get("code_challenge_method"),
	}
}

// handleLogout ends the session. There is no server-side session, so it
// only redirects to post_logout_redirect_uri (with state) or shows the
// signed-out page.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		httputil.WriteOAuthError(w, oauth.ErrInvalidRequest.WithDescription("malformed form body"))
		return
	}

	target := r.Form.Get("post_logout_redirect_uri")
	if target == "" {
		s.render(w, http.StatusOK, signedOutTemplate, nil)
		return
	}

	u, err := url.Parse(target)
	if err != nil || !u.IsAbs() {
		httputil.WriteOAuthError(w, oauth.ErrInvalidRequest.WithDescription("post_logout_redirect_uri must be an absolute URL"))
		return
	}
	if state := r.Form.Get("state"); state != "" {
		q := u.Query()
		q.Set("state", state)
		u.RawQuery = q.Encode()
	}
	http.Redirect(w, r, u.String(), http.StatusFound)
}
