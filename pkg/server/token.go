package server

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/getmockd/mockidp/pkg/httputil"
	"github.com/getmockd/mockidp/pkg/oauth"
)

// handleToken runs one grant exchange.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		httputil.WriteOAuthError(w, oauth.ErrInvalidRequest.WithDescription("malformed form body"))
		return
	}

	grant, err := oauth.ParseGrant(r.PostForm, basicAuth(r))
	if err != nil {
		s.metrics.GrantCompleted(r.PostForm.Get("grant_type"), oauth.AsError(err).Code)
		httputil.WriteOAuthError(w, err)
		return
	}

	resp, err := s.dispatcher.Exchange(r.Context(), tenant(r), grant)
	if err != nil {
		s.log.Debug("token request rejected",
			"grant_type", grant.GrantType(),
			"client_id", grant.Client().ClientID,
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
		)
		httputil.WriteOAuthError(w, err)
		return
	}
	httputil.WriteNoStore(w, resp)
}

// basicAuth returns HTTP Basic client credentials, form-decoded as
// RFC 6749 section 2.3.1 requires, or nil when absent.
func basicAuth(r *http.Request) *oauth.ClientAuth {
	id, secret, ok := r.BasicAuth()
	if !ok {
		return nil
	}
	if v, err := url.QueryUnescape(id); err == nil {
		id = v
	}
	if v, err := url.QueryUnescape(secret); err == nil {
		secret = v
	}
	return &oauth.ClientAuth{ClientID: id, ClientSecret: secret}
}
