package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/getmockd/mockidp/pkg/httputil"
	"github.com/getmockd/mockidp/pkg/oauth"
	"github.com/getmockd/mockidp/pkg/ratelimit"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		s.requestLogger,
		middleware.Recoverer,
		s.metrics.Middleware(routePattern),
		s.corsMiddleware,
	)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "not_found", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteMethodNotAllowed(w)
	})

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/oidc/userinfo", s.handleUserInfo)

	r.Route("/{tenant}", func(r chi.Router) {
		r.Get("/v2.0/.well-known/openid-configuration", s.handleDiscovery)
		r.Get("/discovery/v2.0/keys", s.handleJWKS)
		r.Get("/FederationMetadata/2007-06/FederationMetadata.xml", s.handleFederationMetadata)

		r.Get("/oauth2/v2.0/authorize", s.handleAuthorize)
		r.Post("/oauth2/v2.0/authorize", s.handleLogin)
		r.With(ratelimit.Middleware(s.limiter, s.tokenRateLimited)).
			Post("/oauth2/v2.0/token", s.handleToken)
		r.Get("/oauth2/v2.0/logout", s.handleLogout)
		r.Post("/oauth2/v2.0/logout", s.handleLogout)
	})

	return r
}

// routePattern labels metrics with the matched chi pattern so tenant
// names never become label values.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func (s *Server) tokenRateLimited(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	s.log.Warn("token endpoint rate limited",
		"remote", s.limiter.ClientIP(r),
		"retry_after", retryAfter.String(),
		"request_id", middleware.GetReqID(r.Context()),
	)
	s.metrics.GrantCompleted("", oauth.ErrRateLimited.Code)
	httputil.WriteOAuthError(w, oauth.ErrRateLimited.WithDescription("too many token requests"))
}
