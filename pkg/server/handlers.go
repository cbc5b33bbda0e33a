package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/getmockd/mockidp/pkg/httputil"
	"github.com/getmockd/mockidp/pkg/oauth"
	"github.com/getmockd/mockidp/pkg/saml"
)

// ServiceInfo is the body of GET /.
type ServiceInfo struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Tenant    string            `json:"tenant"`
	Issuer    string            `json:"issuer"`
	Endpoints map[string]string `json:"endpoints"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	t := s.cfg.TenantID
	httputil.WriteOK(w, ServiceInfo{
		Service: "mockidp",
		Version: s.version,
		Status:  "running",
		Tenant:  t,
		Issuer:  s.issuer.IssuerURL(t),
		Endpoints: map[string]string{
			"discovery":           "/" + t + "/v2.0/.well-known/openid-configuration",
			"authorize":           "/" + t + "/oauth2/v2.0/authorize",
			"token":               "/" + t + "/oauth2/v2.0/token",
			"logout":              "/" + t + "/oauth2/v2.0/logout",
			"jwks":                "/" + t + "/discovery/v2.0/keys",
			"userinfo":            "/oidc/userinfo",
			"federation_metadata": "/" + t + "/FederationMetadata/2007-06/FederationMetadata.xml",
			"metrics":             "/metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, s.issuer.Discovery(tenant(r)))
}

func (s *Server) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, s.keys.PublicKeySet())
}

func (s *Server) handleFederationMetadata(w http.ResponseWriter, r *http.Request) {
	body, err := saml.Metadata{
		Tenant:    tenant(r),
		BaseURL:   s.issuer.BaseURL(),
		PublicKey: s.keys.PublicKey(),
	}.Render()
	if err != nil {
		s.log.Error("failed to render federation metadata", "error", err)
		httputil.WriteOAuthError(w, err)
		return
	}
	w.Header().Set("Content-Type", saml.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	token, ok := oauth.ParseBearer(r.Header.Get("Authorization"))
	if !ok {
		httputil.WriteOAuthError(w, oauth.ErrInvalidToken.WithDescription("missing bearer token"))
		return
	}
	info, err := s.userInfo.UserInfo(r.Context(), token)
	if err != nil {
		httputil.WriteOAuthError(w, err)
		return
	}
	httputil.WriteOK(w, info)
}

// tenant returns the {tenant} path segment.
func tenant(r *http.Request) string {
	return chi.URLParam(r, "tenant")
}
