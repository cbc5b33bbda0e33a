package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockidp/pkg/config"
	"github.com/getmockd/mockidp/pkg/directory"
	"github.com/getmockd/mockidp/pkg/keys"
	"github.com/getmockd/mockidp/pkg/oauth"
	mockidptls "github.com/getmockd/mockidp/pkg/tls"
)

const (
	testTenant   = "contoso"
	webApp       = "test-app-123"
	webSecret    = "test-secret"
	serviceApp   = "service-app-456"
	serviceSec   = "service-secret"
	callbackURI  = "http://localhost:3029/callback"
	testUserUPN  = "test@contoso.onmicrosoft.com"
	testUserPass = "Test123!"
)

var (
	fixtureOnce sync.Once
	sharedKeys  *keys.Manager
	sharedUsers []directory.User
)

func fixtures(t *testing.T) (*keys.Manager, []directory.User) {
	t.Helper()
	fixtureOnce.Do(func() {
		pk, err := rsa.GenerateKey(rand.Reader, keys.KeyBits)
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		if sharedKeys, err = keys.New(pk, nil); err != nil {
			t.Fatalf("keys.New: %v", err)
		}
		hash, err := directory.HashPassword(testUserPass)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		sharedUsers = []directory.User{{
			ID:                "2f1a2b3c-0000-4000-8000-000000000001",
			UserPrincipalName: testUserUPN,
			DisplayName:       "Test User",
			GivenName:         "Test",
			Surname:           "User",
			PasswordHash:      hash,
		}}
	})
	require.NotNil(t, sharedKeys)
	return sharedKeys, sharedUsers
}

type testServer struct {
	*Server
	url    string
	client *http.Client
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	km, seed := fixtures(t)

	cfg := config.NewDefault()
	for _, m := range mutate {
		m(cfg)
	}
	users, err := directory.NewUsers(seed, nil)
	require.NoError(t, err)
	apps, err := directory.NewApplications(directory.DefaultApplications(), nil)
	require.NoError(t, err)

	s, err := New(Options{Config: cfg, Keys: km, Users: users, Apps: apps, Version: "test"})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	client := ts.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return &testServer{Server: s, url: ts.URL, client: client}
}

func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := ts.client.Get(ts.url + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := ts.client.PostForm(ts.url+path, form)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func tokenPath(tenant string) string { return "/" + tenant + "/oauth2/v2.0/token" }

func TestRootAndHealth(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "healthy"}, decodeBody[map[string]string](t, resp))

	info := decodeBody[ServiceInfo](t, ts.get(t, "/"))
	assert.Equal(t, "mockidp", info.Service)
	assert.Equal(t, "test", info.Version)
	assert.Equal(t, "http://localhost:8029/common/v2.0", info.Issuer)
	assert.Equal(t, "/common/discovery/v2.0/keys", info.Endpoints["jwks"])
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/contoso/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeBody[map[string]string](t, resp)["error"])
}

func TestDiscoveryAndJWKS(t *testing.T) {
	ts := newTestServer(t)

	doc := decodeBody[oauth.OpenIDConfiguration](t, ts.get(t, "/contoso/v2.0/.well-known/openid-configuration"))
	assert.Equal(t, "http://localhost:8029/contoso/v2.0", doc.Issuer)
	assert.Equal(t, "http://localhost:8029/contoso/discovery/v2.0/keys", doc.JwksURI)

	var set struct {
		Keys []map[string]any `json:"keys"`
	}
	resp := ts.get(t, "/contoso/discovery/v2.0/keys")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&set))
	require.Len(t, set.Keys, 1)
	assert.Equal(t, ts.keys.KeyID(), set.Keys[0]["kid"])
	assert.Equal(t, "RSA", set.Keys[0]["kty"])
	assert.Equal(t, "sig", set.Keys[0]["use"])
	assert.Equal(t, "RS256", set.Keys[0]["alg"])
}

func TestFederationMetadata(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/contoso/FederationMetadata/2007-06/FederationMetadata.xml")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/xml", resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `entityID="https://sts.windows.net/contoso/"`)
	assert.Contains(t, string(body), "http://localhost:8029/contoso/saml2")
}

func TestClientCredentials(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.postForm(t, tokenPath(testTenant), url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {serviceApp},
		"client_secret": {serviceSec},
		"scope":         {"api://.default"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no-cache", resp.Header.Get("Pragma"))

	tok := decodeBody[oauth.TokenResponse](t, resp)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, 3600, tok.ExpiresIn)
	assert.Empty(t, tok.RefreshToken)
	assert.Empty(t, tok.IDToken)

	claims, err := ts.keys.Verify(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, serviceApp, claims["azp"])
	assert.Equal(t, "2.0", claims["ver"])
	assert.Equal(t, "http://localhost:8029/contoso/v2.0", claims["iss"])
}

func TestClientCredentials_BasicAuth(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.url+tokenPath(testTenant),
		strings.NewReader("grant_type=client_credentials&scope=api%3A%2F%2F.default"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(serviceApp, serviceSec)

	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, ts.url+tokenPath(testTenant),
		strings.NewReader("grant_type=client_credentials"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(serviceApp, "wrong")
	resp, err = ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))
}

func TestTokenErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		form   url.Values
		status int
		code   string
	}{
		{"unsupported grant", url.Values{"grant_type": {"device_code"}, "client_id": {webApp}}, 400, "unsupported_grant_type"},
		{"missing grant type", url.Values{"client_id": {webApp}}, 400, "invalid_request"},
		{"unknown client", url.Values{"grant_type": {"client_credentials"}, "client_id": {"ghost"}}, 401, "invalid_client"},
		{"bad code", url.Values{"grant_type": {"authorization_code"}, "client_id": {webApp}, "client_secret": {webSecret}, "code": {"nope"}, "redirect_uri": {callbackURI}}, 400, "invalid_grant"},
		{"bad refresh", url.Values{"grant_type": {"refresh_token"}, "client_id": {webApp}, "client_secret": {webSecret}, "refresh_token": {"nope"}}, 400, "invalid_grant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.postForm(t, tokenPath(testTenant), tt.form)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
			assert.Equal(t, tt.code, decodeBody[oauth.ErrorResponse](t, resp).Error)
		})
	}
}

func TestAuthorizationCodeFlow(t *testing.T) {
	ts := newTestServer(t)

	q := url.Values{
		"client_id":     {webApp},
		"redirect_uri":  {callbackURI},
		"response_type": {"code"},
		"scope":         {"openid profile email offline_access"},
		"state":         {"st-1"},
		"nonce":         {"n-1"},
		"test_user":     {testUserUPN},
	}
	resp := ts.get(t, "/contoso/oauth2/v2.0/authorize?"+q.Encode())
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "st-1", loc.Query().Get("state"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)

	exchange := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {webApp},
		"client_secret": {webSecret},
		"code":          {code},
		"redirect_uri":  {callbackURI},
	}
	resp = ts.postForm(t, tokenPath(testTenant), exchange)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok := decodeBody[oauth.TokenResponse](t, resp)
	require.NotEmpty(t, tok.IDToken)
	require.NotEmpty(t, tok.RefreshToken)

	idClaims, err := ts.keys.Verify(tok.IDToken)
	require.NoError(t, err)
	assert.Equal(t, "n-1", idClaims["nonce"])
	assert.Equal(t, webApp, idClaims["aud"])

	// Every token names the JWKS key.
	header, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, jwt.MapClaims{})
	require.NoError(t, err)
	assert.Equal(t, ts.keys.KeyID(), header.Header["kid"])

	// Codes are single use.
	resp = ts.postForm(t, tokenPath(testTenant), exchange)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_grant", decodeBody[oauth.ErrorResponse](t, resp).Error)

	// User info.
	req, _ := http.NewRequest(http.MethodGet, ts.url+"/oidc/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	uiResp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer uiResp.Body.Close()
	require.Equal(t, http.StatusOK, uiResp.StatusCode)
	info := decodeBody[oauth.UserInfo](t, uiResp)
	assert.Equal(t, testUserUPN, info.PreferredUsername)
	assert.Equal(t, testUserUPN, info.Email)

	// Refresh.
	resp = ts.postForm(t, tokenPath(testTenant), url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {webApp},
		"client_secret": {webSecret},
		"refresh_token": {tok.RefreshToken},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decodeBody[oauth.TokenResponse](t, resp).AccessToken)
}

func TestUserInfo_Unauthorized(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/oidc/userinfo")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, `Bearer error="invalid_token"`, resp.Header.Get("WWW-Authenticate"))

	req, _ := http.NewRequest(http.MethodGet, ts.url+"/oidc/userinfo", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	r2, err := ts.client.Do(req)
	require.NoError(t, err)
	defer r2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, r2.StatusCode)
	assert.Equal(t, "invalid_token", decodeBody[oauth.ErrorResponse](t, r2).Error)
}

func TestAuthorize_LoginForm(t *testing.T) {
	ts := newTestServer(t)

	q := url.Values{
		"client_id":     {webApp},
		"redirect_uri":  {callbackURI},
		"response_type": {"code"},
		"state":         {`"><script>alert(1)</script>`},
	}
	resp := ts.get(t, "/contoso/oauth2/v2.0/authorize?"+q.Encode())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	assert.Contains(t, page, "Test Web Application")
	assert.Contains(t, page, `action="/contoso/oauth2/v2.0/authorize"`)
	assert.Contains(t, page, `name="client_id" value="test-app-123"`)
	assert.NotContains(t, page, "<script>alert(1)</script>")
}

func TestAuthorize_LoginSubmit(t *testing.T) {
	ts := newTestServer(t)

	form := url.Values{
		"client_id":     {webApp},
		"redirect_uri":  {callbackURI},
		"response_type": {"code"},
		"state":         {"abc"},
		"username":      {testUserUPN},
		"password":      {"wrong"},
	}
	resp := ts.postForm(t, "/contoso/oauth2/v2.0/authorize", form)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "incorrect")

	form.Set("password", testUserPass)
	resp = ts.postForm(t, "/contoso/oauth2/v2.0/authorize", form)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, _ := url.Parse(resp.Header.Get("Location"))
	assert.Equal(t, "abc", loc.Query().Get("state"))
	assert.NotEmpty(t, loc.Query().Get("code"))
}

func TestAuthorize_Errors(t *testing.T) {
	ts := newTestServer(t)

	base := url.Values{
		"client_id":     {webApp},
		"redirect_uri":  {callbackURI},
		"response_type": {"code"},
		"state":         {"s"},
	}

	t.Run("unknown client is shown, not redirected", func(t *testing.T) {
		q := url.Values{}
		for k, v := range base {
			q[k] = v
		}
		q.Set("client_id", "ghost")
		resp := ts.get(t, "/contoso/oauth2/v2.0/authorize?"+q.Encode())
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("Location"))
	})

	t.Run("unregistered redirect is shown, not redirected", func(t *testing.T) {
		q := url.Values{}
		for k, v := range base {
			q[k] = v
		}
		q.Set("redirect_uri", "http://evil.example/cb")
		resp := ts.get(t, "/contoso/oauth2/v2.0/authorize?"+q.Encode())
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "invalid_redirect_uri", decodeBody[oauth.ErrorResponse](t, resp).Error)
	})

	t.Run("unsupported response type is redirected", func(t *testing.T) {
		q := url.Values{}
		for k, v := range base {
			q[k] = v
		}
		q.Set("response_type", "token")
		resp := ts.get(t, "/contoso/oauth2/v2.0/authorize?"+q.Encode())
		require.Equal(t, http.StatusFound, resp.StatusCode)
		loc, _ := url.Parse(resp.Header.Get("Location"))
		assert.Equal(t, "unsupported_response_type", loc.Query().Get("error"))
		assert.Equal(t, "s", loc.Query().Get("state"))
	})
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.get(t, "/contoso/oauth2/v2.0/logout?post_logout_redirect_uri="+url.QueryEscape("http://localhost:3029/bye?x=1")+"&state=s9")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, _ := url.Parse(resp.Header.Get("Location"))
	assert.Equal(t, "/bye", loc.Path)
	assert.Equal(t, "1", loc.Query().Get("x"))
	assert.Equal(t, "s9", loc.Query().Get("state"))

	resp = ts.postForm(t, "/contoso/oauth2/v2.0/logout", url.Values{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "You have been signed out")

	resp = ts.get(t, "/contoso/oauth2/v2.0/logout?post_logout_redirect_uri=relative/path")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTokenRateLimit(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.TokenRateLimit = 2 })

	form := url.Values{"grant_type": {"client_credentials"}, "client_id": {serviceApp}, "client_secret": {serviceSec}}
	for range 2 {
		resp := ts.postForm(t, tokenPath(testTenant), form)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := ts.postForm(t, tokenPath(testTenant), form)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeBody[oauth.ErrorResponse](t, resp).Error)

	// Other endpoints are not limited.
	assert.Equal(t, http.StatusOK, ts.get(t, "/health").StatusCode)
}

func TestTokenRateLimit_TrustedProxy(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.TokenRateLimit = 1
		c.TrustedProxies = []string{"127.0.0.0/8", "::1"}
	})

	post := func(clientIP string) *http.Response {
		t.Helper()
		form := url.Values{"grant_type": {"client_credentials"}, "client_id": {serviceApp}, "client_secret": {serviceSec}}
		req, err := http.NewRequest(http.MethodPost, ts.url+tokenPath(testTenant), strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", clientIP)
		resp, err := ts.client.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	// Each forwarded client gets its own bucket behind the proxy.
	assert.Equal(t, http.StatusOK, post("203.0.113.10").StatusCode)
	assert.Equal(t, http.StatusOK, post("203.0.113.20").StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, post("203.0.113.10").StatusCode)
}

func TestTokenRateLimit_UntrustedForwardedFor(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.TokenRateLimit = 1 })

	post := func(clientIP string) int {
		form := url.Values{"grant_type": {"client_credentials"}, "client_id": {serviceApp}, "client_secret": {serviceSec}}
		req, _ := http.NewRequest(http.MethodPost, ts.url+tokenPath(testTenant), strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", clientIP)
		resp, err := ts.client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	// Without trusted proxies the header is ignored and both share the peer's bucket.
	assert.Equal(t, http.StatusOK, post("203.0.113.10"))
	assert.Equal(t, http.StatusTooManyRequests, post("203.0.113.20"))
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.url+tokenPath(testTenant), nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	ts.postForm(t, tokenPath(testTenant), url.Values{"grant_type": {"client_credentials"}, "client_id": {serviceApp}, "client_secret": {serviceSec}})
	ts.postForm(t, tokenPath("fabrikam"), url.Values{"grant_type": {"client_credentials"}, "client_id": {"ghost"}})

	resp := ts.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	assert.Contains(t, text, `mockidp_grants_total{grant_type="client_credentials",outcome="success"} 1`)
	assert.Contains(t, text, `mockidp_grants_total{grant_type="client_credentials",outcome="invalid_client"} 1`)
	assert.Contains(t, text, `mockidp_tokens_issued_total{kind="client_credentials"} 1`)
	assert.Contains(t, text, `route="/{tenant}/oauth2/v2.0/token"`)
	assert.NotContains(t, text, `route="/fabrikam`)
}

func TestMetrics_ClientInputCardinality(t *testing.T) {
	ts := newTestServer(t)

	for i := range 50 {
		ts.postForm(t, tokenPath(testTenant), url.Values{"grant_type": {fmt.Sprintf("attacker-%d", i)}})
		req, _ := http.NewRequest(fmt.Sprintf("VERB%d", i), ts.url+"/health", nil)
		resp, err := ts.client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	resp := ts.get(t, "/metrics")
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	assert.Contains(t, text, `mockidp_grants_total{grant_type="unsupported",outcome="unsupported_grant_type"} 50`)
	assert.NotContains(t, text, "attacker-")
	assert.NotContains(t, text, `method="VERB`)
	assert.Contains(t, text, `method="other"`)

	var grantSeries int
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "mockidp_grants_total{") {
			grantSeries++
		}
	}
	assert.Equal(t, 1, grantSeries)
}

func TestServe_Shutdown(t *testing.T) {
	ts := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServe_TLS(t *testing.T) {
	km, seed := fixtures(t)
	users, err := directory.NewUsers(seed, nil)
	require.NoError(t, err)
	apps, err := directory.NewApplications(directory.DefaultApplications(), nil)
	require.NoError(t, err)

	tlsConfig, err := mockidptls.ServerConfig(mockidptls.Options{AutoCert: true, Dir: t.TempDir()})
	require.NoError(t, err)

	s, err := New(Options{Config: config.NewDefault(), Keys: km, Users: users, Apps: apps, TLS: tlsConfig})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	pool := x509.NewCertPool()
	pool.AddCert(tlsConfig.Certificates[0].Leaf)
	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
	}}

	require.Eventually(t, func() bool {
		resp, err := client.Get("https://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	// plain http is refused on the TLS listener
	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err == nil {
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
