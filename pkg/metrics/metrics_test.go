package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Recorder(t *testing.T) {
	r := NewRegistry()

	r.GrantCompleted("client_credentials", "success")
	r.GrantCompleted("client_credentials", "success")
	r.GrantCompleted("authorization_code", "invalid_grant")
	r.GrantCompleted("", "unsupported_grant_type")
	r.TokenIssued("access")
	r.TokenIssued("id")
	r.TokenIssued("access")
	r.StoreSizes(3, 7)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.grants.WithLabelValues("client_credentials", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.grants.WithLabelValues("authorization_code", "invalid_grant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.grants.WithLabelValues("unknown", "unsupported_grant_type")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.tokensIssued.WithLabelValues("access")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tokensIssued.WithLabelValues("id")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.codes))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.refreshTokens))

	r.StoreSizes(0, 1)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.codes))
}

func TestRegistry_Isolated(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()

	a.TokenIssued("refresh")
	assert.Equal(t, 1, testutil.CollectAndCount(a.tokensIssued))
	assert.Equal(t, 0, testutil.CollectAndCount(b.tokensIssued))
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				r.GrantCompleted("password", "success")
				r.TokenIssued("access")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000.0, testutil.ToFloat64(r.grants.WithLabelValues("password", "success")))
	assert.Equal(t, 1000.0, testutil.ToFloat64(r.tokensIssued.WithLabelValues("access")))
}

func TestMiddleware(t *testing.T) {
	r := NewRegistry()

	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	mux.HandleFunc("/denied", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.WriteHeader(http.StatusInternalServerError)
	})
	h := r.Middleware(nil)(mux)

	for _, path := range []string{"/ok", "/ok", "/denied"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("GET", "/ok", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("GET", "/denied", "401")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.httpDuration))
}

func TestMiddleware_CustomRoute(t *testing.T) {
	r := NewRegistry()
	h := r.Middleware(func(*http.Request) string { return "/{tenant}/v2.0" })(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}),
	)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/contoso/v2.0", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fabrikam/v2.0", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("GET", "/{tenant}/v2.0", "200")))
}

func TestHandler(t *testing.T) {
	r := NewRegistry()
	r.GrantCompleted("refresh_token", "success")
	r.StoreSizes(4, 2)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, want := range []string{
		`mockidp_grants_total{grant_type="refresh_token",outcome="success"} 1`,
		"mockidp_authorization_codes 4",
		"mockidp_refresh_tokens 2",
		"mockidp_uptime_seconds",
		"go_goroutines",
	} {
		assert.True(t, strings.Contains(body, want), "missing %q", want)
	}
}

func TestRegistry_ClientInputLabelsBounded(t *testing.T) {
	r := NewRegistry()

	for i := range 50 {
		r.GrantCompleted("urn:made-up:"+strconv.Itoa(i), "unsupported_grant_type")
		r.RecordHTTPRequest("VERB"+strconv.Itoa(i), "unmatched", http.StatusMethodNotAllowed, time.Millisecond)
	}
	r.GrantCompleted("refresh_token", "success")
	r.RecordHTTPRequest(http.MethodPost, "/{tenant}/oauth2/v2.0/token", http.StatusOK, time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(r.grants))
	assert.Equal(t, 50.0, testutil.ToFloat64(r.grants.WithLabelValues(GrantTypeUnsupported, "unsupported_grant_type")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.grants.WithLabelValues("refresh_token", "success")))

	assert.Equal(t, 2, testutil.CollectAndCount(r.httpRequests))
	assert.Equal(t, 50.0, testutil.ToFloat64(r.httpRequests.WithLabelValues(MethodOther, "unmatched", "405")))
}
