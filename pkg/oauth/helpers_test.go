package oauth

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockidp/pkg/directory"
	"github.com/getmockd/mockidp/pkg/keys"
)

const (
	testBaseURL     = "http://localhost:8029"
	testTenant      = "contoso"
	testWebApp      = "test-app-123"
	testWebSecret   = "test-secret"
	testRedirectURI = "http://localhost:3029/callback"
	testServiceApp  = "service-app-456"
	testServiceSec  = "service-secret"
	testPublicApp   = "public-app"
	testUserUPN     = "test@contoso.onmicrosoft.com"
	testUserPass    = "Test123!"
	testUserNoMail  = "nomail@contoso.onmicrosoft.com"
)

var (
	keyOnce   sync.Once
	sharedKey *keys.Manager

	usersOnce   sync.Once
	sharedUsers []directory.User
)

func testKeys(t *testing.T) *keys.Manager {
	t.Helper()
	keyOnce.Do(func() {
		pk, err := rsa.GenerateKey(rand.Reader, keys.KeyBits)
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		sharedKey, err = keys.New(pk, nil)
		if err != nil {
			t.Fatalf("keys.New: %v", err)
		}
	})
	require.NotNil(t, sharedKey)
	return sharedKey
}

// fakeClock is a settable clock shared by stores and the issuer.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testDirectory(t *testing.T) (*directory.Users, *directory.Applications) {
	t.Helper()
	usersOnce.Do(func() {
		hash, err := directory.HashPassword(testUserPass)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		sharedUsers = []directory.User{
			{
				ID:                "user-test",
				UserPrincipalName: testUserUPN,
				DisplayName:       "Test User",
				GivenName:         "Test",
				Surname:           "User",
				Mail:              "test.user@contoso.com",
				PasswordHash:      hash,
			},
			{
				ID:                "user-nomail",
				UserPrincipalName: testUserNoMail,
				DisplayName:       "No Mail",
				PasswordHash:      hash,
			},
		}
	})

	users, err := directory.NewUsers(sharedUsers, nil)
	require.NoError(t, err)
	apps, err := directory.NewApplications([]directory.Application{
		{
			AppID:        testWebApp,
			DisplayName:  "Web",
			ClientSecret: testWebSecret,
			RedirectURIs: []string{testRedirectURI, "http://localhost:3029/auth"},
		},
		{
			AppID:        testServiceApp,
			DisplayName:  "Service",
			ClientSecret: testServiceSec,
		},
		{
			AppID:        testPublicApp,
			DisplayName:  "Public",
			RedirectURIs: []string{"http://localhost:5173/"},
		},
	}, nil)
	require.NoError(t, err)
	return users, apps
}

// recorder counts core events.
type recorder struct {
	mu           sync.Mutex
	grants       map[string]int
	tokens       map[string]int
	codes        int
	tokensStored int
}

func newRecorder() *recorder {
	return &recorder{grants: map[string]int{}, tokens: map[string]int{}}
}

func (r *recorder) GrantCompleted(grantType, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[grantType+"/"+outcome]++
}

func (r *recorder) TokenIssued(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[kind]++
}

func (r *recorder) StoreSizes(codes, refresh int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes, r.tokensStored = codes, refresh
}

func (r *recorder) grant(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grants[key]
}

func (r *recorder) token(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens[kind]
}

// harness wires the whole core with a fake clock.
type harness struct {
	clock      *fakeClock
	keys       *keys.Manager
	users      *directory.Users
	apps       *directory.Applications
	codes      *CodeStore
	refresh    *RefreshStore
	issuer     *Issuer
	dispatcher *Dispatcher
	authorizer *Authorizer
	recorder   *recorder
}

func newHarness(t *testing.T, policy PKCEPolicy) *harness {
	t.Helper()
	h := &harness{
		clock:    newFakeClock(),
		keys:     testKeys(t),
		recorder: newRecorder(),
	}
	h.users, h.apps = testDirectory(t)
	h.codes = NewCodeStore(CodeStoreConfig{PKCE: policy, Now: h.clock.Now})
	h.refresh = NewRefreshStore(RefreshStoreConfig{Now: h.clock.Now})

	var err error
	h.issuer, err = NewIssuer(IssuerConfig{
		BaseURL:   testBaseURL,
		AccessTTL: time.Hour,
		Signer:    h.keys,
		Recorder:  h.recorder,
		Now:       time.Now,
	})
	require.NoError(t, err)

	h.dispatcher, err = NewDispatcher(DispatcherConfig{
		Users:    h.users,
		Apps:     h.apps,
		Codes:    h.codes,
		Refresh:  h.refresh,
		Issuer:   h.issuer,
		Recorder: h.recorder,
	})
	require.NoError(t, err)

	h.authorizer, err = NewAuthorizer(AuthorizerConfig{
		Users: h.users,
		Apps:  h.apps,
		Codes: h.codes,
	})
	require.NoError(t, err)
	return h
}

// decode verifies token with the harness key and returns its claims.
func (h *harness) decode(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	claims, err := h.keys.Verify(token)
	require.NoError(t, err)
	return claims
}

// issueCode mints a code for the test user on the web app.
func (h *harness) issueCode(t *testing.T, req CodeRequest) string {
	t.Helper()
	user, ok := h.users.FindByPrincipalName(testUserUPN)
	require.True(t, ok)
	if req.UserID == "" {
		req.UserID = user.ID
	}
	if req.ClientID == "" {
		req.ClientID = testWebApp
	}
	if req.RedirectURI == "" {
		req.RedirectURI = testRedirectURI
	}
	if req.Scope == "" {
		req.Scope = "openid profile email"
	}
	code, err := h.codes.Issue(t.Context(), req)
	require.NoError(t, err)
	return code
}
