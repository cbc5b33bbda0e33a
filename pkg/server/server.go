package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/getmockd/mockidp/pkg/config"
	"github.com/getmockd/mockidp/pkg/directory"
	"github.com/getmockd/mockidp/pkg/keys"
	"github.com/getmockd/mockidp/pkg/logging"
	"github.com/getmockd/mockidp/pkg/metrics"
	"github.com/getmockd/mockidp/pkg/oauth"
	"github.com/getmockd/mockidp/pkg/ratelimit"
)

// Server timeouts.
const (
	ReadHeaderTimeout = 10 * time.Second
	ShutdownTimeout   = 5 * time.Second

	maxFormBytes = 64 << 10
)

// Options wires a Server. Config, Keys, Users and Apps are required.
type Options struct {
	Config  *config.Config
	Keys    *keys.Manager
	Users   *directory.Users
	Apps    *directory.Applications
	Metrics *metrics.Registry
	Logger  *slog.Logger
	Version string

	// CORSOrigins lists origins allowed to call the API from a browser.
	// Empty allows any origin.
	CORSOrigins []string

	// TLS, when set, makes Serve wrap its listener with HTTPS.
	TLS *tls.Config

	// Now drives the code and refresh stores. Defaults to time.Now.
	Now func() time.Time
}

// Server owns the token engine and its HTTP surface.
type Server struct {
	cfg     *config.Config
	keys    *keys.Manager
	apps    *directory.Applications
	metrics *metrics.Registry
	log     *slog.Logger
	version string

	codes      *oauth.CodeStore
	refresh    *oauth.RefreshStore
	issuer     *oauth.Issuer
	dispatcher *oauth.Dispatcher
	authorizer *oauth.Authorizer
	userInfo   *oauth.UserInfoService
	sweeper    *oauth.Sweeper
	limiter    *ratelimit.PerIPLimiter

	tls       *tls.Config
	cors      corsConfig
	templates *template.Template
	router    chi.Router
}

// New assembles the stores, issuer and handlers.
func New(opts Options) (*Server, error) {
	if opts.Config == nil || opts.Keys == nil || opts.Users == nil || opts.Apps == nil {
		return nil, errors.New("server: config, keys, users and apps are required")
	}
	cfg := opts.Config
	log := logging.Component(opts.Logger, "server")

	reg := opts.Metrics
	if reg == nil {
		reg = metrics.NewRegistry()
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		keys:      opts.Keys,
		apps:      opts.Apps,
		metrics:   reg,
		log:       log,
		version:   opts.Version,
		tls:       opts.TLS,
		cors:      corsConfig{allowedOrigins: opts.CORSOrigins},
		templates: tmpl,
	}

	s.codes = oauth.NewCodeStore(oauth.CodeStoreConfig{
		TTL:  cfg.AuthorizationCodeTTL(),
		PKCE: oauth.PolicyFromStrict(cfg.StrictPKCE),
		Now:  opts.Now,
	})
	s.refresh = oauth.NewRefreshStore(oauth.RefreshStoreConfig{
		TTL: cfg.RefreshTokenTTL(),
		Now: opts.Now,
	})

	s.issuer, err = oauth.NewIssuer(oauth.IssuerConfig{
		BaseURL:       cfg.BaseURL(),
		DefaultTenant: cfg.TenantID,
		AccessTTL:     cfg.AccessTokenTTL(),
		Signer:        opts.Keys,
		Recorder:      reg,
	})
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s.dispatcher, err = oauth.NewDispatcher(oauth.DispatcherConfig{
		Users:    opts.Users,
		Apps:     opts.Apps,
		Codes:    s.codes,
		Refresh:  s.refresh,
		Issuer:   s.issuer,
		Recorder: reg,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s.authorizer, err = oauth.NewAuthorizer(oauth.AuthorizerConfig{
		Users:  opts.Users,
		Apps:   opts.Apps,
		Codes:  s.codes,
		Logger: opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s.userInfo, err = oauth.NewUserInfoService(opts.Keys, opts.Users, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s.sweeper = oauth.NewSweeper(oauth.SweeperConfig{
		Codes:    s.codes,
		Refresh:  s.refresh,
		Interval: cfg.SweepInterval,
		Recorder: reg,
		Logger:   opts.Logger,
		Now:      opts.Now,
	})

	if cfg.TokenRateLimit > 0 {
		s.limiter = ratelimit.NewPerIPLimiter(ratelimit.PerIPConfig{
			PerMinute:      cfg.TokenRateLimit,
			TrustedProxies: cfg.TrustedProxies,
		})
	}

	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sweeper returns the store sweeper. Callers run it alongside Serve.
func (s *Server) Sweeper() *oauth.Sweeper {
	return s.sweeper
}

// Serve accepts connections on ln until ctx is canceled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.tls != nil {
		ln = tls.NewListener(ln, s.tls.Clone())
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", ln.Addr().String(), "tls", s.tls != nil, "issuer", s.cfg.Issuer(""))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Close releases background resources. It does not stop Serve.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}
