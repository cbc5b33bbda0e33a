package cli

import (
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/getmockd/mockidp/pkg/directory"
	"github.com/getmockd/mockidp/pkg/keys"
	"github.com/getmockd/mockidp/pkg/metrics"
	"github.com/getmockd/mockidp/pkg/server"
	mockidptls "github.com/getmockd/mockidp/pkg/tls"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCORSOrigins []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the identity provider (default command)",
	Long: `Start the identity provider.

The signing key pair is loaded from --keys-dir or generated on first start.
Users and applications are loaded from --data-dir and seeded with defaults
when the files do not exist. The server stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	addServerFlags(serveCmd.Flags())
	serveCmd.Flags().StringSliceVar(&serveCORSOrigins, "cors-origin", nil, "Allowed CORS origin (repeatable, default any)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	km, err := keys.Open(ctx, keys.Config{Dir: cfg.KeysDir, Logger: logger})
	if err != nil {
		return err
	}
	users, err := directory.OpenUsers(cfg.UsersFile(), logger)
	if err != nil {
		return err
	}
	apps, err := directory.OpenApplications(cfg.ApplicationsFile(), logger)
	if err != nil {
		return err
	}

	tlsConfig, err := mockidptls.ServerConfig(mockidptls.Options{
		CertFile: cfg.TLSCertFile,
		KeyFile:  cfg.TLSKeyFile,
		AutoCert: cfg.TLSAutoCert,
		Dir:      cfg.KeysDir,
		Hosts:    certHosts(cfg.Host, cfg.IssuerURL),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Config:      cfg,
		Keys:        km,
		Users:       users,
		Apps:        apps,
		Metrics:     metrics.NewRegistry(),
		Logger:      logger,
		Version:     Version,
		CORSOrigins: serveCORSOrigins,
		TLS:         tlsConfig,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	if tlsConfig != nil && strings.HasPrefix(cfg.IssuerURL, "http://") {
		logger.Warn("serving HTTPS but issuerUrl uses http; discovery documents will advertise http endpoints", "issuer_url", cfg.IssuerURL)
	}
	logger.Info("starting mockidp",
		"version", Version,
		"addr", cfg.Addr(),
		"issuer", cfg.Issuer(cfg.TenantID),
		"kid", km.KeyID(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	g.Go(func() error { return srv.Sweeper().Run(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("mockidp stopped")
	return nil
}

// certHosts lists the names a generated certificate must cover.
func certHosts(host, issuerURL string) []string {
	hosts := []string{host}
	if u, err := url.Parse(issuerURL); err == nil && u.Hostname() != "" {
		hosts = append(hosts, u.Hostname())
	}
	return hosts
}
