package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/getmockd/mockidp/pkg/config"
	"github.com/getmockd/mockidp/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"host":             "host",
	"port":             "port",
	"tenant":           "tenantId",
	"issuer-url":       "issuerUrl",
	"data-dir":         "dataDir",
	"keys-dir":         "keysDir",
	"strict-pkce":      "strictPkce",
	"token-rate-limit": "tokenRateLimit",
	"sweep-interval":   "sweepInterval",
	"trusted-proxies":  "trustedProxies",
	"tls-cert":         "tlsCertFile",
	"tls-key":          "tlsKeyFile",
	"tls-auto-cert":    "tlsAutoCert",
	"log-level":        "logLevel",
	"log-format":       "logFormat",
	"log-file":         "logFile",
}

// addServerFlags registers the flags shared by serve and config.
func addServerFlags(fs *pflag.FlagSet) {
	fs.String("host", "", "Listen host (default 0.0.0.0)")
	fs.Int("port", 0, "Listen port (default 8029)")
	fs.String("tenant", "", "Default tenant ID (default common)")
	fs.String("issuer-url", "", "Public base URL used in issuer and endpoint URLs")
	fs.Bool("strict-pkce", false, "Verify code_verifier against the recorded PKCE challenge")
	fs.Int("token-rate-limit", 0, "Token requests per minute per client IP (0 disables)")
	fs.Duration("sweep-interval", 0, "Interval between expired code and refresh token sweeps")
	fs.String("trusted-proxies", "", "Comma-separated CIDRs whose forwarding headers identify the client")
	fs.String("tls-cert", "", "Serve HTTPS with this PEM certificate")
	fs.String("tls-key", "", "Private key for --tls-cert")
	fs.Bool("tls-auto-cert", false, "Serve HTTPS with a self-signed certificate kept in the keys directory")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
	fs.String("log-format", "", "Log format (text, json)")
	fs.String("log-file", "", "Also write JSON logs to this file")
}

// loadConfig resolves configuration for cmd: defaults, then --config,
// then environment, then every flag the user actually set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, cmd.Flags()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		if serr := cfg.Set(key, f.Value.String(), config.SourceFlag); serr != nil {
			err = fmt.Errorf("--%s: %w", f.Name, serr)
		}
	})
	return err
}

// newLogger builds the process logger. The returned close func releases
// the log file, if any.
func newLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, func(), error) {
	lc := logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
		Output: stderr,
	}
	closeFn := func() {}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 - operator supplied path
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		lc.File = f
		closeFn = func() { _ = f.Close() }
	}
	return logging.New(lc), closeFn, nil
}
