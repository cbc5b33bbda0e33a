package tls

import (
	"crypto/ecdsa"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/getmockd/mockidp/pkg/logging"
)

// File names of the generated certificate inside the keys directory.
const (
	CertFile = "tls_cert.pem"
	KeyFile  = "tls_key.pem"
)

// renewBefore is how close to expiry a generated certificate is replaced.
const renewBefore = 7 * 24 * time.Hour

// Options selects the certificate source. CertFile and KeyFile win over
// AutoCert.
type Options struct {
	CertFile string
	KeyFile  string

	// AutoCert generates a self-signed certificate in Dir when it is
	// missing or about to expire.
	AutoCert bool
	Dir      string
	Hosts    []string

	Logger *slog.Logger
	Now    func() time.Time
}

// ServerConfig builds the listener TLS configuration. It returns nil when
// neither files nor AutoCert are configured.
func ServerConfig(opts Options) (*tls.Config, error) {
	logger := logging.Component(opts.Logger, "tls")

	var cert tls.Certificate
	switch {
	case opts.CertFile != "" || opts.KeyFile != "":
		if opts.CertFile == "" || opts.KeyFile == "" {
			return nil, errors.New("both a certificate and a key file are required")
		}
		var err error
		cert, err = tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load certificate: %w", err)
		}
		logger.Info("loaded TLS certificate", "cert", opts.CertFile)
	case opts.AutoCert:
		gen, err := EnsureCertificate(opts.Dir, DefaultCertificateConfig(opts.Hosts...), opts.Now)
		if err != nil {
			return nil, err
		}
		cert, err = tls.X509KeyPair(gen.CertPEM, gen.KeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS certificate: %w", err)
		}
		logger.Info("using self-signed TLS certificate",
			"dir", opts.Dir,
			"hosts", gen.Certificate.DNSNames,
			"not_after", gen.Certificate.NotAfter,
		)
	default:
		return nil, nil
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// EnsureCertificate loads the generated certificate from dir, or creates
// and saves a new one when it is missing, close to expiry or does not
// cover cfg.Hosts.
func EnsureCertificate(dir string, cfg *CertificateConfig, now func() time.Time) (*GeneratedCertificate, error) {
	if dir == "" {
		return nil, errors.New("certificate directory is required")
	}
	if now == nil {
		now = time.Now
	}
	certPath := filepath.Join(dir, CertFile)
	keyPath := filepath.Join(dir, KeyFile)

	if existing, err := loadCertFromFiles(certPath, keyPath); err == nil {
		if existing.Certificate.NotAfter.Sub(now()) > renewBefore && covers(existing, cfg.Hosts) {
			return existing, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg.Now = now
	gen, err := GenerateSelfSignedCert(cfg)
	if err != nil {
		return nil, err
	}
	if err := saveCertToFiles(gen, certPath, keyPath); err != nil {
		return nil, err
	}
	return gen, nil
}

func covers(gen *GeneratedCertificate, hosts []string) bool {
	for _, h := range hosts {
		if gen.Certificate.VerifyHostname(h) != nil {
			return false
		}
	}
	return true
}

func saveCertToFiles(cert *GeneratedCertificate, certPath, keyPath string) error {
	if err := os.MkdirAll(filepath.Dir(certPath), 0o700); err != nil {
		return fmt.Errorf("failed to create certificate directory: %w", err)
	}
	if err := os.WriteFile(certPath, cert.CertPEM, 0o644); err != nil { // #nosec G306 - public certificate
		return fmt.Errorf("failed to write certificate file: %w", err)
	}
	if err := os.WriteFile(keyPath, cert.KeyPEM, 0o600); err != nil {
		_ = os.Remove(certPath)
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

func loadCertFromFiles(certPath, keyPath string) (*GeneratedCertificate, error) {
	certPEM, err := os.ReadFile(certPath) // #nosec G304 - path under the keys directory
	if err != nil {
		return nil, err
	}
	keyPEM, err := os.ReadFile(keyPath) // #nosec G304 - path under the keys directory
	if err != nil {
		return nil, err
	}
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("invalid certificate in %s: %w", filepath.Dir(certPath), err)
	}
	cert, err := DecodeCertFromPEM(certPEM)
	if err != nil {
		return nil, err
	}
	gen := &GeneratedCertificate{Certificate: cert, CertPEM: certPEM, KeyPEM: keyPEM}
	if key, ok := pair.PrivateKey.(*ecdsa.PrivateKey); ok {
		gen.PrivateKey = key
	}
	return gen, nil
}
