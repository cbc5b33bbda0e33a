package keys

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/gofrs/flock"
	"github.com/golang-jwt/jwt/v5"

	"github.com/getmockd/mockidp/pkg/logging"
)

// Key material parameters.
const (
	KeyBits   = 2048
	Algorithm = "RS256"

	PrivateKeyFile = "private_key.pem"
	PublicKeyFile  = "public_key.pem"
	lockFile       = ".lock"

	lockRetryDelay = 50 * time.Millisecond
)

// ErrInvalidToken is the only error Verify returns. The underlying cause
// is logged, never handed to callers.
var ErrInvalidToken = errors.New("invalid token")

// Config configures Open.
type Config struct {
	// Dir holds the PEM files and the lock file. Created if missing.
	Dir string

	Logger *slog.Logger
}

// Manager owns the process signing key. It is immutable after Open and
// safe for concurrent use without locking.
type Manager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	publicPEM  []byte
	keyID      string
	logger     *slog.Logger
}

// Open loads the key pair from cfg.Dir, or generates and persists a new
// one when either file is missing. The directory is locked for the
// duration so concurrent processes agree on a single key.
func Open(ctx context.Context, cfg Config) (*Manager, error) {
	logger := logging.Component(cfg.Logger, "keys")

	if cfg.Dir == "" {
		return nil, errors.New("key directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Dir, lockFile))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock key directory: %w", err)
	}
	if !locked {
		return nil, errors.New("failed to lock key directory")
	}
	defer func() { _ = lock.Unlock() }()

	privPath := filepath.Join(cfg.Dir, PrivateKeyFile)
	pubPath := filepath.Join(cfg.Dir, PublicKeyFile)

	var privateKey *rsa.PrivateKey
	if fileExists(privPath) && fileExists(pubPath) {
		privateKey, err = loadKeyPair(privPath, pubPath)
		if err != nil {
			return nil, err
		}
		m, err := newManager(privateKey, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded signing key", "kid", m.keyID, "dir", cfg.Dir)
		return m, nil
	}

	privateKey, err = rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	if err := writeKeyPair(privateKey, privPath, pubPath); err != nil {
		return nil, err
	}

	m, err := newManager(privateKey, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("generated signing key", "kid", m.keyID, "dir", cfg.Dir)
	return m, nil
}

// New wraps an existing private key, without touching disk.
func New(privateKey *rsa.PrivateKey, logger *slog.Logger) (*Manager, error) {
	if privateKey == nil {
		return nil, errors.New("private key is required")
	}
	return newManager(privateKey, logging.Component(logger, "keys"))
}

func newManager(privateKey *rsa.PrivateKey, logger *slog.Logger) (*Manager, error) {
	kid, err := DeriveKeyID(&privateKey.PublicKey)
	if err != nil {
		return nil, err
	}
	der, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}
	return &Manager{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		publicPEM:  pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}),
		keyID:      kid,
		logger:     logger,
	}, nil
}

// DeriveKeyID returns the unpadded base64url encoding of the first eight
// bytes of SHA-256 over the PKIX DER encoding of pub.
func DeriveKeyID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to encode public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:8]), nil
}

// KeyID returns the key identifier placed in token headers and the JWKS.
func (m *Manager) KeyID() string {
	return m.keyID
}

// PublicKey returns the verification key.
func (m *Manager) PublicKey() *rsa.PublicKey {
	return m.publicKey
}

// PublicKeyPEM returns the PKIX PEM encoding of the public key.
func (m *Manager) PublicKeyPEM() []byte {
	return append([]byte(nil), m.publicPEM...)
}

// PublicKeySet returns the JSON Web Key Set published at the keys endpoint.
func (m *Manager) PublicKeySet() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{{
			Key:       m.publicKey,
			KeyID:     m.keyID,
			Algorithm: Algorithm,
			Use:       "sig",
		}},
	}
}

// Sign serializes claims as an RS256 JWT carrying the key id header.
func (m *Manager) Sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = m.keyID

	signed, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks an RS256 signature against the current key and the
// exp/nbf/iat window, and returns the claims. Audience is not checked.
func (m *Manager) Verify(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.publicKey, nil
	}, jwt.WithValidMethods([]string{Algorithm}), jwt.WithIssuedAt())
	if err != nil {
		m.logger.Debug("token verification failed", "error", err)
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		m.logger.Debug("token verification failed", "error", "token not valid")
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func loadKeyPair(privPath, pubPath string) (*rsa.PrivateKey, error) {
	privPEM, err := os.ReadFile(privPath) // #nosec G304 - path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	block, _ := pem.Decode(privPEM)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block from %s", privPath)
	}

	var privateKey *rsa.PrivateKey
	if k, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key in %s is %T, want RSA", privPath, k)
		}
		privateKey = rsaKey
	} else if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		privateKey = k
	} else {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	pubPEM, err := os.ReadFile(pubPath) // #nosec G304 - path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	block, _ = pem.Decode(pubPEM)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block from %s", pubPath)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key in %s is %T, want RSA", pubPath, pub)
	}
	if !rsaPub.Equal(&privateKey.PublicKey) {
		return nil, fmt.Errorf("public key in %s does not match private key", pubPath)
	}

	return privateKey, nil
}

func writeKeyPair(privateKey *rsa.PrivateKey, privPath, pubPath string) error {
	privDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return fmt.Errorf("failed to encode private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to encode public key: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(pubPath, pubPEM, 0o644); err != nil { // #nosec G306 - public key
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}
