package config

import (
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config is the complete runtime configuration of the emulator.
// Values are resolved with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Config file (--config)
// 4. Default values (lowest priority)
type Config struct {
	// Server settings
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`

	// Tenant settings
	TenantID  string `yaml:"tenantId" json:"tenantId"`
	IssuerURL string `yaml:"issuerUrl" json:"issuerUrl"`

	// Token lifetimes
	TokenExpirySeconds             int `yaml:"tokenExpirySeconds" json:"tokenExpirySeconds"`
	RefreshTokenExpiryDays         int `yaml:"refreshTokenExpiryDays" json:"refreshTokenExpiryDays"`
	AuthorizationCodeExpirySeconds int `yaml:"authorizationCodeExpirySeconds" json:"authorizationCodeExpirySeconds"`

	// Storage locations
	DataDir string `yaml:"dataDir" json:"dataDir"`
	KeysDir string `yaml:"keysDir" json:"keysDir"`

	// Protocol behaviour
	StrictPKCE     bool          `yaml:"strictPkce" json:"strictPkce"`
	TokenRateLimit int           `yaml:"tokenRateLimit" json:"tokenRateLimit"` // requests per minute per client IP, 0 = off
	SweepInterval  time.Duration `yaml:"sweepInterval" json:"sweepInterval"`

	// TrustedProxies lists CIDRs or IPs whose X-Forwarded-For and
	// X-Real-IP headers identify the client for rate limiting.
	TrustedProxies []string `yaml:"trustedProxies,omitempty" json:"trustedProxies,omitempty"`

	// HTTPS. Files win over TLSAutoCert.
	TLSCertFile string `yaml:"tlsCertFile,omitempty" json:"tlsCertFile,omitempty"`
	TLSKeyFile  string `yaml:"tlsKeyFile,omitempty" json:"tlsKeyFile,omitempty"`
	TLSAutoCert bool   `yaml:"tlsAutoCert" json:"tlsAutoCert"`

	// Logging settings
	LogLevel  string `yaml:"logLevel" json:"logLevel"`
	LogFormat string `yaml:"logFormat" json:"logFormat"`
	LogFile   string `yaml:"logFile,omitempty" json:"logFile,omitempty"`

	// Sources tracks where each value came from (for `mockidp config`)
	Sources map[string]string `yaml:"-" json:"-"`
}

// Value sources.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// TLSEnabled reports whether the server listens with HTTPS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" || c.TLSKeyFile != "" || c.TLSAutoCert
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BaseURL returns the public base URL without a trailing slash.
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.IssuerURL, "/")
}

// Tenant returns tenant, or the configured default tenant when empty.
func (c *Config) Tenant(tenant string) string {
	if tenant == "" {
		return c.TenantID
	}
	return tenant
}

// Issuer returns the tenant-scoped issuer URL placed in the "iss" claim.
func (c *Config) Issuer(tenant string) string {
	return c.BaseURL() + "/" + c.Tenant(tenant) + "/v2.0"
}

// JWKSURI returns the tenant-scoped key set URL.
func (c *Config) JWKSURI(tenant string) string {
	return c.BaseURL() + "/" + c.Tenant(tenant) + "/discovery/v2.0/keys"
}

// AccessTokenTTL is the lifetime of access, ID and client-credentials tokens.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.TokenExpirySeconds) * time.Second
}

// RefreshTokenTTL is the lifetime of refresh tokens.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpiryDays) * 24 * time.Hour
}

// AuthorizationCodeTTL is the lifetime of authorization codes.
func (c *Config) AuthorizationCodeTTL() time.Duration {
	return time.Duration(c.AuthorizationCodeExpirySeconds) * time.Second
}

// UsersFile is the user directory file.
func (c *Config) UsersFile() string {
	return filepath.Join(c.DataDir, "users.json")
}

// ApplicationsFile is the application directory file.
func (c *Config) ApplicationsFile() string {
	return filepath.Join(c.DataDir, "applications.json")
}
