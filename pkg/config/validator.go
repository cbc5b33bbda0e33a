package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/getmockd/mockidp/pkg/logging"
)

// Validate checks the resolved configuration and returns all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.TenantID == "" {
		errs = append(errs, errors.New("tenantId is required"))
	}
	if u, err := url.Parse(c.IssuerURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("issuerUrl must be an absolute URL, got %q", c.IssuerURL))
	}
	if c.TokenExpirySeconds <= 0 {
		errs = append(errs, fmt.Errorf("tokenExpirySeconds must be positive, got %d", c.TokenExpirySeconds))
	}
	if c.RefreshTokenExpiryDays <= 0 {
		errs = append(errs, fmt.Errorf("refreshTokenExpiryDays must be positive, got %d", c.RefreshTokenExpiryDays))
	}
	if c.AuthorizationCodeExpirySeconds <= 0 {
		errs = append(errs, fmt.Errorf("authorizationCodeExpirySeconds must be positive, got %d", c.AuthorizationCodeExpirySeconds))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("dataDir is required"))
	}
	if c.KeysDir == "" {
		errs = append(errs, errors.New("keysDir is required"))
	}
	if c.TokenRateLimit < 0 {
		errs = append(errs, fmt.Errorf("tokenRateLimit cannot be negative, got %d", c.TokenRateLimit))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("sweepInterval must be positive, got %s", c.SweepInterval))
	}
	for _, p := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			errs = append(errs, fmt.Errorf("trustedProxies entry %q is not a CIDR or IP", p))
		}
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("tlsCertFile and tlsKeyFile must be set together"))
	}
	if err := logging.ValidateLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
