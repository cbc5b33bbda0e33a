package config

import (
	"fmt"
	"os"
)

// Environment variable names. The unprefixed names match the Docker
// images of the Entra ID emulator so existing compose files keep working.
const (
	EnvHost                    = "EMULATOR_HOST"
	EnvPort                    = "EMULATOR_PORT"
	EnvTenantID                = "TENANT_ID"
	EnvIssuerURL               = "ISSUER_URL"
	EnvTokenExpirySeconds      = "TOKEN_EXPIRY_SECONDS"
	EnvRefreshTokenExpiryDays  = "REFRESH_TOKEN_EXPIRY_DAYS"
	EnvAuthorizationCodeExpiry = "AUTHORIZATION_CODE_EXPIRY"
	EnvDataDir                 = "DATA_DIR"
	EnvKeysDir                 = "KEYS_DIR"
	EnvStrictPKCE              = "MOCKIDP_STRICT_PKCE"
	EnvTokenRateLimit          = "MOCKIDP_TOKEN_RATE_LIMIT"
	EnvSweepInterval           = "MOCKIDP_SWEEP_INTERVAL"
	EnvTrustedProxies          = "MOCKIDP_TRUSTED_PROXIES"
	EnvTLSCertFile             = "MOCKIDP_TLS_CERT_FILE"
	EnvTLSKeyFile              = "MOCKIDP_TLS_KEY_FILE"
	EnvTLSAutoCert             = "MOCKIDP_TLS_AUTO_CERT"
	EnvLogLevel                = "MOCKIDP_LOG_LEVEL"
	EnvLogFormat               = "MOCKIDP_LOG_FORMAT"
	EnvLogFile                 = "MOCKIDP_LOG_FILE"
	EnvConfig                  = "MOCKIDP_CONFIG"
)

// envKeys maps environment variables to config keys.
var envKeys = []struct {
	env string
	key string
}{
	{EnvHost, "host"},
	{EnvPort, "port"},
	{EnvTenantID, "tenantId"},
	{EnvIssuerURL, "issuerUrl"},
	{EnvTokenExpirySeconds, "tokenExpirySeconds"},
	{EnvRefreshTokenExpiryDays, "refreshTokenExpiryDays"},
	{EnvAuthorizationCodeExpiry, "authorizationCodeExpirySeconds"},
	{EnvDataDir, "dataDir"},
	{EnvKeysDir, "keysDir"},
	{EnvStrictPKCE, "strictPkce"},
	{EnvTokenRateLimit, "tokenRateLimit"},
	{EnvSweepInterval, "sweepInterval"},
	{EnvTrustedProxies, "trustedProxies"},
	{EnvTLSCertFile, "tlsCertFile"},
	{EnvTLSKeyFile, "tlsKeyFile"},
	{EnvTLSAutoCert, "tlsAutoCert"},
	{EnvLogLevel, "logLevel"},
	{EnvLogFormat, "logFormat"},
	{EnvLogFile, "logFile"},
}

// LoadEnv applies environment variables that are set.
func LoadEnv(cfg *Config) error {
	for _, e := range envKeys {
		v, ok := os.LookupEnv(e.env)
		if !ok || v == "" {
			continue
		}
		if err := cfg.Set(e.key, v, SourceEnv); err != nil {
			return fmt.Errorf("%s: %w", e.env, err)
		}
	}
	return nil
}
