package config

import "time"

// Defaults mirror the Entra ID emulator environment defaults.
const (
	DefaultHost                           = "0.0.0.0"
	DefaultPort                           = 8029
	DefaultTenantID                       = "common"
	DefaultIssuerURL                      = "http://localhost:8029"
	DefaultTokenExpirySeconds             = 3600
	DefaultRefreshTokenExpiryDays         = 14
	DefaultAuthorizationCodeExpirySeconds = 600
	DefaultDataDir                        = "data"
	DefaultKeysDir                        = "keys"
	DefaultSweepInterval                  = time.Minute
	DefaultLogLevel                       = "info"
	DefaultLogFormat                      = "text"
)

// NewDefault creates a Config populated with default values.
func NewDefault() *Config {
	cfg := &Config{
		Host:                           DefaultHost,
		Port:                           DefaultPort,
		TenantID:                       DefaultTenantID,
		IssuerURL:                      DefaultIssuerURL,
		TokenExpirySeconds:             DefaultTokenExpirySeconds,
		RefreshTokenExpiryDays:         DefaultRefreshTokenExpiryDays,
		AuthorizationCodeExpirySeconds: DefaultAuthorizationCodeExpirySeconds,
		DataDir:                        DefaultDataDir,
		KeysDir:                        DefaultKeysDir,
		SweepInterval:                  DefaultSweepInterval,
		LogLevel:                       DefaultLogLevel,
		LogFormat:                      DefaultLogFormat,
		Sources:                        make(map[string]string),
	}
	for _, key := range Keys() {
		cfg.Sources[key] = SourceDefault
	}
	return cfg
}
