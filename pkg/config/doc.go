// Package config resolves the emulator's runtime configuration.
//
// Sources are layered defaults < YAML file < environment < flags, and
// Config.Sources records which layer supplied each key:
//
//	cfg, err := config.Load(path)        // defaults, file, env
//	_ = cfg.Set("port", "9000", config.SourceFlag)
//	if err := cfg.Validate(); err != nil { ... }
//
// Example file:
//
//	port: 8029
//	tenantId: common
//	issuerUrl: http://localhost:8029
//	tokenExpirySeconds: 3600
//	refreshTokenExpiryDays: 14
//	strictPkce: false
//	sweepInterval: 1m
//
// The environment variable names (EMULATOR_PORT, TENANT_ID, ISSUER_URL,
// TOKEN_EXPIRY_SECONDS, ...) are listed in env.go.
package config
