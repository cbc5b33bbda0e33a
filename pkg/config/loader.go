package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// setters maps each config key to the function that parses a raw value
// into the Config. File, env and flag sources all funnel through it.
var setters = map[string]func(*Config, string) error{
	"host":      func(c *Config, v string) error { c.Host = v; return nil },
	"port":      intSetter(func(c *Config, n int) { c.Port = n }),
	"tenantId":  func(c *Config, v string) error { c.TenantID = v; return nil },
	"issuerUrl": func(c *Config, v string) error { c.IssuerURL = v; return nil },
	"tokenExpirySeconds": intSetter(func(c *Config, n int) {
		c.TokenExpirySeconds = n
	}),
	"refreshTokenExpiryDays": intSetter(func(c *Config, n int) {
		c.RefreshTokenExpiryDays = n
	}),
	"authorizationCodeExpirySeconds": intSetter(func(c *Config, n int) {
		c.AuthorizationCodeExpirySeconds = n
	}),
	"dataDir": func(c *Config, v string) error { c.DataDir = v; return nil },
	"keysDir": func(c *Config, v string) error { c.KeysDir = v; return nil },
	"strictPkce": func(c *Config, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		c.StrictPKCE = b
		return nil
	},
	"tokenRateLimit": intSetter(func(c *Config, n int) { c.TokenRateLimit = n }),
	"sweepInterval": func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.SweepInterval = d
		return nil
	},
	"trustedProxies": func(c *Config, v string) error {
		c.TrustedProxies = splitList(v)
		return nil
	},
	"tlsCertFile": func(c *Config, v string) error { c.TLSCertFile = v; return nil },
	"tlsKeyFile":  func(c *Config, v string) error { c.TLSKeyFile = v; return nil },
	"tlsAutoCert": func(c *Config, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		c.TLSAutoCert = b
		return nil
	},
	"logLevel":  func(c *Config, v string) error { c.LogLevel = v; return nil },
	"logFormat": func(c *Config, v string) error { c.LogFormat = v; return nil },
	"logFile":   func(c *Config, v string) error { c.LogFile = v; return nil },
}

func intSetter(set func(*Config, int)) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", v)
		}
		set(c, n)
		return nil
	}
}

// splitList parses a comma-separated value, dropping blank entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("expected a boolean, got %q", v)
}

// Keys returns every config key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set parses raw into the field named by key and records its source.
func (c *Config) Set(key, raw, source string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	if err := set(c, raw); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if c.Sources == nil {
		c.Sources = make(map[string]string)
	}
	c.Sources[key] = source
	return nil
}

// Get returns the value of key formatted the way Set accepts it.
func (c *Config) Get(key string) (string, bool) {
	switch key {
	case "host":
		return c.Host, true
	case "port":
		return strconv.Itoa(c.Port), true
	case "tenantId":
		return c.TenantID, true
	case "issuerUrl":
		return c.IssuerURL, true
	case "tokenExpirySeconds":
		return strconv.Itoa(c.TokenExpirySeconds), true
	case "refreshTokenExpiryDays":
		return strconv.Itoa(c.RefreshTokenExpiryDays), true
	case "authorizationCodeExpirySeconds":
		return strconv.Itoa(c.AuthorizationCodeExpirySeconds), true
	case "dataDir":
		return c.DataDir, true
	case "keysDir":
		return c.KeysDir, true
	case "strictPkce":
		return strconv.FormatBool(c.StrictPKCE), true
	case "tokenRateLimit":
		return strconv.Itoa(c.TokenRateLimit), true
	case "sweepInterval":
		return c.SweepInterval.String(), true
	case "trustedProxies":
		return strings.Join(c.TrustedProxies, ","), true
	case "tlsCertFile":
		return c.TLSCertFile, true
	case "tlsKeyFile":
		return c.TLSKeyFile, true
	case "tlsAutoCert":
		return strconv.FormatBool(c.TLSAutoCert), true
	case "logLevel":
		return c.LogLevel, true
	case "logFormat":
		return c.LogFormat, true
	case "logFile":
		return c.LogFile, true
	}
	return "", false
}

// ConfigError represents a configuration file error with location info.
type ConfigError struct {
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Path + ": " + e.Message
}

// scalarString renders a decoded YAML value for a setter. Sequences are
// joined with commas so list keys read the same from a file as from env.
func scalarString(value any) string {
	seq, ok := value.([]any)
	if !ok {
		return fmt.Sprint(value)
	}
	parts := make([]string, len(seq))
	for i, v := range seq {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}

// LoadFile applies a YAML config file on top of cfg.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return &ConfigError{Path: path, Message: err.Error()}
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := raw[key]
		if value == nil {
			continue
		}
		if err := cfg.Set(key, scalarString(value), SourceFile); err != nil {
			return &ConfigError{Path: path, Message: err.Error()}
		}
	}
	return nil
}

// Load resolves configuration from defaults, an optional file and the
// environment. Flags are applied by the caller with Set(..., SourceFlag).
func Load(path string) (*Config, error) {
	cfg := NewDefault()

	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := LoadEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Dump renders cfg as YAML.
func Dump(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
