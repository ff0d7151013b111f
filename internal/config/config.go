/* SPDX-License-Identifier: MPL-2.0 */

// Package config loads the CLI configuration. Values come from the
// config file, environment variables with the DIALER_ prefix, or the
// built-in defaults, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the CLI configuration.
type Config struct {
	API        APIConfig
	Gateway    GatewayConfig
	Call       CallConfig
	Credential CredentialConfig
	CallLog    CallLogConfig
}

// APIConfig holds backend API settings.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// GatewayConfig holds voice gateway settings.
type GatewayConfig struct {
	URL string
}

// CallConfig holds call session timing overrides.
type CallConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	DisplayDelay time.Duration `mapstructure:"display_delay"`
}

// CredentialConfig holds passkey and token storage paths.
type CredentialConfig struct {
	Path      string
	TokenPath string `mapstructure:"token_path"`
}

// CallLogConfig holds the local call log settings.
type CallLogConfig struct {
	Path string
}

// Load reads configuration from file and env. Env var overrides use
// the prefix DIALER_, e.g. DIALER_API_BASE_URL.
func Load() (Config, error) {
	v := viper.New()

	home, _ := os.UserHomeDir()
	configDir := filepath.Join(home, ".config", "dialer")

	v.SetDefault("api.base_url", "http://localhost:8000/api")
	v.SetDefault("gateway.url", "wss://localhost:8443/voice/gateway")
	v.SetDefault("call.poll_interval", 2*time.Second)
	v.SetDefault("call.display_delay", 2*time.Second)
	v.SetDefault("credential.path", filepath.Join(configDir, "credential.json"))
	v.SetDefault("credential.token_path", filepath.Join(configDir, "token"))
	v.SetDefault("calllog.path", filepath.Join(home, ".local", "share", "dialer", "calls.db"))

	v.SetConfigType("toml")

	if cfgPath := os.Getenv("DIALER_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("DIALER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// config file is optional
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// SaveToken writes the bearer token next to the credential with
// owner-only permissions.
func SaveToken(cfg Config, token string) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Credential.TokenPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(cfg.Credential.TokenPath, []byte(token), 0o600)
}

// LoadToken reads the stored bearer token, returning empty when no
// login has happened yet.
func LoadToken(cfg Config) string {
	data, err := os.ReadFile(cfg.Credential.TokenPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
