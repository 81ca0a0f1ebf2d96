// Package config provides unified configuration for the LKEAP adapters and
// the developer CLI.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (LKEAP_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/lkeap-plugin/lkeap/pkg/model"
	"github.com/lkeap-plugin/lkeap/pkg/provider/lkeap"
	"github.com/lkeap-plugin/lkeap/pkg/provider/lkeaprerank"
)

// Config holds all configuration for the LKEAP adapters.
type Config struct {
	Chat        ChatConfig        `yaml:"chat"`
	Rerank      RerankConfig      `yaml:"rerank"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Pricing     model.PriceTable  `yaml:"pricing"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ChatConfig holds chat endpoint settings.
type ChatConfig struct {
	BaseURL      string        `yaml:"base_url"`      // default: https://api.lkeap.tencentcloud.com/v1
	Timeout      time.Duration `yaml:"timeout"`       // default: 120s
	DefaultModel string        `yaml:"default_model"` // default: deepseek-v3
}

// RerankConfig holds rerank endpoint settings.
type RerankConfig struct {
	Endpoint string        `yaml:"endpoint"` // default: lkeap.intl.tencentcloudapi.com
	Region   string        `yaml:"region"`   // default: ap-jakarta
	Scheme   string        `yaml:"scheme"`   // "HTTPS" or "HTTP", default: "HTTPS"
	Timeout  time.Duration `yaml:"timeout"`  // default: 60s
}

// CredentialsConfig holds the vendor credentials used by the CLI. The host
// runtime normally passes credentials per call instead.
type CredentialsConfig struct {
	SecretID      string `yaml:"secret_id"`
	SecretIDFile  string `yaml:"secret_id_file"` // _file variant for secret_id
	SecretKey     string `yaml:"secret_key"`
	SecretKeyFile string `yaml:"secret_key_file"` // _file variant for secret_key
}

// LoggingConfig holds log level and debug category settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // ERROR, WARN, INFO, DEBUG, TRACE; default: INFO
	Debug string `yaml:"debug"` // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Chat: ChatConfig{
			BaseURL:      lkeap.DefaultBaseURL,
			Timeout:      lkeap.DefaultTimeout,
			DefaultModel: "deepseek-v3",
		},
		Rerank: RerankConfig{
			Endpoint: lkeaprerank.DefaultEndpoint,
			Region:   lkeaprerank.DefaultRegion,
			Scheme:   lkeaprerank.DefaultScheme,
			Timeout:  lkeaprerank.DefaultTimeout,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// ChatAdapterConfig converts the chat section into the adapter config.
func (c *Config) ChatAdapterConfig() lkeap.Config {
	return lkeap.Config{
		BaseURL: c.Chat.BaseURL,
		Timeout: c.Chat.Timeout,
		Pricing: c.Pricing,
	}
}

// RerankAdapterConfig converts the rerank section into the adapter config.
func (c *Config) RerankAdapterConfig() lkeaprerank.Config {
	return lkeaprerank.Config{
		Endpoint: c.Rerank.Endpoint,
		Region:   c.Rerank.Region,
		Scheme:   c.Rerank.Scheme,
		Timeout:  c.Rerank.Timeout,
	}
}

// ModelCredentials returns the configured credentials in the form the
// adapters expect. Empty values are left out.
func (c *Config) ModelCredentials() model.Credentials {
	creds := model.Credentials{}
	if c.Credentials.SecretID != "" {
		creds[lkeaprerank.CredentialSecretID] = c.Credentials.SecretID
	}
	if c.Credentials.SecretKey != "" {
		creds[lkeap.CredentialSecretKey] = c.Credentials.SecretKey
	}
	return creds
}
