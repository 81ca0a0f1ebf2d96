package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, LKEAP_CONFIG env, ./config.yaml, /etc/lkeap/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. LKEAP_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/lkeap/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("LKEAP_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"config.yaml",
		"/etc/lkeap/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps LKEAP_* environment variables to config fields.
// Unparseable durations are ignored.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LKEAP_SECRET_ID"); v != "" {
		cfg.Credentials.SecretID = v
	}
	if v := os.Getenv("LKEAP_SECRET_KEY"); v != "" {
		cfg.Credentials.SecretKey = v
	}
	if v := os.Getenv("LKEAP_CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}
	if v := os.Getenv("LKEAP_CHAT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Chat.Timeout = d
		}
	}
	if v := os.Getenv("LKEAP_RERANK_ENDPOINT"); v != "" {
		cfg.Rerank.Endpoint = v
	}
	if v := os.Getenv("LKEAP_RERANK_REGION"); v != "" {
		cfg.Rerank.Region = v
	}
	if v := os.Getenv("LKEAP_RERANK_SCHEME"); v != "" {
		cfg.Rerank.Scheme = v
	}
	if v := os.Getenv("LKEAP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LKEAP_DEBUG"); v != "" {
		cfg.Logging.Debug = v
	}
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// credentials.secret_id_file -> credentials.secret_id
	if cfg.Credentials.SecretIDFile != "" && cfg.Credentials.SecretID == "" {
		val, err := readSecretFile(cfg.Credentials.SecretIDFile)
		if err != nil {
			return fmt.Errorf("credentials.secret_id_file: %w", err)
		}
		cfg.Credentials.SecretID = val
	}

	// credentials.secret_key_file -> credentials.secret_key
	if cfg.Credentials.SecretKeyFile != "" && cfg.Credentials.SecretKey == "" {
		val, err := readSecretFile(cfg.Credentials.SecretKeyFile)
		if err != nil {
			return fmt.Errorf("credentials.secret_key_file: %w", err)
		}
		cfg.Credentials.SecretKey = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
