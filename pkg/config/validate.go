package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// chat.base_url must be an absolute http(s) URL.
	if u, err := url.Parse(c.Chat.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("chat.base_url must be an http or https URL, got %q", c.Chat.BaseURL))
	}
	if c.Chat.Timeout < 0 {
		errs = append(errs, fmt.Errorf("chat.timeout must be >= 0, got %v", c.Chat.Timeout))
	}

	if c.Rerank.Endpoint == "" {
		errs = append(errs, fmt.Errorf("rerank.endpoint is required"))
	}
	if c.Rerank.Region == "" {
		errs = append(errs, fmt.Errorf("rerank.region is required"))
	}
	switch strings.ToUpper(c.Rerank.Scheme) {
	case "HTTPS", "HTTP":
		// valid
	default:
		errs = append(errs, fmt.Errorf("rerank.scheme must be \"HTTPS\" or \"HTTP\", got %q", c.Rerank.Scheme))
	}
	if c.Rerank.Timeout < 0 {
		errs = append(errs, fmt.Errorf("rerank.timeout must be >= 0, got %v", c.Rerank.Timeout))
	}

	for name, p := range c.Pricing {
		if p.Input < 0 || p.Output < 0 || p.Unit < 0 {
			errs = append(errs, fmt.Errorf("pricing.%s: prices must be >= 0", name))
		}
	}

	// logging.level must be a known value.
	switch strings.ToUpper(c.Logging.Level) {
	case "", "ERROR", "WARN", "WARNING", "INFO", "DEBUG", "TRACE":
		// valid
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of ERROR, WARN, INFO, DEBUG, TRACE, got %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}
