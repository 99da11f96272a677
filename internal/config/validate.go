package config

import (
	"fmt"
	"net/url"
	"time"
)

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

var allowedLogFormats = map[string]struct{}{
	"text": {},
	"json": {},
}

func Validate(cfg Config) error {
	if cfg.Version != SchemaVersion {
		return fmt.Errorf("DOC_CONFIG_VERSION: unsupported version %d", cfg.Version)
	}
	if cfg.Storage.Root == "" || cfg.Storage.VersionsFile == "" {
		return fmt.Errorf("DOC_CONFIG_STORAGE: missing storage root/versions_file")
	}
	d, err := time.ParseDuration(cfg.HTTP.Timeout)
	if err != nil {
		return fmt.Errorf("DOC_CONFIG_HTTP: invalid timeout %q: %w", cfg.HTTP.Timeout, err)
	}
	if d <= 0 {
		return fmt.Errorf("DOC_CONFIG_HTTP: timeout must be positive, got %q", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.Retries < 0 {
		return fmt.Errorf("DOC_CONFIG_HTTP: retries must not be negative")
	}
	for name, raw := range map[string]string{"github.api_base": cfg.GitHub.APIBase, "archlinux.search_url": cfg.ArchLinux.SearchURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("DOC_CONFIG_ENDPOINT: invalid %s %q", name, raw)
		}
	}
	if _, ok := allowedLogLevels[cfg.Logging.Level]; !ok {
		return fmt.Errorf("DOC_CONFIG_LOGGING: invalid level %q", cfg.Logging.Level)
	}
	if _, ok := allowedLogFormats[cfg.Logging.Format]; !ok {
		return fmt.Errorf("DOC_CONFIG_LOGGING: invalid format %q", cfg.Logging.Format)
	}
	return nil
}

// Timeout returns the parsed per-request timeout. Call after Validate.
func (c Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.HTTP.Timeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultTimeout)
	}
	return d
}
