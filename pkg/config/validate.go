package config

import "fmt"

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"text": true, "json": true}
)

// Validate checks the config for structural correctness.
func Validate(c *Config) []error {
	var errs []error

	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("version must be 1, got %d", c.Version))
	}

	if c.LogDir == "" {
		errs = append(errs, fmt.Errorf("log_dir is required"))
	}
	if c.Socket == "" {
		errs = append(errs, fmt.Errorf("socket is required"))
	}

	// Timings
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.ErrorBackoff <= 0 {
		errs = append(errs, fmt.Errorf("error_backoff must be positive, got %s", c.ErrorBackoff))
	}
	if c.DirScanInterval <= 0 {
		errs = append(errs, fmt.Errorf("dir_scan_interval must be positive, got %s", c.DirScanInterval))
	}

	if c.DefaultLimit <= 0 {
		errs = append(errs, fmt.Errorf("default_limit must be positive, got %d", c.DefaultLimit))
	}
	if c.DetailLimit < c.DefaultLimit {
		errs = append(errs, fmt.Errorf("detail_limit must be at least default_limit (%d), got %d", c.DefaultLimit, c.DetailLimit))
	}

	if !validLevels[c.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level must be debug, info, warn, or error; got %q", c.LogLevel))
	}
	if !validFormats[c.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format must be text or json; got %q", c.LogFormat))
	}

	return errs
}
