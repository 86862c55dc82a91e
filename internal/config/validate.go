package config

import (
	"fmt"
	"net"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

// Validate checks the config for invalid values and returns all errors found.
// Dangerous values that would misbehave at runtime are clamped to safe
// defaults; the returned errors are advisory and do not prevent startup.
func (c *Config) Validate() []error {
	var errs []error

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug/info/warn/error", c.LogLevel))
		c.LogLevel = "info"
	}

	if c.LogFormat != "" && !validLogFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Errorf("log_format %q is not one of text/json", c.LogFormat))
		c.LogFormat = "text"
	}

	if c.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
			errs = append(errs, fmt.Errorf("listen_addr %q is not host:port: %w", c.ListenAddr, err))
			c.ListenAddr = Default().ListenAddr
		}
	}

	if c.CheckIntervalMinutes < 0 {
		errs = append(errs, fmt.Errorf("check_interval_minutes %d is negative", c.CheckIntervalMinutes))
		c.CheckIntervalMinutes = 0
	}
	if c.CheckIntervalMinutes > 0 && c.CheckIntervalMinutes < 5 {
		errs = append(errs, fmt.Errorf("check_interval_minutes %d is below the 5 minute floor", c.CheckIntervalMinutes))
		c.CheckIntervalMinutes = 5
	}

	if c.CacheMaxAgeMinutes < 0 {
		errs = append(errs, fmt.Errorf("cache_max_age_minutes %d is negative", c.CacheMaxAgeMinutes))
		c.CacheMaxAgeMinutes = Default().CacheMaxAgeMinutes
	}

	return errs
}
