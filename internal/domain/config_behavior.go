package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// GetBackendURL returns the API base URL without a trailing slash.
func (c *Config) GetBackendURL() string {
	if c.Backend.URL == "" {
		return DefaultBackendURL
	}
	return strings.TrimRight(c.Backend.URL, "/")
}

// GetDatabase returns the database queries run against.
func (c *Config) GetDatabase() string {
	if c.Backend.Database == "" {
		return DefaultDatabase
	}
	return c.Backend.Database
}

// GetTimeout returns the request timeout.
func (c *Config) GetTimeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return DefaultHTTPClientTimeout
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// GetHistoryRetentionDays returns the number of days to retain history
func (c *Config) GetHistoryRetentionDays() int {
	if c.History.RetentionDays <= 0 {
		return DefaultHistoryRetainDays
	}
	return c.History.RetentionDays
}

// IsHistoryEnabled checks if execution history should be recorded
func (c *Config) IsHistoryEnabled() bool {
	return c.History.Enabled
}

// IsGuardrailEnabled reports whether destructive SQL needs confirmation.
func (c *Config) IsGuardrailEnabled() bool {
	return c.Guardrail.Enabled
}

// GetOutputFormat returns the default result format.
func (c *Config) GetOutputFormat() string {
	switch c.Display.Format {
	case FormatTable, FormatJSON, FormatCSV, FormatMarkdown:
		return c.Display.Format
	default:
		return FormatTable
	}
}

// GetNotifyDuration returns how long success notifications stay visible.
func (c *Config) GetNotifyDuration() time.Duration {
	if c.Display.NotifySeconds <= 0 {
		return DefaultNotifyDuration
	}
	return time.Duration(c.Display.NotifySeconds) * time.Second
}

// ValidateConsistency checks the internal consistency of the configuration
func (c *Config) ValidateConsistency() error {
	if c.Backend.URL != "" {
		u, err := url.Parse(c.Backend.URL)
		if err != nil {
			return fmt.Errorf("backend url %q: %w", c.Backend.URL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("backend url %q must use http or https", c.Backend.URL)
		}
		if u.Host == "" {
			return fmt.Errorf("backend url %q has no host", c.Backend.URL)
		}
	}

	if c.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("backend timeout must be >= 0, got %d", c.Backend.TimeoutSeconds)
	}

	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history retention must be >= 0, got %d", c.History.RetentionDays)
	}

	if c.Display.Format != "" && c.GetOutputFormat() != c.Display.Format {
		return fmt.Errorf("unknown display format %q", c.Display.Format)
	}

	return nil
}
