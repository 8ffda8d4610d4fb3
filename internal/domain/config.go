// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Version       string
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	BaseURL       string `toml:"baseUrl" mapstructure:"baseUrl"`
	APIKey        string `toml:"apiKey" mapstructure:"apiKey"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`
	DatabasePath  string `toml:"databasePath" mapstructure:"databasePath"`

	PprofEnabled          bool   `toml:"pprofEnabled" mapstructure:"pprofEnabled"`
	PprofHost             string `toml:"pprofHost" mapstructure:"pprofHost"`
	PprofPort             int    `toml:"pprofPort" mapstructure:"pprofPort"`
	MetricsEnabled        bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost           string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort           int    `toml:"metricsPort" mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`

	GoogleBooksAPIKey            string  `toml:"googleBooksApiKey" mapstructure:"googleBooksApiKey"`
	GoogleBooksBaseURL           string  `toml:"googleBooksBaseUrl" mapstructure:"googleBooksBaseUrl"`
	GoogleBooksTimeout           int     `toml:"googleBooksTimeout" mapstructure:"googleBooksTimeout"`
	GoogleBooksRequestsPerSecond float64 `toml:"googleBooksRequestsPerSecond" mapstructure:"googleBooksRequestsPerSecond"`
	DefaultLocale                string  `toml:"defaultLocale" mapstructure:"defaultLocale"`

	// CheckInterval is a Go duration string such as "24h".
	CheckInterval        string `toml:"checkInterval" mapstructure:"checkInterval"`
	CheckCooldownMinutes int    `toml:"checkCooldownMinutes" mapstructure:"checkCooldownMinutes"`
	PersistCooldowns     bool   `toml:"persistCooldowns" mapstructure:"persistCooldowns"`

	NotificationsEnabled bool     `toml:"notificationsEnabled" mapstructure:"notificationsEnabled"`
	NotificationURLs     []string `toml:"notificationUrls" mapstructure:"notificationUrls"`

	// AuthDisabled skips the API key check. Requests are then only accepted
	// from AuthDisabledAllowedCIDRs.
	AuthDisabled             bool     `toml:"authDisabled" mapstructure:"authDisabled"`
	AuthDisabledAllowedCIDRs []string `toml:"authDisabledAllowedCIDRs" mapstructure:"authDisabledAllowedCIDRs"`

	CORSAllowedOrigins []string `toml:"corsAllowedOrigins" mapstructure:"corsAllowedOrigins"`
}

func (c *Config) IsAuthDisabled() bool {
	return c.AuthDisabled
}

// ParseAuthDisabledAllowedCIDRs parses configured auth-disabled IP ranges.
// Entries can be either CIDR (for example 192.168.1.0/24) or a single IP
// (for example 192.168.1.10, which is treated as /32 or /128).
func (c *Config) ParseAuthDisabledAllowedCIDRs() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.AuthDisabledAllowedCIDRs))

	for _, raw := range c.AuthDisabledAllowedCIDRs {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid authDisabledAllowedCIDRs entry %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid authDisabledAllowedCIDRs entry %q: %w", entry, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return prefixes, nil
}

// ValidateAuthDisabledConfig validates required settings for auth-disabled mode.
func (c *Config) ValidateAuthDisabledConfig() error {
	if !c.IsAuthDisabled() {
		return nil
	}

	prefixes, err := c.ParseAuthDisabledAllowedCIDRs()
	if err != nil {
		return err
	}
	if len(prefixes) == 0 {
		return errors.New("authDisabledAllowedCIDRs is required when authentication is disabled")
	}

	return nil
}

// CheckIntervalDuration parses CheckInterval. An empty value yields 0 so the
// scheduler falls back to its default.
func (c *Config) CheckIntervalDuration() (time.Duration, error) {
	raw := strings.TrimSpace(c.CheckInterval)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid checkInterval %q: %w", raw, err)
	}
	if d < time.Minute {
		return 0, fmt.Errorf("checkInterval %q is below one minute", raw)
	}
	return d, nil
}

func (c *Config) CheckCooldown() time.Duration {
	if c.CheckCooldownMinutes <= 0 {
		return 0
	}
	return time.Duration(c.CheckCooldownMinutes) * time.Minute
}

func (c *Config) GoogleBooksRequestTimeout() time.Duration {
	if c.GoogleBooksTimeout <= 0 {
		return 0
	}
	return time.Duration(c.GoogleBooksTimeout) * time.Second
}

// Validate checks everything that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MetricsEnabled && (c.MetricsPort <= 0 || c.MetricsPort > 65535) {
		return fmt.Errorf("invalid metricsPort %d", c.MetricsPort)
	}
	if c.GoogleBooksRequestsPerSecond < 0 {
		return errors.New("googleBooksRequestsPerSecond must not be negative")
	}
	if _, err := c.CheckIntervalDuration(); err != nil {
		return err
	}
	return c.ValidateAuthDisabledConfig()
}
