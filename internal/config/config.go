// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/bookimbiber/imbiber/internal/buildinfo"
	"github.com/bookimbiber/imbiber/internal/domain"
)

const (
	configFileName   = "config.toml"
	databaseFileName = "imbiber.db"
	envPrefix        = "IMBIBER__"
)

// AppConfig owns the viper instance and the decoded config. Config is
// replaced wholesale on reload; read it through Current when a watcher is
// running.
type AppConfig struct {
	Config *domain.Config

	viper      *viper.Viper
	configPath string

	mu        sync.RWMutex
	listeners []func(*domain.Config)
}

// New loads configuration from configDirOrPath, which may be a directory or
// a .toml file. An empty value uses the default config dir. A commented
// default config is written when none exists.
func New(configDirOrPath string) (*AppConfig, error) {
	c := &AppConfig{viper: viper.New()}

	c.configPath = resolveConfigPath(configDirOrPath)
	if err := c.ensureConfigFile(); err != nil {
		return nil, err
	}

	c.defaults()
	c.bindEnv()

	c.viper.SetConfigFile(c.configPath)
	c.viper.SetConfigType("toml")
	if err := c.viper.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "could not read config file %s", c.configPath)
	}

	cfg, err := c.decode()
	if err != nil {
		return nil, err
	}
	c.Config = cfg

	return c, nil
}

// Current returns the latest decoded config.
func (c *AppConfig) Current() *domain.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Config
}

func (c *AppConfig) ConfigPath() string {
	return c.configPath
}

// GetDatabasePath returns databasePath or imbiber.db inside the data dir.
func (c *AppConfig) GetDatabasePath() string {
	cfg := c.Current()
	if cfg.DatabasePath != "" {
		return cfg.DatabasePath
	}
	return filepath.Join(cfg.DataDir, databaseFileName)
}

// OnChange registers fn to run after every successful reload.
func (c *AppConfig) OnChange(fn func(*domain.Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// WatchConfig reloads the file on change and applies the log level live.
// Invalid edits are logged and ignored.
func (c *AppConfig) WatchConfig() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		cfg, err := c.decode()
		if err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("Ignoring invalid config change")
			return
		}

		c.mu.Lock()
		prev := c.Config
		c.Config = cfg
		listeners := append([]func(*domain.Config){}, c.listeners...)
		c.mu.Unlock()

		if prev == nil || prev.LogLevel != cfg.LogLevel {
			SetLogLevel(cfg.LogLevel)
		}

		log.Info().Str("file", e.Name).Msg("Config reloaded")

		for _, fn := range listeners {
			fn(cfg)
		}
	})
	c.viper.WatchConfig()
}

func (c *AppConfig) decode() (*domain.Config, error) {
	cfg := &domain.Config{}
	if err := c.viper.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "could not decode config")
	}

	cfg.Version = buildinfo.Version
	cfg.NotificationURLs = compact(cfg.NotificationURLs)
	cfg.CORSAllowedOrigins = compact(cfg.CORSAllowedOrigins)

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Dir(c.configPath)
	}

	if cfg.APIKey == "" && !cfg.IsAuthDisabled() {
		if prev := c.Current(); prev != nil && prev.APIKey != "" {
			cfg.APIKey = prev.APIKey
		}
	}
	if cfg.APIKey == "" && !cfg.IsAuthDisabled() {
		key, err := generateAPIKey()
		if err != nil {
			return nil, err
		}
		cfg.APIKey = key
		log.Warn().Msg("No apiKey configured, generated a temporary key for this run. Set apiKey in config.toml to keep it stable")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

func (c *AppConfig) defaults() {
	v := c.viper
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 7476)
	v.SetDefault("baseUrl", "/")
	v.SetDefault("apiKey", "")
	v.SetDefault("logLevel", "INFO")
	v.SetDefault("logPath", "")
	v.SetDefault("logMaxSize", 50)
	v.SetDefault("logMaxBackups", 3)
	v.SetDefault("dataDir", "")
	v.SetDefault("databasePath", "")
	v.SetDefault("pprofEnabled", false)
	v.SetDefault("pprofHost", "127.0.0.1")
	v.SetDefault("pprofPort", 6060)
	v.SetDefault("metricsEnabled", false)
	v.SetDefault("metricsHost", "127.0.0.1")
	v.SetDefault("metricsPort", 9074)
	v.SetDefault("metricsBasicAuthUsers", "")
	v.SetDefault("googleBooksApiKey", "")
	v.SetDefault("googleBooksBaseUrl", "")
	v.SetDefault("googleBooksTimeout", 15)
	v.SetDefault("googleBooksRequestsPerSecond", 5)
	v.SetDefault("defaultLocale", "en")
	v.SetDefault("checkInterval", "24h")
	v.SetDefault("checkCooldownMinutes", 60)
	v.SetDefault("persistCooldowns", false)
	v.SetDefault("notificationsEnabled", false)
	v.SetDefault("notificationUrls", []string{})
	v.SetDefault("authDisabled", false)
	v.SetDefault("authDisabledAllowedCIDRs", []string{})
	v.SetDefault("corsAllowedOrigins", []string{})
}

// bindEnv maps every known key to IMBIBER__SCREAMING_SNAKE, for example
// databasePath to IMBIBER__DATABASE_PATH.
func (c *AppConfig) bindEnv() {
	for _, key := range c.viper.AllKeys() {
		_ = c.viper.BindEnv(key, envName(key))
	}
}

// viper lowercases keys, so the env name is derived from the canonical
// camelCase spelling.
var canonicalKeys = []string{
	"host", "port", "baseUrl", "apiKey", "logLevel", "logPath", "logMaxSize", "logMaxBackups",
	"dataDir", "databasePath", "pprofEnabled", "pprofHost", "pprofPort",
	"metricsEnabled", "metricsHost", "metricsPort", "metricsBasicAuthUsers",
	"googleBooksApiKey", "googleBooksBaseUrl", "googleBooksTimeout", "googleBooksRequestsPerSecond",
	"defaultLocale", "checkInterval", "checkCooldownMinutes", "persistCooldowns",
	"notificationsEnabled", "notificationUrls", "authDisabled", "authDisabledAllowedCIDRs",
	"corsAllowedOrigins",
}

func envName(key string) string {
	for _, k := range canonicalKeys {
		if strings.EqualFold(k, key) {
			key = k
			break
		}
	}

	var b strings.Builder
	b.WriteString(envPrefix)
	runes := []rune(key)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(runes[i-1]) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func resolveConfigPath(configDirOrPath string) string {
	if configDirOrPath == "" {
		return filepath.Join(getDefaultConfigDir(), configFileName)
	}
	if strings.EqualFold(filepath.Ext(configDirOrPath), ".toml") {
		return configDirOrPath
	}
	return filepath.Join(configDirOrPath, configFileName)
}

// getDefaultConfigDir follows XDG. Docker images set XDG_CONFIG_HOME=/config
// and expect the file directly in it.
func getDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if xdg == "/config" {
			return xdg
		}
		return filepath.Join(xdg, "imbiber")
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "imbiber")
}

func (c *AppConfig) ensureConfigFile() error {
	if _, err := os.Stat(c.configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "could not stat config file %s", c.configPath)
	}

	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o755); err != nil {
		return errors.Wrapf(err, "could not create config dir %s", filepath.Dir(c.configPath))
	}

	key, err := generateAPIKey()
	if err != nil {
		return err
	}

	content := strings.Replace(defaultConfigTemplate, "{{apiKey}}", key, 1)
	if err := os.WriteFile(c.configPath, []byte(content), 0o600); err != nil {
		return errors.Wrapf(err, "could not write default config %s", c.configPath)
	}

	log.Info().Str("path", c.configPath).Msg("Wrote default config")
	return nil
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "could not generate api key")
	}
	return hex.EncodeToString(buf), nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
