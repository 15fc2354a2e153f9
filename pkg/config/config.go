package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvConfigDir names the directory holding application.yaml and its profiles.
	EnvConfigDir = "APPLICATION_CONFIGURATION_DIR"
	// EnvProfiles is a comma separated list of active profiles, applied in order.
	EnvProfiles = "APPLICATION_PROFILES_ACTIVE"
	// EnvPrefix is the prefix that environment overrides must carry, e.g. MREC_SERVER_PORT.
	EnvPrefix = "APPLICATION_CONFIGURATION_PREFIX"

	defaultConfigDir = "./configs"
)

// Sections are the top-level keys understood by the application. Without an env prefix
// only variables starting with one of these (SERVER_PORT, LOGGING_LEVEL, ...) are loaded.
var Sections = []string{"server", "response", "latency", "admin", "logging", "checker"}

// Config wraps koanf.Koanf to provide configuration access for the application.
// @see https://github.com/knadh/koanf .
// prefix is empty for the root config; sub-configs append to it. @see GetSubConfig
type Config struct {
	k      *koanf.Koanf
	prefix string
}

// Empty returns a root config with no keys, so every getter falls back to its default.
func Empty() *Config {
	return &Config{k: koanf.New("."), prefix: ""}
}

// Load builds the configuration from, in order of increasing precedence:
//   - <dir>/application.yaml, where dir is $APPLICATION_CONFIGURATION_DIR or ./configs
//   - <dir>/application-<profile>.yaml for every profile in $APPLICATION_PROFILES_ACTIVE
//   - environment variables
//
// Unlike a strict loader, a missing directory or base file is not an error: the
// application runs on its built-in defaults when nothing is configured.
func Load(logger *slog.Logger) (*Config, error) {
	k := koanf.New(".")

	configDir := os.Getenv(EnvConfigDir)
	if configDir == "" {
		configDir = defaultConfigDir
	}

	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		logger.Debug("Configuration directory not found, using defaults", "directory", configDir)
	} else if err := loadFiles(k, configDir, logger); err != nil {
		return nil, err
	}

	if err := loadEnv(k, os.Getenv(EnvPrefix), logger); err != nil {
		return nil, err
	}

	return &Config{k: k, prefix: ""}, nil
}

func loadFiles(k *koanf.Koanf, configDir string, logger *slog.Logger) error {
	basePath := filepath.Join(configDir, "application.yaml")
	if _, err := os.Stat(basePath); err == nil {
		logger.Debug("Loading base configuration", "file", basePath)
		if err := k.Load(file.Provider(basePath), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load base configuration: %w", err)
		}
	}

	for _, profile := range activeProfiles() {
		profilePath := filepath.Join(configDir, fmt.Sprintf("application-%s.yaml", profile))
		if _, err := os.Stat(profilePath); os.IsNotExist(err) {
			logger.Warn("Profile configuration file not found", "profile", profile, "file", profilePath)
			continue
		}

		logger.Debug("Loading profile configuration", "profile", profile, "file", profilePath)
		if err := k.Load(file.Provider(profilePath), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load profile configuration %s: %w", profile, err)
		}
	}
	return nil
}

func activeProfiles() []string {
	var profiles []string
	for _, p := range strings.Split(os.Getenv(EnvProfiles), ",") {
		if p = strings.TrimSpace(p); p != "" {
			profiles = append(profiles, p)
		}
	}
	return profiles
}

func loadEnv(k *koanf.Koanf, envPrefix string, logger *slog.Logger) error {
	if envPrefix != "" {
		// MREC_SERVER_PORT -> server.port
		cb := func(s string) string {
			s = strings.TrimPrefix(s, envPrefix+"_")
			return strings.ToLower(strings.ReplaceAll(s, "_", "."))
		}
		if err := k.Load(env.Provider(envPrefix+"_", ".", cb), nil); err != nil {
			return fmt.Errorf("failed to load environment variables with prefix %s: %w", envPrefix, err)
		}
		logger.Debug("Loaded environment overrides", "prefix", envPrefix)
		return nil
	}

	// SERVER_PORT -> server.port, anything outside the known sections is dropped
	cb := func(s string) string {
		key := strings.ToLower(strings.ReplaceAll(s, "_", "."))
		section, _, _ := strings.Cut(key, ".")
		if !slices.Contains(Sections, section) || section == key {
			return ""
		}
		return key
	}
	if err := k.Load(env.Provider("", ".", cb), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

// buildKey constructs the full key with current prefix
func (c *Config) buildKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + "." + key
}

// GetSubConfig returns a configuration instance for a specific sub-tree
func (c *Config) GetSubConfig(prefix string) *Config {
	return &Config{
		k:      c.k,
		prefix: c.buildKey(prefix),
	}
}

// Set overrides a single key. Used by command line flags.
func (c *Config) Set(key string, value interface{}) error {
	return c.k.Set(c.buildKey(key), value)
}

func (c *Config) GetString(key string) string {
	return c.k.String(c.buildKey(key))
}

func (c *Config) GetInt(key string) int {
	return c.k.Int(c.buildKey(key))
}

func (c *Config) GetBool(key string) bool {
	return c.k.Bool(c.buildKey(key))
}

// Exists checks if a key exists
func (c *Config) Exists(key string) bool {
	return c.k.Exists(c.buildKey(key))
}

// GetStringWithDefault gets a string value with a default fallback
func (c *Config) GetStringWithDefault(key, defaultValue string) string {
	if c.Exists(key) {
		return c.GetString(key)
	}
	return defaultValue
}

// GetIntWithDefault gets an integer value with a default fallback
func (c *Config) GetIntWithDefault(key string, defaultValue int) int {
	if c.Exists(key) {
		return c.GetInt(key)
	}
	return defaultValue
}

// GetBoolWithDefault gets a boolean value with a default fallback
func (c *Config) GetBoolWithDefault(key string, defaultValue bool) bool {
	if c.Exists(key) {
		return c.GetBool(key)
	}
	return defaultValue
}

// GetLogLevel reads logging.level, falling back to defaultLevel when unset or unknown.
func (c *Config) GetLogLevel(defaultLevel slog.Level) slog.Level {
	if !c.Exists("logging.level") {
		return defaultLevel
	}
	return ParseLogLevel(c.GetString("logging.level"), defaultLevel)
}

// ParseLogLevel maps debug/info/warn/error to a slog.Level.
func ParseLogLevel(s string, defaultLevel slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultLevel
	}
}

// Keys returns the direct children of the current level
func (c *Config) Keys() []string {
	var keys []string
	for _, key := range c.k.Keys() {
		relative := key
		if c.prefix != "" {
			var ok bool
			relative, ok = strings.CutPrefix(key, c.prefix+".")
			if !ok {
				continue
			}
		}
		child, _, _ := strings.Cut(relative, ".")
		if !slices.Contains(keys, child) {
			keys = append(keys, child)
		}
	}
	return keys
}

// All returns every leaf under the current level, keyed relative to it
func (c *Config) All() map[string]interface{} {
	result := make(map[string]interface{})
	for _, key := range c.k.Keys() {
		if c.prefix == "" {
			result[key] = c.k.Get(key)
			continue
		}
		if relative, ok := strings.CutPrefix(key, c.prefix+"."); ok {
			result[relative] = c.k.Get(key)
		}
	}
	return result
}
