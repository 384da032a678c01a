// Package config provides configuration management for protoplast using
// Viper for loading from files, environment variables, and command-line
// flags.
//
// File configuration lives in .protoplast.yml; every key can be overridden
// with a PROTOPLAST_ prefixed environment variable. The builder-style
// ProtoConfig in builder.go carries the runtime settings (template file
// extensions and hook slots) handed to the manager and loader.
package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/protoplast/internal/cycles"
	"github.com/conneroisu/protoplast/internal/errors"
	"github.com/conneroisu/protoplast/internal/logging"
)

// DefaultExtensions are the file suffixes that mark a source as a template.
var DefaultExtensions = []string{"prototype.yaml", "prototype.yml", "prototype.jsonc"}

type Config struct {
	Sources SourcesConfig `mapstructure:"sources" yaml:"sources"`
	Cycles  CyclesConfig  `mapstructure:"cycles" yaml:"cycles"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Inspect InspectConfig `mapstructure:"inspect" yaml:"inspect"`
}

type SourcesConfig struct {
	Paths      []string `mapstructure:"paths" yaml:"paths"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	Exclude    []string `mapstructure:"exclude" yaml:"exclude"`
}

type CyclesConfig struct {
	// Policy is one of default, panic or cancel
	Policy string `mapstructure:"policy" yaml:"policy"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// InspectConfig configures the live inspector started by watch.
type InspectConfig struct {
	// Addr is host:port; empty disables the inspector
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	Origins        []string `mapstructure:"origins" yaml:"origins"`
	MaxConnections int      `mapstructure:"max_connections" yaml:"max_connections"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("sources.paths", []string{"./prototypes"})
	v.SetDefault("sources.extensions", append([]string(nil), DefaultExtensions...))
	v.SetDefault("sources.exclude", []string{"*.bak", ".*"})
	v.SetDefault("cycles.policy", "default")
	v.SetDefault("watch.debounce", 100*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("inspect.addr", "")
	v.SetDefault("inspect.origins", []string{"localhost:*", "127.0.0.1:*"})
	v.SetDefault("inspect.max_connections", 64)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.WrapConfig(err, "decoding configuration")
	}

	// Handle slices set via env or flags (viper hands those back as one string)
	for key, dst := range map[string]*[]string{
		"sources.paths":      &config.Sources.Paths,
		"sources.extensions": &config.Sources.Extensions,
		"sources.exclude":    &config.Sources.Exclude,
		"inspect.origins":    &config.Inspect.Origins,
	} {
		if len(*dst) == 0 {
			*dst = v.GetStringSlice(key)
		}
		var flat []string
		for _, item := range *dst {
			flat = append(flat, splitList(item)...)
		}
		*dst = flat
	}

	for i, ext := range config.Sources.Extensions {
		config.Sources.Extensions[i] = strings.TrimPrefix(ext, ".")
	}

	if err := validateConfig(&config); err != nil {
		return nil, errors.WrapConfig(err, "invalid configuration")
	}

	return &config, nil
}

// CyclePolicy returns the configured cycle policy.
func (c *Config) CyclePolicy() (cycles.Policy, error) {
	return cycles.ParsePolicy(c.Cycles.Policy)
}

// Logger builds the logger described by the log section.
func (c *Config) Logger() (*logging.StructuredLogger, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = c.Log.Format
	return logging.NewLogger(cfg), nil
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateSourcesConfig(&config.Sources); err != nil {
		return fmt.Errorf("sources config: %w", err)
	}

	if _, err := config.CyclePolicy(); err != nil {
		return fmt.Errorf("cycles config: %w", err)
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch config: debounce %s is negative", config.Watch.Debounce)
	}

	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	switch config.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log config: unknown format %q", config.Log.Format)
	}

	if err := validateInspectConfig(&config.Inspect); err != nil {
		return fmt.Errorf("inspect config: %w", err)
	}

	return nil
}

func validateInspectConfig(config *InspectConfig) error {
	if config.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", config.MaxConnections)
	}
	if config.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(config.Addr); err != nil {
		return fmt.Errorf("invalid address %q: %w", config.Addr, err)
	}
	return nil
}

// validateSourcesConfig validates template source settings
func validateSourcesConfig(config *SourcesConfig) error {
	for _, path := range config.Paths {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("invalid source path '%s': %w", path, err)
		}
	}

	if len(config.Extensions) == 0 {
		return fmt.Errorf("at least one template extension is required")
	}
	for _, ext := range config.Extensions {
		if ext == "" {
			return fmt.Errorf("empty extension")
		}
		if strings.ContainsAny(ext, `/\`) {
			return fmt.Errorf("extension contains path separator: %s", ext)
		}
	}

	for _, pattern := range config.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid exclude pattern '%s': %w", pattern, err)
		}
	}

	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	// Reject path traversal attempts
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if part == ".." {
			return fmt.Errorf("path contains traversal: %s", path)
		}
	}

	// Reject dangerous characters
	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'", "\x00"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %q", char)
		}
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
