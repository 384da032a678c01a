package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/protoplast/internal/cycles"
	"github.com/conneroisu/protoplast/internal/errors"
	"github.com/conneroisu/protoplast/internal/registry"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError string
		check       func(t *testing.T, c *Config)
	}{
		{
			name:  "defaults",
			setup: func(v *viper.Viper) {},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, []string{"./prototypes"}, c.Sources.Paths)
				assert.Equal(t, DefaultExtensions, c.Sources.Extensions)
				assert.Equal(t, "default", c.Cycles.Policy)
				assert.Equal(t, 100*time.Millisecond, c.Watch.Debounce)
				assert.Equal(t, "info", c.Log.Level)
				assert.Empty(t, c.Inspect.Addr)
				assert.Equal(t, []string{"localhost:*", "127.0.0.1:*"}, c.Inspect.Origins)
				assert.Equal(t, 64, c.Inspect.MaxConnections)
			},
		},
		{
			name: "inspector enabled",
			setup: func(v *viper.Viper) {
				v.Set("inspect.addr", "127.0.0.1:7070")
				v.Set("inspect.origins", "example.com, *.example.com")
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "127.0.0.1:7070", c.Inspect.Addr)
				assert.Equal(t, []string{"example.com", "*.example.com"}, c.Inspect.Origins)
			},
		},
		{
			name:        "inspector address without port",
			setup:       func(v *viper.Viper) { v.Set("inspect.addr", "localhost") },
			expectError: "inspect config",
		},
		{
			name:        "inspector without connections",
			setup:       func(v *viper.Viper) { v.Set("inspect.max_connections", 0) },
			expectError: "max_connections",
		},
		{
			name: "custom values",
			setup: func(v *viper.Viper) {
				v.Set("sources.paths", []string{"./assets", "./mods"})
				v.Set("sources.extensions", []string{".proto.yaml"})
				v.Set("cycles.policy", "cancel")
				v.Set("watch.debounce", "250ms")
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, []string{"./assets", "./mods"}, c.Sources.Paths)
				assert.Equal(t, []string{"proto.yaml"}, c.Sources.Extensions, "leading dot is dropped")
				assert.Equal(t, 250*time.Millisecond, c.Watch.Debounce)
			},
		},
		{
			name: "comma separated list from env",
			setup: func(v *viper.Viper) {
				v.Set("sources.paths", "./a, ./b")
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, []string{"./a", "./b"}, c.Sources.Paths)
			},
		},
		{
			name:        "unknown cycle policy",
			setup:       func(v *viper.Viper) { v.Set("cycles.policy", "ignore") },
			expectError: "cycles config",
		},
		{
			name:        "negative debounce",
			setup:       func(v *viper.Viper) { v.Set("watch.debounce", "-1s") },
			expectError: "negative",
		},
		{
			name:        "extension with separator",
			setup:       func(v *viper.Viper) { v.Set("sources.extensions", []string{"a/b.yaml"}) },
			expectError: "path separator",
		},
		{
			name:        "traversal in source path",
			setup:       func(v *viper.Viper) { v.Set("sources.paths", []string{"../outside"}) },
			expectError: "traversal",
		},
		{
			name:        "unknown log level",
			setup:       func(v *viper.Viper) { v.Set("log.level", "loud") },
			expectError: "log config",
		},
		{
			name:        "bad debounce type",
			setup:       func(v *viper.Viper) { v.Set("watch.debounce", "soon") },
			expectError: "debounce",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			config, err := LoadFrom(v)

			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, strings.ToLower(err.Error()), tt.expectError)
				assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
				assert.Nil(t, config)
				return
			}
			require.NoError(t, err)
			tt.check(t, config)
		})
	}
}

func TestLoadGlobal(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("cycles.policy", "panic")

	config, err := Load()
	require.NoError(t, err)

	policy, err := config.CyclePolicy()
	require.NoError(t, err)
	assert.Equal(t, cycles.Panic, policy(cycles.Cycle{Path: []string{"A", "A"}}))
}

func TestConfigLogger(t *testing.T) {
	config := &Config{Log: LogConfig{Level: "debug", Format: "json"}}
	logger, err := config.Logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)

	config.Log.Level = "loud"
	_, err = config.Logger()
	assert.Error(t, err)
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		errorType string
	}{
		{"relative path", "./prototypes", ""},
		{"nested path", "assets/prototypes/units", ""},
		{"dots in a name", "./my..prototypes", ""},
		{"empty path", "", "empty path"},
		{"path traversal", "../../../etc", "contains traversal"},
		{"command injection", "./prototypes; rm -rf /", "dangerous character"},
		{"backtick", "./prototypes`whoami`", "dangerous character"},
		{"nul byte", "./proto\x00types", "dangerous character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePath(tt.path)
			if tt.errorType == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorType)
		})
	}
}

func TestProtoConfigExtensions(t *testing.T) {
	pc := NewProtoConfig()
	assert.Equal(t, DefaultExtensions, pc.Extensions())

	tests := []struct {
		path    string
		matches bool
	}{
		{"units/orc.prototype.yaml", true},
		{"orc.prototype.yml", true},
		{"orc.prototype.jsonc", true},
		{"orc.yaml", false},
		{"prototype.yaml", false},
		{".prototype.yaml", false},
		{"orc.prototype.yaml.bak", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.matches, pc.Matches(tt.path), tt.path)
	}

	pc.WithExtensions(".unit.yaml", "")
	assert.Equal(t, []string{"unit.yaml"}, pc.Extensions())
	assert.True(t, pc.Matches("orc.unit.yaml"))
	assert.False(t, pc.Matches("orc.prototype.yaml"))
}

func TestProtoConfigHooks(t *testing.T) {
	var registered []string
	pc := NewProtoConfig().
		OnRegister(func(template *registry.Template) { registered = append(registered, template.ID) }).
		OnCycle(cycles.Always(cycles.Cancel))

	h := pc.Hooks()
	h.Register(&registry.Template{ID: "Orc"})
	assert.Equal(t, []string{"Orc"}, registered)
	assert.Equal(t, cycles.Cancel, h.CyclePolicy()(cycles.Cycle{}))

	h.OnRegister = nil
	assert.NotNil(t, pc.Hooks().OnRegister, "Hooks returns a copy")
}

func TestFromConfig(t *testing.T) {
	pc, err := FromConfig(&Config{
		Sources: SourcesConfig{Extensions: []string{"unit.yaml"}},
		Cycles:  CyclesConfig{Policy: "cancel"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"unit.yaml"}, pc.Extensions())
	assert.Equal(t, cycles.Cancel, pc.Hooks().CyclePolicy()(cycles.Cycle{}))

	_, err = FromConfig(&Config{Cycles: CyclesConfig{Policy: "sometimes"}})
	assert.Error(t, err)
}
