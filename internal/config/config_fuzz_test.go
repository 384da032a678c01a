package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// FuzzLoadConfig tests configuration loading with various malformed inputs
func FuzzLoadConfig(f *testing.F) {
	f.Add(`sources:
  paths:
    - ./prototypes
cycles:
  policy: cancel`)

	f.Add(`watch:
  debounce: "invalid"`)

	f.Add(`sources:
  extensions: ["a/b"]`)

	f.Add(`malformed: yaml: content`)
	f.Add(``)

	f.Fuzz(func(t *testing.T, yamlContent string) {
		if len(yamlContent) > 50000 {
			t.Skip("Config content too large")
		}

		configFile := filepath.Join(t.TempDir(), ".protoplast.yml")
		if err := os.WriteFile(configFile, []byte(yamlContent), 0644); err != nil {
			t.Skip("Could not write config file")
		}

		v := viper.New()
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return
		}

		config, err := LoadFrom(v)
		if err != nil {
			return
		}

		if config.Watch.Debounce < 0 {
			t.Errorf("negative debounce accepted: %s", config.Watch.Debounce)
		}
		for _, path := range config.Sources.Paths {
			if validatePath(path) != nil {
				t.Errorf("invalid path accepted: %q", path)
			}
		}
		for _, ext := range config.Sources.Extensions {
			if strings.ContainsAny(ext, `/\`) {
				t.Errorf("extension with separator accepted: %q", ext)
			}
		}
	})
}
