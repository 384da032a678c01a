package cmd

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// OutputFlags are shared by commands that print reports.
type OutputFlags struct {
	Format string
	Quiet  bool
}

// AddSourceFlags registers the flags that override the sources and log
// sections, binding each to its viper key.
func AddSourceFlags(fs *pflag.FlagSet) {
	fs.StringSlice("paths", nil, "template directories (overrides sources.paths)")
	fs.StringSlice("extensions", nil, "template file suffixes (overrides sources.extensions)")
	fs.String("cycles", "", "cycle policy: default, panic or cancel")
	fs.StringP("log-level", "l", "", "log level (debug, info, warn, error)")

	bind(fs, "paths", "sources.paths")
	bind(fs, "extensions", "sources.extensions")
	bind(fs, "cycles", "cycles.policy")
	bind(fs, "log-level", "log.level")
}

// AddOutputFlags registers --format and --quiet on fs.
func AddOutputFlags(fs *pflag.FlagSet, flags *OutputFlags) {
	fs.StringVarP(&flags.Format, "format", "f", "text", "output format (text, json)")
	fs.BoolVarP(&flags.Quiet, "quiet", "q", false, "only print problems")
}

// Validate checks the output flag values.
func (f *OutputFlags) Validate() error {
	switch f.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", f.Format)
	}
}

func bind(fs *pflag.FlagSet, name, key string) {
	if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}
