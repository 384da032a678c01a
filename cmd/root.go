// Package cmd provides the protoplast command-line interface.
//
// Configuration is read from, highest priority first:
//
//  1. Command-line flags (--config, --paths, --log-level)
//  2. PROTOPLAST_CONFIG_FILE: path to a configuration file
//  3. PROTOPLAST_<SECTION>_<OPTION> environment variables
//  4. .protoplast.yml in the working directory
//
// Environment Variables:
//
//	PROTOPLAST_CONFIG_FILE:        path to a custom configuration file
//	PROTOPLAST_SOURCES_PATHS:      comma separated template directories
//	PROTOPLAST_SOURCES_EXTENSIONS: comma separated template suffixes
//	PROTOPLAST_CYCLES_POLICY:      default, panic or cancel
//	PROTOPLAST_LOG_LEVEL:          debug, info, warn or error
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "protoplast",
	Short: "Declarative object templates with schematics and hot reload",
	Long: `Protoplast loads prototype templates from YAML or JSONC files and applies
them to objects: each template is an ordered list of schematics that insert
capabilities, include other templates or spawn child objects.

Quick Start:
  protoplast validate              Check every template below the source paths
  protoplast graph                 Show how templates depend on each other
  protoplast spawn Orc             Spawn an object from a template and print it
  protoplast watch                 Reload templates as their files change

Templates are discovered below sources.paths (default ./prototypes) by suffix:
*.prototype.yaml, *.prototype.yml and *.prototype.jsonc.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .protoplast.yml, can also use PROTOPLAST_CONFIG_FILE env var)")
	AddSourceFlags(rootCmd.PersistentFlags())
}

// initConfig selects the configuration file and enables PROTOPLAST_
// environment overrides. A missing file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("PROTOPLAST_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".protoplast")
	}

	viper.SetEnvPrefix("PROTOPLAST")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
