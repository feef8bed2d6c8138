// Package cmd implements the CLI commands for mediarr.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/reybeld94/mediarr/internal/config"
	"github.com/reybeld94/mediarr/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "mediarr",
	Short:   "Media catalog aggregation and enrichment service",
	Version: version.Short(),
	Long: `mediarr aggregates live, VOD, and series catalogs from Xtream Codes
panels into a local database, enriches them with TMDB metadata, ingests
XMLTV guide data, and serves curated collection feeds over HTTP.

Configuration is read from a YAML file, environment variables with the
MEDIARR_ prefix, and command-line flags, in increasing priority.`,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default mediarr.yaml in . or /etc/mediarr)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}

// loadConfig reads the layered configuration and applies any flags the user
// set explicitly on top. Flags are not bound to viper so that an unset flag
// never shadows an environment variable or config file value.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	overrideString(rootCmd.PersistentFlags(), "log-level", &cfg.Logging.Level)
	overrideString(rootCmd.PersistentFlags(), "log-format", &cfg.Logging.Format)
	if flags != nil {
		overrideString(flags, "host", &cfg.Server.Host)
		overrideInt(flags, "port", &cfg.Server.Port)
		if flags.Changed("database-url") {
			raw, _ := flags.GetString("database-url")
			driver, dsn, err := config.ParseDatabaseURL(raw)
			if err != nil {
				return nil, err
			}
			cfg.Database.Driver = driver
			cfg.Database.DSN = dsn
		}
	}

	// "warning" is a common alias.
	if strings.EqualFold(cfg.Logging.Level, "warning") {
		cfg.Logging.Level = "warn"
	}
	return cfg, nil
}

func overrideString(flags *pflag.FlagSet, name string, dst *string) {
	if flags.Changed(name) {
		if v, err := flags.GetString(name); err == nil {
			*dst = v
		}
	}
}

func overrideInt(flags *pflag.FlagSet, name string, dst *int) {
	if flags.Changed(name) {
		if v, err := flags.GetInt(name); err == nil {
			*dst = v
		}
	}
}
