// Package cmd provides the sketchcad command-line interface.
//
// Configuration sources, highest priority first:
//  1. Command-line flags (--config, --log-level)
//  2. SKETCHCAD_CONFIG_FILE environment variable
//  3. Individual environment variables (SKETCHCAD_SOLVER_MAX_ITERATIONS, ...)
//  4. A .sketchcad.yml file in the current directory
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sketchcad/internal/config"
	"github.com/conneroisu/sketchcad/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sketchcad",
	Short: "A parametric 2D sketch engine",
	Long: `Sketchcad solves constraint-driven 2D sketches: entities (points,
lines, circles, arcs, splines) related by geometric constraints, with
dimensions optionally driven by named formula parameters.

Quick start:
  sketchcad solve sketch.yaml      Solve a sketch and report diagnostics
  sketchcad profiles sketch.yaml   Extract closed regions
  sketchcad watch sketch.yaml      Re-solve whenever the file changes
  sketchcad serve sketch.yaml      Live preview over HTTP/websocket`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .sketchcad.yml, can also use SKETCHCAD_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("SKETCHCAD_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sketchcad")
	}

	viper.SetEnvPrefix("SKETCHCAD")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing or malformed config file degrades to defaults.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig builds the runtime configuration and a logger from it.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logging.NewLogger(&logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	return cfg, log, nil
}
