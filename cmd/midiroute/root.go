package main

import (
	"github.com/spf13/cobra"

	"github.com/leandrodaf/midiroute/internal/config"
	"github.com/leandrodaf/midiroute/internal/logger"
	"github.com/leandrodaf/midiroute/sdk/contracts"
	"github.com/leandrodaf/midiroute/sdk/midi"
)

var (
	configPath string
	logLevel   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "midiroute",
	Short:         "Route MIDI messages between ports",
	Long:          "midiroute listens to MIDI inputs, detects gestures and forwards messages to outputs as described by a YAML file.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every message")
}

// loadConfig reads --config, or the defaults, and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, cfg.Validate()
}

// newClient builds the logger and client described by cfg.
func newClient(cfg *config.Config) (*midi.Client, contracts.Logger, error) {
	log := logger.NewStandardLogger()
	opts := append([]contracts.Option{contracts.WithLogger(log)}, cfg.ClientOptions()...)
	client, err := midi.NewMIDIClient(opts...)
	if err != nil {
		return nil, log, err
	}
	return client, log, nil
}
