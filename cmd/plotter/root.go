package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mastercactapus/plotter/config"
	"github.com/mastercactapus/plotter/logging"
)

var rootCmd = &cobra.Command{
	Use:           "plotter",
	Short:         "Plot SVG and G-code drawings on an EBB pen plotter",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command named on the command line.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringP("config", "c", "", "YAML settings file")
	f.String("model", "", "Machine model (v3, v3a3, sea3, mini)")
	f.StringP("port", "p", "", "Serial port, or port name on the bridge (default autodetect)")
	f.Int("baud", 0, "Serial baud rate")
	f.String("bridge", "", "Websocket URL of a serial-port-json-server to use instead of a local port")
	f.String("log-level", "", "Log level (debug, info, warn, error)")
	f.String("log-format", "", "Log format (text, json)")
}

// setup loads the settings, applies flags that were set, and builds the
// logger.
func setup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	cfg, err := config.LoadFile(path)
	if err != nil {
		return cfg, nil, err
	}

	if f.Changed("model") {
		name, _ := f.GetString("model")
		if err := cfg.SetModel(name); err != nil {
			return cfg, nil, err
		}
	}
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	str("port", &cfg.Device.Port)
	str("bridge", &cfg.Device.Bridge)
	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	if f.Changed("baud") {
		cfg.Device.Baud, _ = f.GetInt("baud")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return cfg, nil, err
	}
	log, err := logging.New(os.Stderr, level, cfg.Log.Format)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}
