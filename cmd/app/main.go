package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ForexPulse/internal/di"
	"ForexPulse/pkg/config"
	"ForexPulse/pkg/server"
)

var (
	configPath  string
	instruments []string
)

var rootCmd = &cobra.Command{
	Use:   "forexpulse",
	Short: "FX and metals market-context service",
	Long: `ForexPulse ingests prices, news and macro events for FX and metal
instruments, aggregates bars, and produces calibrated directional signals
with a regime snapshot and a short explanation.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	rootCmd.PersistentFlags().StringSliceVar(&instruments, "instrument", nil, "instruments to operate on (default: all configured)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildApp loads config and wires the application. The returned cleanup
// releases store, cache and producer connections.
func buildApp() (*server.App, func(), error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config load failed: %w", err)
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("app initialization failed: %w", err)
	}
	return app, cleanup, nil
}

func targetInstruments(app *server.App) []string {
	if len(instruments) > 0 {
		return instruments
	}
	return app.Config.Symbols()
}
