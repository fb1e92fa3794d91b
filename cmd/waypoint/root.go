package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/waypoint/internal/config"
	"github.com/spf13/cobra"
)

// cfg is loaded before any subcommand runs.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "waypoint",
	Short: "Waypoint runs in-app experiences from the terminal",
	Long: `Waypoint drives remotely defined multi-step experiences through the SDK state machine.
Use it to play fixtures, listen for pushed experiences or expose a debug server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded

		flags := cmd.Flags()
		if flags.Changed("log-level") {
			cfg.Log.Level, _ = flags.GetString("log-level")
		}
		if flags.Changed("log-json") {
			cfg.Log.JSON, _ = flags.GetBool("log-json")
		}
		return cfg.Validate()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default "+config.DefaultPath+")")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON")
}

func logger() *slog.Logger {
	return cfg.Logger()
}
