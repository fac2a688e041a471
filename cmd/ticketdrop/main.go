package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ticketdrop/ticketdrop/internal/config"
	"github.com/ticketdrop/ticketdrop/internal/debug"
	"github.com/ticketdrop/ticketdrop/internal/log"
	"github.com/ticketdrop/ticketdrop/internal/telemetry"
	"github.com/ticketdrop/ticketdrop/internal/ui"
)

var (
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

func init() {
	if err := config.Initialize(); err != nil {
		WarnError("failed to initialize config: %v", err)
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	rootCmd.AddGroup(&cobra.Group{ID: "flow", Title: "Turning Text Into Issues:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup & Configuration:"})
}

var rootCmd = &cobra.Command{
	Use:   "ticketdrop",
	Short: "ticketdrop - turn free-form notes into Linear issues",
	Long: `Paste or dictate a list of things to do, review the issues a model
extracts from it, then create them in Linear in one go.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("ticketdrop version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		cmd.SetContext(rootCtx)

		debug.SetVerbose(verboseFlag)
		debug.SetQuiet(quietFlag)
		ui.ConfigureColor()

		level := config.GetString(config.KeyLogLevel)
		if verboseFlag {
			level = "debug"
		}
		if err := log.Initialize(level, config.GetBool(config.KeyLogDev)); err != nil {
			WarnError("invalid log level %q: %v", level, err)
		}
		if err := telemetry.Init(rootCtx, telemetryOptions()); err != nil {
			WarnError("telemetry disabled: %v", err)
		}
		debug.Logf("[debug] config file: %q\n", config.ConfigFileUsed())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		telemetry.Shutdown(context.Background())
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func telemetryOptions() telemetry.Options {
	return telemetry.Options{
		Enabled:     config.GetBool(config.KeyTelemetryEnabled),
		ServiceName: "ticketdrop",
		Version:     Version,
		Stdout:      config.GetBool(config.KeyTelemetryStdout),
		Endpoint:    config.GetString(config.KeyTelemetryEndpoint),
		SampleRatio: config.GetFloat64(config.KeyTelemetrySample),
	}
}

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
