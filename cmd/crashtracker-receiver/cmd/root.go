package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/DataDog/libdatadog/internal/config"
	"github.com/DataDog/libdatadog/internal/logging"
	"github.com/DataDog/libdatadog/internal/receiver"
)

var (
	logLevel  string
	logFormat string

	// Version info - set via SetVersion()
	appVersion string
	appCommit  string
	appDate    string
)

var rootCmd = &cobra.Command{
	Use:   "crashtracker-receiver",
	Short: "Out-of-process crash report receiver",
	Long: `crashtracker-receiver reads a crash handoff stream from stdin, rebuilds
the crash report, finishes symbolization and file attachment, and delivers
the result to the configured endpoint.

It is normally spawned by the crash tracker inside the monitored process,
not run by hand. Configuration comes from the handoff stream itself, with
CRASHTRACKER_* environment variables as fallback.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runReceive,
}

func Execute() error {
	return rootCmd.Execute()
}

func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto",
		"log format (auto, text, json)")
}

func runReceive(_ *cobra.Command, _ []string) error {
	rt, err := config.NewLoader().Load()
	if err != nil {
		return err
	}
	level := rt.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	log := logging.New(logging.Config{
		Level:  level,
		Format: logFormat,
		Output: os.Stderr,
	})

	rcv := receiver.New(log, rt, nil)
	if err := rcv.Run(context.Background(), os.Stdin); err != nil {
		log.Error("processing crash report failed", "error", err.Error())
		return err
	}
	return nil
}
