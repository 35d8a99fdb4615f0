package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/calrun/calrun/pkg/device"
	"github.com/calrun/calrun/pkg/session"
)

var (
	logLevel   = "info"
	configPath = "calrun.json"
)

var (
	gSession      = "Session:"
	gUtility      = "Utilities:"
	commandGroups = []string{
		gSession,
		gUtility,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, session.ErrNoAvailableFilename) {
		fmt.Fprintln(os.Stderr, "\nError: no writable output filename")
		fmt.Fprintln(os.Stderr, "  - Close the result files other programs have open, or remove the numbered ones next to your output path")
		fmt.Fprintln(os.Stderr, "  - Or pick another location with '--output'")
	} else if errors.Is(err, device.ErrUnusable) {
		fmt.Fprintln(os.Stderr, "\nError: the instrument connection is gone")
		fmt.Fprintln(os.Stderr, "  - Check the cable, address, and that the instrument is powered on")
		fmt.Fprintln(os.Stderr, "  - Make sure no other program is talking to the instrument")
	} else if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "\nInterrupted. Measurement was stopped and everything recorded so far is kept.")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calrun",
		Short: "calrun drives calibration and measurement sessions on bench instruments",
		Long: `calrun writes calibration parameters from a spreadsheet into a connected
instrument, verifies every write landed, and then records measurement
channels into a CSV file at a fixed rate.

Website: https://github.com/calrun/calrun
Report issues: https://github.com/calrun/calrun/issues`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "verify policy config file path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewRunCommand(),
		NewApplyCommand(),
		NewRecordCommand(),
		NewResolveCommand(),
		NewPortsCommand(),
		NewConfigCommand(),
		NewVersionCommand(),
	)

	return cmd
}
