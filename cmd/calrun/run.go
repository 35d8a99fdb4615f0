package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/calrun/calrun/pkg/calib"
	"github.com/calrun/calrun/pkg/config"
	"github.com/calrun/calrun/pkg/session"
)

func NewRunCommand() *cobra.Command {
	var (
		calibPath string
		measure   string
		duration  time.Duration
		interval  time.Duration
		output    string
		project   string
	)

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Apply a calibration sheet, then record measurement channels",
		GroupID: gSession,
		Long: `Run a full session against a connected instrument.

The calibration sheet is applied first: every parameter is written, the
instrument's calibration memory is synchronized, and the value is read back
until it matches. Once the whole sheet is processed, the measurement
channels are sampled at the given interval for the given duration and
written to a CSV file (plus a live table on the terminal).

Interrupting the run (Ctrl-C) stops it after the current parameter or
sample; measurement is stopped and everything recorded so far is kept.`,
		Example: `  # Simulated instrument, 10 seconds at 5 Hz
  calrun run --demo -c calib.xlsx -m "Input_1,Input_2,Output" -d 10s -i 200ms -o result.csv

  # Real instrument over TCP
  calrun run --addr 192.0.2.10:5025 -c calib.csv -m "T_Oil,N_Eng" -d 1m -i 1s -o bench.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := calib.LoadFile(calibPath)
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{
				"file":    calibPath,
				"entries": len(set),
			}).Info("Calibration sheet loaded")

			channels := session.ParseChannelList(measure)
			if len(channels) == 0 {
				return fmt.Errorf("no measurement channels in %q", measure)
			}

			conf, err := loadConfig()
			if err != nil {
				return err
			}
			if project != "" {
				logrus.WithField("project", project).Info("Starting session")
			}

			report, err := runSession(conf, session.RunSpec{
				Calibration: set,
				Channels:    channels,
				Duration:    duration,
				Interval:    interval,
				OutputPath:  output,
			})
			if report != nil {
				printReport(cmd, report)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&calibPath, "calib", "c", "", "calibration sheet (.xlsx or .csv); column A names, column B values, first row is a header")
	f.StringVarP(&measure, "measure", "m", "", "measurement channels to record, comma-separated")
	f.DurationVarP(&duration, "duration", "d", 0, "how long to record (e.g. 10s, 2m)")
	f.DurationVarP(&interval, "interval", "i", time.Second, "time between samples (e.g. 200ms)")
	f.StringVarP(&output, "output", "o", "result.csv", "CSV file to write; a numbered fallback is used when it is taken")
	f.StringVarP(&project, "project", "p", "", "project name recorded in the logs")
	addInstrumentFlags(cmd)
	_ = cmd.MarkFlagRequired("calib")
	_ = cmd.MarkFlagRequired("measure")
	_ = cmd.MarkFlagRequired("duration")

	return cmd
}

// runSession opens the instrument and drives one run, stopping at the next
// safe point when the user interrupts. The report covers whatever
// completed, even when err is non-nil.
func runSession(conf config.Config, spec session.RunSpec) (*session.RunReport, error) {
	dev, err := openInstrument()
	if err != nil {
		return nil, err
	}

	sess, err := session.Attach(dev)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// After the first interrupt the run winds down on its own; a second
		// one should kill the process the hard way.
		<-ctx.Done()
		stop()
	}()

	runner := session.NewRunner(sess, conf, session.NewConsoleDisplay(os.Stdout))
	return runner.Run(ctx, spec)
}

func printReport(cmd *cobra.Command, report *session.RunReport) {
	if report.Applied {
		printApplySummary(cmd, report.Apply)
	}

	if report.SinkOpened {
		cmd.Println()
		if report.Sampled {
			cmd.Printf("Samples saved to %s\n", bold("%s", report.OutputPath))
		} else {
			cmd.Printf("Run did not finish; samples recorded so far are kept in %s\n", report.OutputPath)
		}
	}

	cmd.Printf("Session took %s\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}

func printApplySummary(cmd *cobra.Command, summary calib.Summary) {
	cmd.Println()
	cmd.Println(bold("Calibration results:"))
	cmd.Printf("  Verified: %s\n", color.GreenString("%d", summary.Succeeded))
	if summary.Failed > 0 {
		cmd.Printf("  Failed:   %s\n", color.RedString("%d", summary.Failed))
	} else {
		cmd.Printf("  Failed:   %d\n", summary.Failed)
	}
	cmd.Printf("  Total:    %d\n", summary.Total)

	for _, r := range summary.Results {
		switch r.Outcome {
		case calib.WriteFailed:
			cmd.Printf("  %s %s: write failed: %v\n", color.RedString("✘"), r.Name, r.Err)
		case calib.UnverifiedAfterRetries:
			if r.LastRead != nil {
				cmd.Printf("  %s %s: wrote %g but read back %g\n", color.YellowString("⚠"), r.Name, r.Target, *r.LastRead)
			} else {
				cmd.Printf("  %s %s: wrote %g but could not read it back\n", color.YellowString("⚠"), r.Name, r.Target)
			}
		}
	}

	if !summary.AllVerified() {
		cmd.Println("Some parameters did not verify. Download the working page to the device manually, then check the values.")
	}
}
