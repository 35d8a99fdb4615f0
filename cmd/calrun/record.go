package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/calrun/calrun/pkg/session"
)

func NewRecordCommand() *cobra.Command {
	var (
		measure  string
		duration time.Duration
		interval time.Duration
		output   string
	)

	cmd := &cobra.Command{
		Use:     "record",
		Short:   "Record measurement channels without touching calibration",
		GroupID: gSession,
		Long: `Sample the given measurement channels at a fixed interval and write
them to a CSV file, mirroring each row on the terminal.

A channel that stops answering is recorded as N/A for that sample and the
run keeps going; the file keeps the channels in the order given here.`,
		Example: `  calrun record --demo -m "Input_1,Output" -d 10s -i 200ms -o result.csv
  calrun record --addr 192.0.2.10:5025 -m "T_Oil" -d 30m -i 5s -o soak.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			channels := session.ParseChannelList(measure)
			if len(channels) == 0 {
				return fmt.Errorf("no measurement channels in %q", measure)
			}

			conf, err := loadConfig()
			if err != nil {
				return err
			}

			report, err := runSession(conf, session.RunSpec{
				Channels:   channels,
				Duration:   duration,
				Interval:   interval,
				OutputPath: output,
			})
			if report != nil {
				printReport(cmd, report)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&measure, "measure", "m", "", "measurement channels to record, comma-separated")
	f.DurationVarP(&duration, "duration", "d", 0, "how long to record (e.g. 10s, 2m)")
	f.DurationVarP(&interval, "interval", "i", time.Second, "time between samples (e.g. 200ms)")
	f.StringVarP(&output, "output", "o", "result.csv", "CSV file to write; a numbered fallback is used when it is taken")
	addInstrumentFlags(cmd)
	_ = cmd.MarkFlagRequired("measure")
	_ = cmd.MarkFlagRequired("duration")

	return cmd
}
