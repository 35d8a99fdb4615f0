package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/calrun/calrun/pkg/calib"
	"github.com/calrun/calrun/pkg/session"
)

func NewApplyCommand() *cobra.Command {
	var (
		calibPath string
		project   string
	)

	cmd := &cobra.Command{
		Use:     "apply",
		Short:   "Apply a calibration sheet without recording",
		GroupID: gSession,
		Long: `Apply every parameter of a calibration sheet to the instrument.

Each parameter is written, the calibration memory is synchronized, and the
value is read back until it matches the target. One bad parameter never
stops the rest of the sheet; the summary at the end lists everything that
did not verify.`,
		Example: `  calrun apply --demo -c calib.xlsx
  calrun apply --serial /dev/ttyUSB0 --baud 9600 -c calib.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := calib.LoadFile(calibPath)
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{
				"file":    calibPath,
				"entries": len(set),
			}).Info("Calibration sheet loaded")

			conf, err := loadConfig()
			if err != nil {
				return err
			}
			if project != "" {
				logrus.WithField("project", project).Info("Starting session")
			}

			report, err := runSession(conf, session.RunSpec{
				Calibration: set,
			})
			if report != nil {
				printReport(cmd, report)
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&calibPath, "calib", "c", "", "calibration sheet (.xlsx or .csv); column A names, column B values, first row is a header")
	f.StringVarP(&project, "project", "p", "", "project name recorded in the logs")
	addInstrumentFlags(cmd)
	_ = cmd.MarkFlagRequired("calib")

	return cmd
}
