package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/calrun/calrun/pkg/config"
	"github.com/calrun/calrun/pkg/device"
)

// Instrument connection flags, shared by every command that talks to
// hardware. Exactly one of --addr, --serial, or --demo picks the
// connection; --gpib turns a serial port into a Prologix GPIB link.
var (
	tcpAddr        = ""
	serialPort     = ""
	baudRate       = 115200
	gpibAddr       = -1
	commandTimeout = 2 * time.Second
	demoMode       = false
)

func addInstrumentFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&tcpAddr, "addr", "", "instrument TCP address (host:port)")
	f.StringVar(&serialPort, "serial", "", "instrument serial port (e.g. /dev/ttyUSB0)")
	f.IntVar(&baudRate, "baud", 115200, "serial baud rate")
	f.IntVar(&gpibAddr, "gpib", -1, "GPIB address behind a Prologix adapter on --serial")
	f.DurationVar(&commandTimeout, "timeout", 2*time.Second, "per-command reply timeout")
	f.BoolVar(&demoMode, "demo", false, "use a built-in simulated instrument")
}

func openInstrument() (device.Device, error) {
	switch {
	case demoMode:
		return device.NewSimulator(), nil
	case tcpAddr != "" && serialPort != "":
		return nil, fmt.Errorf("--addr and --serial are mutually exclusive")
	case tcpAddr != "":
		return device.DialTCP(tcpAddr, commandTimeout)
	case serialPort != "" && gpibAddr >= 0:
		return device.OpenPrologix(serialPort, gpibAddr)
	case serialPort != "":
		return device.OpenSerial(serialPort, baudRate, commandTimeout)
	default:
		return nil, fmt.Errorf("no instrument given: use --addr, --serial, or --demo")
	}
}

func loadConfig() (config.Config, error) {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Debug("config loaded")
	return conf, nil
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
