package device

import (
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Command verbs of the line protocol.
const (
	cmdIdentify        = "*IDN?"
	cmdReadValue       = "CAL:READ?"
	cmdWriteValue      = "CAL:WRITE"
	cmdReadMeasurement = "MEAS:READ?"
	cmdSync            = "CAL:SYNC"
	cmdPageDownload    = "CAL:PAGE:DOWNLOAD"
	cmdPageSync        = "CAL:PAGE:SYNC"
	cmdMeasStart       = "MEAS:START"
	cmdMeasStop        = "MEAS:STOP"
)

const (
	respOK        = "OK"
	respErrPrefix = "ERR "
)

// Instrument drives an instrument over a line-oriented transport: one
// command line out, one reply line back. A reply is a bare value, "OK",
// or "ERR <message>".
type Instrument struct {
	t     transport
	label string
}

var _ Device = &Instrument{}

func newInstrument(t transport, label string) *Instrument {
	return &Instrument{
		t:     t,
		label: label,
	}
}

// String returns a human-readable name of the underlying connection.
func (d *Instrument) String() string {
	return d.label
}

func (d *Instrument) query(cmd string) (string, error) {
	logrus.WithFields(logrus.Fields{
		"conn": d.label,
		"cmd":  cmd,
	}).Trace("Sending command")

	resp, err := d.t.roundTrip(cmd)
	if err != nil {
		if isTimeout(err) {
			// This one command went unanswered. The line itself may still
			// be fine, so the caller decides whether to retry or give up.
			return "", pkgerrors.Wrapf(err, "no reply to %q from %s", cmd, d.label)
		}
		return "", pkgerrors.Wrapf(ErrUnusable, "%q on %s: %v", cmd, d.label, err)
	}

	logrus.WithFields(logrus.Fields{
		"conn": d.label,
		"cmd":  cmd,
		"resp": resp,
	}).Trace("Got reply")

	if strings.HasPrefix(resp, respErrPrefix) {
		return "", &CommandError{Cmd: cmd, Msg: strings.TrimPrefix(resp, respErrPrefix)}
	}

	return resp, nil
}

// exec sends a command that should be answered with OK.
func (d *Instrument) exec(cmd string) error {
	resp, err := d.query(cmd)
	if err != nil {
		return err
	}
	if resp != respOK {
		return &CommandError{Cmd: cmd, Msg: fmt.Sprintf("unexpected reply %q", resp)}
	}
	return nil
}

// queryFloat sends a command that should be answered with a number.
func (d *Instrument) queryFloat(cmd string) (float64, error) {
	resp, err := d.query(cmd)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, &CommandError{Cmd: cmd, Msg: fmt.Sprintf("unparsable reply %q", resp)}
	}
	return v, nil
}

// Identify returns the instrument identification string.
func (d *Instrument) Identify() (string, error) {
	logrus.Tracef("Identify called")
	return d.query(cmdIdentify)
}

// ReadValue reads the current value of a calibration parameter.
func (d *Instrument) ReadValue(name string) (float64, error) {
	logrus.Tracef("ReadValue(%s) called", name)
	return d.queryFloat(cmdReadValue + " " + name)
}

// WriteValue writes a new target for a calibration parameter.
func (d *Instrument) WriteValue(name string, value float64) error {
	logrus.Tracef("WriteValue(%s, %g) called", name, value)

	cmd := fmt.Sprintf("%s %s,%s", cmdWriteValue, name, strconv.FormatFloat(value, 'g', -1, 64))
	return d.exec(cmd)
}

// ReadMeasurement reads the current value of a measurement channel.
func (d *Instrument) ReadMeasurement(name string) (float64, error) {
	logrus.Tracef("ReadMeasurement(%s) called", name)
	return d.queryFloat(cmdReadMeasurement + " " + name)
}

// SyncOps returns the calibration memory synchronization procedures of
// the instrument, most preferred first.
func (d *Instrument) SyncOps() []SyncOp {
	return []SyncOp{
		{Name: "Synchronize", Run: func() error { return d.exec(cmdSync) }},
		{Name: "DownloadWorkingPage", Run: func() error { return d.exec(cmdPageDownload) }},
		{Name: "SyncWorkingPage", Run: func() error { return d.exec(cmdPageSync) }},
	}
}

// StartMeasurement puts the instrument into measuring state.
func (d *Instrument) StartMeasurement() error {
	logrus.Tracef("StartMeasurement called")
	return d.exec(cmdMeasStart)
}

// StopMeasurement takes the instrument out of measuring state.
func (d *Instrument) StopMeasurement() error {
	logrus.Tracef("StopMeasurement called")
	return d.exec(cmdMeasStop)
}

// Close releases the underlying connection.
func (d *Instrument) Close() error {
	logrus.Tracef("Close called")
	return d.t.close()
}
