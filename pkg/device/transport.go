package device

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/gotmc/prologix"
	"github.com/gotmc/prologix/driver/vcp"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// transport moves one command line out and one reply line back.
type transport interface {
	roundTrip(cmd string) (string, error)
	close() error
}

// errReadTimeout marks a read that gave up waiting for a reply line.
var errReadTimeout = errors.New("read timed out")

func isTimeout(err error) bool {
	if errors.Is(err, errReadTimeout) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// lineTransport speaks newline-terminated commands over a byte stream.
type lineTransport struct {
	rw      io.ReadWriteCloser
	br      *bufio.Reader
	timeout time.Duration
	// deadline arms a read/write deadline on the stream; nil when the
	// stream keeps its own timeout (serial ports do).
	deadline func(time.Time) error
}

func newLineTransport(rw io.ReadWriteCloser, timeout time.Duration, deadline func(time.Time) error) *lineTransport {
	return &lineTransport{
		rw:       rw,
		br:       bufio.NewReader(rw),
		timeout:  timeout,
		deadline: deadline,
	}
}

func (t *lineTransport) roundTrip(cmd string) (string, error) {
	if t.deadline != nil {
		if err := t.deadline(time.Now().Add(t.timeout)); err != nil {
			return "", err
		}
	}

	if _, err := t.rw.Write([]byte(cmd + "\n")); err != nil {
		return "", err
	}

	line, err := t.br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (t *lineTransport) close() error {
	return t.rw.Close()
}

// DialTCP connects to an instrument listening on a host:port address.
func DialTCP(addr string, timeout time.Duration) (*Instrument, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to connect to %s", addr)
	}

	logrus.WithField("addr", addr).Debug("connected to instrument over TCP")

	t := newLineTransport(conn, timeout, conn.SetDeadline)
	return newInstrument(t, "tcp://"+addr), nil
}

// serialStream adapts a serial.Port for the line transport. The port
// reports a timed-out read as (0, nil), which bufio would spin on.
type serialStream struct {
	serial.Port
}

func (s serialStream) Read(p []byte) (int, error) {
	n, err := s.Port.Read(p)
	if n == 0 && err == nil {
		return 0, errReadTimeout
	}
	return n, err
}

// OpenSerial opens an instrument attached to a local serial port.
func OpenSerial(portName string, baudRate int, timeout time.Duration) (*Instrument, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open serial port %s", portName)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, pkgerrors.Wrapf(err, "failed to set read timeout on %s", portName)
	}

	logrus.WithFields(logrus.Fields{
		"port": portName,
		"baud": baudRate,
	}).Debug("opened instrument serial port")

	t := newLineTransport(serialStream{Port: port}, timeout, nil)
	return newInstrument(t, "serial://"+portName), nil
}

// ListSerialPorts returns the serial port names present on this machine.
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

// gpibTransport drives an instrument behind a Prologix GPIB-USB adapter.
// Every command in our protocol gets a reply, so Query covers writes too.
type gpibTransport struct {
	gpib *prologix.Controller
	port io.Closer
}

func (t *gpibTransport) roundTrip(cmd string) (string, error) {
	resp, err := t.gpib.Query(cmd)
	// The controller can hand back io.EOF together with a complete reply.
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

func (t *gpibTransport) close() error {
	// Hand control back to the front panel before dropping the port.
	if err := t.gpib.FrontPanel(true); err != nil {
		logrus.WithError(err).Debug("could not return instrument to local control")
	}
	return t.port.Close()
}

// OpenPrologix opens an instrument at the given GPIB address behind a
// Prologix GPIB-USB adapter on a local serial port.
func OpenPrologix(portName string, gpibAddr int) (*Instrument, error) {
	port, err := vcp.NewVCP(portName)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open Prologix adapter on %s", portName)
	}

	gpib, err := prologix.NewController(port, gpibAddr, false)
	if err != nil {
		_ = port.Close()
		return nil, pkgerrors.Wrapf(err, "failed to set up GPIB controller on %s", portName)
	}

	logrus.WithFields(logrus.Fields{
		"port": portName,
		"gpib": gpibAddr,
	}).Debug("opened instrument behind Prologix adapter")

	t := &gpibTransport{gpib: gpib, port: port}
	return newInstrument(t, fmt.Sprintf("gpib://%s/%d", portName, gpibAddr)), nil
}
