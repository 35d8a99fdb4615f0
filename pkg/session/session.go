package session

import (
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/calrun/calrun/pkg/device"
)

// Session owns an attached device for the span of one run. It tracks
// whether this process started measurement so teardown only stops what it
// started.
type Session struct {
	dev       device.Device
	measuring bool
}

// Attach verifies the device answers and returns a Session owning it.
func Attach(dev device.Device) (*Session, error) {
	id, err := dev.Identify()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "instrument did not identify")
	}

	logrus.WithField("instrument", id).Info("Attached to instrument")
	return &Session{dev: dev}, nil
}

// Device returns the attached device.
func (s *Session) Device() device.Device {
	return s.dev
}

// StartMeasurement starts measurement. Failure is tolerated because the
// instrument may already be measuring; the return value says whether this
// session now owns the stop.
func (s *Session) StartMeasurement() bool {
	if err := s.dev.StartMeasurement(); err != nil {
		logrus.WithError(err).Warn("could not start measurement, it may already be running")
		return false
	}
	s.measuring = true
	logrus.Info("Measurement started")
	return true
}

// StopMeasurement stops measurement if this session started it. Safe to
// call any number of times.
func (s *Session) StopMeasurement() {
	if !s.measuring {
		return
	}
	if err := s.dev.StopMeasurement(); err != nil {
		logrus.WithError(err).Error("could not stop measurement")
		return
	}
	s.measuring = false
	logrus.Info("Measurement stopped")
}

// Close stops measurement if needed and releases the device.
func (s *Session) Close() {
	s.StopMeasurement()
	if err := s.dev.Close(); err != nil {
		logrus.WithError(err).Warn("could not close instrument connection")
	}
}
