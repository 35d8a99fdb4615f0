package session

import (
	"errors"
	"testing"
)

func TestAttachRequiresIdentification(t *testing.T) {
	dev := &fakeDevice{
		identifyFn: func() (string, error) { return "", errors.New("no reply") },
	}
	if _, err := Attach(dev); err == nil {
		t.Fatal("want an error when the instrument does not identify")
	}
}

func TestSessionStopsOnlyWhatItStarted(t *testing.T) {
	dev := &fakeDevice{
		startErr: errors.New("already measuring"),
	}
	sess, err := Attach(dev)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if sess.StartMeasurement() {
		t.Error("StartMeasurement reported ownership despite the device refusing")
	}
	sess.StopMeasurement()
	if dev.stopCalls != 0 {
		t.Errorf("got %d stop calls, want 0: this session never started measurement", dev.stopCalls)
	}
}

func TestSessionStopIsIdempotent(t *testing.T) {
	dev := &fakeDevice{}
	sess, err := Attach(dev)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if !sess.StartMeasurement() {
		t.Fatal("StartMeasurement failed")
	}
	sess.StopMeasurement()
	sess.StopMeasurement()
	sess.StopMeasurement()
	if dev.stopCalls != 1 {
		t.Errorf("got %d stop calls, want 1", dev.stopCalls)
	}
}

func TestSessionCloseStopsMeasurementAndReleasesDevice(t *testing.T) {
	dev := &fakeDevice{}
	sess, err := Attach(dev)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	sess.StartMeasurement()
	sess.Close()

	if dev.stopCalls != 1 {
		t.Errorf("got %d stop calls, want 1", dev.stopCalls)
	}
	if !dev.closed {
		t.Error("Close must release the device connection")
	}
}
