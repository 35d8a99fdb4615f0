package config

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds the write-verify policy of a calibration session.
type Config interface {
	// VerifyTolerance is the absolute difference a readback may have from
	// the target and still count as verified.
	VerifyTolerance() float64
	// VerifyAttempts is how many readbacks are tried before giving up on a
	// parameter.
	VerifyAttempts() int
	// SettleDelay is the wait between a write and the first readback.
	SettleDelay() time.Duration
	// RetryDelay is the wait between failed readbacks.
	RetryDelay() time.Duration
	// StabilizeDelay is the wait after starting measurement before any
	// calibration or sampling starts.
	StabilizeDelay() time.Duration

	SetVerifyTolerance(float64)
	SetVerifyAttempts(int)
	SetSettleDelay(time.Duration)
	SetRetryDelay(time.Duration)
	SetStabilizeDelay(time.Duration)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error

	LogrusFields() logrus.Fields
}
