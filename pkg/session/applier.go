package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/calrun/calrun/pkg/calib"
	"github.com/calrun/calrun/pkg/config"
	"github.com/calrun/calrun/pkg/device"
)

// Applier writes calibration targets to a device and verifies each one
// stuck before moving on.
type Applier struct {
	dev  device.Device
	conf config.Config
}

// NewApplier returns an Applier driving dev under the policy in conf.
func NewApplier(dev device.Device, conf config.Config) *Applier {
	return &Applier{
		dev:  dev,
		conf: conf,
	}
}

// ApplyAll applies every entry of the set in order. Per-parameter failures
// are recorded in the summary and do not stop the run; the returned error
// is non-nil only when the device connection is gone or ctx ends, with the
// summary covering everything processed up to that point. Interrupts take
// effect between parameters.
func (a *Applier) ApplyAll(ctx context.Context, set calib.Set) (calib.Summary, error) {
	summary := calib.Summary{Total: len(set)}

	for i, entry := range set {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		logrus.WithFields(logrus.Fields{
			"param":  entry.Name,
			"target": entry.Value,
			"index":  fmt.Sprintf("%d/%d", i+1, len(set)),
		}).Info("Applying calibration parameter")

		result, err := a.applyOne(entry)
		if err != nil {
			return summary, pkgerrors.Wrapf(err, "applying %s", entry.Name)
		}

		summary.Results = append(summary.Results, result)
		switch result.Outcome {
		case calib.Verified:
			summary.Succeeded++
			logrus.WithFields(logrus.Fields{
				"param": entry.Name,
				"read":  float64OrNA(result.LastRead),
			}).Info("Verified")
		case calib.WriteFailed:
			summary.Failed++
			logrus.WithError(result.Err).WithField("param", entry.Name).Error("Write failed")
		default:
			summary.Failed++
			logrus.WithFields(logrus.Fields{
				"param":    entry.Name,
				"target":   entry.Value,
				"lastRead": float64OrNA(result.LastRead),
			}).Warn("Not verified after retries")
		}
	}

	return summary, nil
}

// applyOne runs the write-verify procedure for a single parameter:
// diagnostic read, write, memory sync, then tolerance-checked readbacks.
// The returned error is non-nil only when the connection is unusable.
func (a *Applier) applyOne(entry calib.Entry) (calib.Result, error) {
	result := calib.Result{Name: entry.Name, Target: entry.Value}
	log := logrus.WithField("param", entry.Name)

	// Diagnostic read. Informational only: a parameter that cannot be
	// read may still accept writes.
	prior, err := a.dev.ReadValue(entry.Name)
	switch {
	case err == nil:
		result.Prior = &prior
		log.Debugf("current value %g, target %g", prior, entry.Value)
	case errors.Is(err, device.ErrUnusable):
		return result, err
	default:
		log.WithError(err).Warn("could not read current value")
	}

	if err := a.dev.WriteValue(entry.Name, entry.Value); err != nil {
		if errors.Is(err, device.ErrUnusable) {
			return result, err
		}
		result.Outcome = calib.WriteFailed
		result.Err = err
		return result, nil
	}

	a.syncMemory(log)

	time.Sleep(a.conf.SettleDelay())

	attempts := a.conf.VerifyAttempts()
	tolerance := a.conf.VerifyTolerance()
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := a.dev.ReadValue(entry.Name)
		switch {
		case err == nil:
			result.LastRead = &v
			if math.Abs(v-entry.Value) < tolerance {
				result.Outcome = calib.Verified
				return result, nil
			}
			log.Debugf("attempt %d/%d read %g, want %g within %g", attempt, attempts, v, entry.Value, tolerance)
		case errors.Is(err, device.ErrUnusable):
			return result, err
		default:
			log.WithError(err).Debugf("attempt %d/%d readback failed", attempt, attempts)
		}

		if attempt < attempts {
			time.Sleep(a.conf.RetryDelay())
		}
	}

	result.Outcome = calib.UnverifiedAfterRetries
	return result, nil
}

// syncMemory runs the device's sync procedures in order and stops at the
// first success. All of them failing only logs a warning; verification
// decides whether the write actually landed.
func (a *Applier) syncMemory(log *logrus.Entry) {
	for _, op := range a.dev.SyncOps() {
		if err := op.Run(); err != nil {
			log.WithError(err).Debugf("sync %s failed, trying next", op.Name)
			continue
		}
		log.Debugf("memory synchronized via %s", op.Name)
		return
	}
	log.Warn("no memory sync procedure succeeded")
}

func float64OrNA(v *float64) string {
	if v == nil {
		return NotAvailable
	}
	return fmt.Sprintf("%g", *v)
}
