package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/calrun/calrun/pkg/device"
)

// NotAvailable is what a failed channel read becomes in the output.
const NotAvailable = "N/A"

// Reading is one channel's readout within a sample. OK is false when the
// read failed and the value must render as NotAvailable.
type Reading struct {
	Value float64
	OK    bool
}

// String renders the reading the way sinks and displays show it.
func (r Reading) String() string {
	if !r.OK {
		return NotAvailable
	}
	return strconv.FormatFloat(r.Value, 'f', 2, 64)
}

// Sample is one row of the sampling loop.
type Sample struct {
	// Tick counts from 1.
	Tick int
	// Elapsed is the nominal offset of this tick from the loop start in
	// seconds: Tick * interval.
	Elapsed float64
	// Timestamp is the wall-clock time the row's reads started.
	Timestamp time.Time
	// Values holds one reading per requested channel, in request order.
	Values []Reading
}

// Connectivity classifies the pre-run probe of the requested channels.
type Connectivity int

const (
	// ConnectivityNone means no channel answered.
	ConnectivityNone Connectivity = iota
	// ConnectivityPartial means some but not all channels answered.
	ConnectivityPartial
	// ConnectivityFull means every channel answered.
	ConnectivityFull
)

func (c Connectivity) String() string {
	switch c {
	case ConnectivityFull:
		return "full"
	case ConnectivityPartial:
		return "partial"
	default:
		return "none"
	}
}

// Sampler reads a fixed channel list at a fixed cadence and hands each
// row to a sink and a display.
type Sampler struct {
	dev device.Device
}

// NewSampler returns a Sampler reading from dev.
func NewSampler(dev device.Device) *Sampler {
	return &Sampler{dev: dev}
}

// SampleCount returns how many ticks fit in duration at the given
// interval: floor(duration / interval).
func SampleCount(duration, interval time.Duration) int {
	if interval <= 0 {
		return 0
	}
	return int(duration / interval)
}

// Probe reads every channel once and reports how many answered. It is
// advisory: the loop runs regardless, recording NotAvailable for dead
// channels.
func (s *Sampler) Probe(channels []string) (Connectivity, int) {
	alive := 0
	for _, ch := range channels {
		v, err := s.dev.ReadMeasurement(ch)
		if err != nil {
			logrus.WithError(err).WithField("channel", ch).Warn("channel did not answer probe")
			continue
		}
		logrus.WithFields(logrus.Fields{
			"channel": ch,
			"value":   v,
		}).Debug("channel answered probe")
		alive++
	}

	switch {
	case alive == 0:
		return ConnectivityNone, 0
	case alive == len(channels):
		return ConnectivityFull, alive
	default:
		return ConnectivityPartial, alive
	}
}

// Run samples channels every interval for duration, writing rows to sink
// and echoing them to display. Individual channel read failures become
// NotAvailable readings; it stops early only when the sink fails, the
// device connection is gone, or ctx ends. The cadence includes a full
// interval after the final row.
func (s *Sampler) Run(ctx context.Context, channels []string, duration, interval time.Duration, sink Sink, display Display) error {
	if len(channels) == 0 {
		return pkgerrors.New("no measurement channels given")
	}
	if interval <= 0 {
		return pkgerrors.New("sampling interval must be positive")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	count := SampleCount(duration, interval)

	conn, alive := s.Probe(channels)
	switch conn {
	case ConnectivityFull:
		logrus.WithField("channels", len(channels)).Info("All channels answering")
	case ConnectivityPartial:
		logrus.Warnf("only %d of %d channels answering, the rest record as %s", alive, len(channels), NotAvailable)
	default:
		logrus.Warnf("no channels answering, every value will record as %s", NotAvailable)
	}

	if err := sink.WriteHeader(channels); err != nil {
		return pkgerrors.Wrap(err, "failed to write header")
	}
	display.Header(channels)

	logrus.WithFields(logrus.Fields{
		"channels": len(channels),
		"samples":  count,
		"interval": interval.String(),
		"duration": duration.String(),
	}).Info("Sampling started")

	for tick := 1; tick <= count; tick++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		sample := Sample{
			Tick:      tick,
			Elapsed:   (time.Duration(tick) * interval).Seconds(),
			Timestamp: time.Now(),
			Values:    make([]Reading, len(channels)),
		}
		for i, ch := range channels {
			v, err := s.dev.ReadMeasurement(ch)
			if err != nil {
				if errors.Is(err, device.ErrUnusable) {
					return pkgerrors.Wrapf(err, "sampling %s", ch)
				}
				logrus.WithError(err).WithField("channel", ch).Debug("channel read failed")
				continue
			}
			sample.Values[i] = Reading{Value: v, OK: true}
		}

		if err := sink.WriteSample(sample); err != nil {
			return pkgerrors.Wrap(err, "failed to write sample")
		}
		display.Row(sample)

		if err := sleepCtx(ctx, interval); err != nil {
			return err
		}
	}

	logrus.WithField("samples", count).Info("Sampling finished")
	return nil
}
