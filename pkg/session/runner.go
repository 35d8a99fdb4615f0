package session

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/calrun/calrun/pkg/calib"
	"github.com/calrun/calrun/pkg/config"
)

// RunSpec is everything one full session run needs.
type RunSpec struct {
	// Calibration is applied before sampling. Empty skips the apply phase.
	Calibration calib.Set
	// Channels are the measurement channels to sample.
	Channels []string
	// Duration is the sampling window; zero (or no channels) skips the
	// sampling phase.
	Duration time.Duration
	// Interval is the sampling cadence.
	Interval time.Duration
	// OutputPath is the desired CSV location; the run may settle on a
	// numbered fallback next to it.
	OutputPath string
}

// RunReport is what a finished (or interrupted) run produced.
type RunReport struct {
	// Apply summarizes the calibration phase; zero when it was skipped.
	Apply calib.Summary
	// Applied says whether the calibration phase ran.
	Applied bool
	// Sampled says whether the sampling phase ran to completion.
	Sampled bool
	// OutputPath is the resolved CSV location, empty when sampling was
	// skipped.
	OutputPath string
	// SinkOpened says whether OutputPath was actually created; a run that
	// fails before sampling leaves no file behind.
	SinkOpened bool
	// PlannedSamples is the tick count the sampling window allowed.
	PlannedSamples int

	StartedAt  time.Time
	FinishedAt time.Time
}

// Runner drives a full session: resolve the output file, start
// measurement, stabilize, apply the calibration set, run the sampling
// loop, stop measurement.
type Runner struct {
	sess    *Session
	conf    config.Config
	display Display
}

// NewRunner returns a Runner echoing live samples to display; nil means
// no echo.
func NewRunner(sess *Session, conf config.Config, display Display) *Runner {
	if display == nil {
		display = NopDisplay{}
	}
	return &Runner{
		sess:    sess,
		conf:    conf,
		display: display,
	}
}

// Run executes the session. Measurement started here is stopped on every
// exit path, including interrupts.
func (r *Runner) Run(ctx context.Context, spec RunSpec) (*RunReport, error) {
	report := &RunReport{StartedAt: time.Now()}
	defer func() { report.FinishedAt = time.Now() }()

	sampling := len(spec.Channels) > 0 && spec.Duration > 0
	if sampling && spec.Interval <= 0 {
		return report, pkgerrors.New("sampling interval must be positive")
	}
	if len(spec.Calibration) == 0 && !sampling {
		return report, pkgerrors.New("nothing to do: no calibration entries and no sampling window")
	}
	if err := spec.Calibration.Validate(); err != nil {
		return report, pkgerrors.Wrap(err, "invalid calibration set")
	}

	if sampling {
		resolved, err := ResolveOutputPath(spec.OutputPath)
		if err != nil {
			return report, err
		}
		report.OutputPath = resolved
		report.PlannedSamples = SampleCount(spec.Duration, spec.Interval)
	}

	r.sess.StartMeasurement()
	defer r.sess.StopMeasurement()

	if err := stabilize(ctx, r.conf.StabilizeDelay()); err != nil {
		return report, err
	}

	if len(spec.Calibration) > 0 {
		applier := NewApplier(r.sess.Device(), r.conf)
		summary, err := applier.ApplyAll(ctx, spec.Calibration)
		report.Apply = summary
		report.Applied = true
		if err != nil {
			return report, err
		}
		logrus.WithFields(logrus.Fields{
			"succeeded": summary.Succeeded,
			"failed":    summary.Failed,
			"total":     summary.Total,
		}).Info("Calibration set applied")
	}

	if sampling {
		sink, err := NewCSVSink(report.OutputPath)
		if err != nil {
			return report, err
		}
		report.SinkOpened = true
		defer func() {
			if err := sink.Close(); err != nil {
				logrus.WithError(err).WithField("file", sink.Path()).Warn("could not close output file")
			}
		}()

		sampler := NewSampler(r.sess.Device())
		if err := sampler.Run(ctx, spec.Channels, spec.Duration, spec.Interval, sink, r.display); err != nil {
			return report, err
		}
		report.Sampled = true
		logrus.WithField("file", sink.Path()).Info("Samples written")
	}

	return report, nil
}
