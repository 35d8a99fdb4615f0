package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// sleepCtx waits for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// stabilize waits for the instrument to settle after measurement start,
// logging a countdown so the operator can see the session is alive.
func stabilize(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	logrus.Infof("waiting %s for the instrument to stabilize", d)
	for remaining := d; remaining > 0; remaining -= time.Second {
		step := time.Second
		if remaining < step {
			step = remaining
		}
		logrus.Debugf("stabilizing, %s left", remaining)
		if err := sleepCtx(ctx, step); err != nil {
			return err
		}
	}
	return nil
}
