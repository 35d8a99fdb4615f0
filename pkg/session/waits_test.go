package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSleepCtxCompletes(t *testing.T) {
	if err := sleepCtx(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("sleepCtx: %v", err)
	}
}

func TestSleepCtxCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepCtx(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("canceled sleep must return immediately")
	}
}

func TestSleepCtxZeroDuration(t *testing.T) {
	if err := sleepCtx(context.Background(), 0); err != nil {
		t.Fatalf("sleepCtx(0): %v", err)
	}
}

func TestStabilizeCanceledMidCountdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := stabilize(ctx, 5*time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestStabilizeShortDelay(t *testing.T) {
	if err := stabilize(context.Background(), 5*time.Millisecond); err != nil {
		t.Fatalf("stabilize: %v", err)
	}
}
