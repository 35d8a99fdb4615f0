package session

import (
	"context"
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"

	"github.com/calrun/calrun/pkg/calib"
	"github.com/calrun/calrun/pkg/config"
	"github.com/calrun/calrun/pkg/device"
	"github.com/calrun/calrun/pkg/utils/ptr"
)

// fakeDevice scripts instrument behavior per test. Nil functions answer
// with zero values so tests only fill in what they care about.
type fakeDevice struct {
	identifyFn func() (string, error)
	readFn     func(name string) (float64, error)
	writeFn    func(name string, value float64) error
	measureFn  func(name string) (float64, error)
	syncs      []device.SyncOp

	startErr   error
	stopErr    error
	startCalls int
	stopCalls  int
	closed     bool
}

var _ device.Device = &fakeDevice{}

func (f *fakeDevice) Identify() (string, error) {
	if f.identifyFn != nil {
		return f.identifyFn()
	}
	return "FAKE,TEST-1,0,1.0", nil
}

func (f *fakeDevice) ReadValue(name string) (float64, error) {
	if f.readFn != nil {
		return f.readFn(name)
	}
	return 0, nil
}

func (f *fakeDevice) WriteValue(name string, value float64) error {
	if f.writeFn != nil {
		return f.writeFn(name, value)
	}
	return nil
}

func (f *fakeDevice) ReadMeasurement(name string) (float64, error) {
	if f.measureFn != nil {
		return f.measureFn(name)
	}
	return 0, nil
}

func (f *fakeDevice) SyncOps() []device.SyncOp {
	return f.syncs
}

func (f *fakeDevice) StartMeasurement() error {
	f.startCalls++
	return f.startErr
}

func (f *fakeDevice) StopMeasurement() error {
	f.stopCalls++
	return f.stopErr
}

func (f *fakeDevice) Close() error {
	f.closed = true
	return nil
}

// testConfig keeps the default tolerance and attempts but zeroes every
// delay so tests run fast.
func testConfig() config.Config {
	return config.NewFileFromConfig(&config.RawFileConfig{
		VerifyTolerance:  ptr.To(0.01),
		VerifyAttempts:   ptr.To(3),
		SettleDelayMs:    ptr.To(0),
		RetryDelayMs:     ptr.To(0),
		StabilizeDelayMs: ptr.To(0),
	}, "")
}

func okSync(counter *int) device.SyncOp {
	return device.SyncOp{Name: "ok", Run: func() error { *counter++; return nil }}
}

func badSync(counter *int) device.SyncOp {
	return device.SyncOp{Name: "bad", Run: func() error { *counter++; return errors.New("not supported") }}
}

func TestApplyOneVerifyTolerance(t *testing.T) {
	tests := []struct {
		name     string
		readBack float64
		want     calib.Outcome
	}{
		{name: "well within tolerance", readBack: 99.995, want: calib.Verified},
		{name: "exact", readBack: 100, want: calib.Verified},
		{name: "just outside tolerance", readBack: 99.98, want: calib.UnverifiedAfterRetries},
		{name: "exactly at tolerance", readBack: 99.99, want: calib.UnverifiedAfterRetries},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{
				readFn: func(string) (float64, error) { return tt.readBack, nil },
			}
			a := NewApplier(dev, testConfig())

			result, err := a.applyOne(calib.Entry{Name: "A", Value: 100.0})
			if err != nil {
				t.Fatalf("applyOne: %v", err)
			}
			if result.Outcome != tt.want {
				t.Errorf("Outcome = %s, want %s", result.Outcome, tt.want)
			}
			if result.LastRead == nil || *result.LastRead != tt.readBack {
				t.Errorf("LastRead = %v, want %v", result.LastRead, tt.readBack)
			}
		})
	}
}

func TestApplyOneWriteFailureSkipsVerification(t *testing.T) {
	reads := 0
	syncs := 0
	dev := &fakeDevice{
		readFn:  func(string) (float64, error) { reads++; return 1, nil },
		writeFn: func(string, float64) error { return errors.New("rejected") },
		syncs:   []device.SyncOp{okSync(&syncs)},
	}
	a := NewApplier(dev, testConfig())

	result, err := a.applyOne(calib.Entry{Name: "A", Value: 2})
	if err != nil {
		t.Fatalf("applyOne: %v", err)
	}
	if result.Outcome != calib.WriteFailed {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, calib.WriteFailed)
	}
	if result.Err == nil {
		t.Error("a WriteFailed result must carry the write error")
	}
	if reads != 1 {
		t.Errorf("got %d reads, want 1 (the diagnostic read only, no verification)", reads)
	}
	if syncs != 0 {
		t.Errorf("got %d sync calls after a failed write, want 0", syncs)
	}
}

func TestApplyOneSyncStopsAtFirstSuccess(t *testing.T) {
	var first, second, third int
	dev := &fakeDevice{
		readFn: func(string) (float64, error) { return 5, nil },
		syncs: []device.SyncOp{
			badSync(&first),
			okSync(&second),
			okSync(&third),
		},
	}
	a := NewApplier(dev, testConfig())

	result, err := a.applyOne(calib.Entry{Name: "A", Value: 5})
	if err != nil {
		t.Fatalf("applyOne: %v", err)
	}
	if result.Outcome != calib.Verified {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, calib.Verified)
	}
	if first != 1 || second != 1 || third != 0 {
		t.Errorf("sync calls = %d/%d/%d, want 1/1/0 (stop at first success)", first, second, third)
	}
}

func TestApplyOneAllSyncsFailingIsNotFatal(t *testing.T) {
	var calls int
	dev := &fakeDevice{
		readFn: func(string) (float64, error) { return 5, nil },
		syncs: []device.SyncOp{
			badSync(&calls),
			badSync(&calls),
			badSync(&calls),
		},
	}
	a := NewApplier(dev, testConfig())

	result, err := a.applyOne(calib.Entry{Name: "A", Value: 5})
	if err != nil {
		t.Fatalf("applyOne: %v", err)
	}
	if result.Outcome != calib.Verified {
		t.Errorf("Outcome = %s, want %s (the device may auto-sync)", result.Outcome, calib.Verified)
	}
	if calls != 3 {
		t.Errorf("sync calls = %d, want 3 (every strategy tried)", calls)
	}
}

func TestApplyOneRetriesUntilVerified(t *testing.T) {
	reads := 0
	dev := &fakeDevice{
		readFn: func(string) (float64, error) {
			reads++
			// Call 1 is the diagnostic read; the write settles in on the
			// third verification attempt.
			if reads < 4 {
				return 0, nil
			}
			return 7, nil
		},
	}
	a := NewApplier(dev, testConfig())

	result, err := a.applyOne(calib.Entry{Name: "A", Value: 7})
	if err != nil {
		t.Fatalf("applyOne: %v", err)
	}
	if result.Outcome != calib.Verified {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, calib.Verified)
	}
	if reads != 4 {
		t.Errorf("got %d reads, want 4 (diagnostic + 3 verification attempts)", reads)
	}
}

func TestApplyOneUnverifiedCarriesLastRead(t *testing.T) {
	reads := 0
	dev := &fakeDevice{
		readFn: func(string) (float64, error) { reads++; return 42, nil },
	}
	a := NewApplier(dev, testConfig())

	result, err := a.applyOne(calib.Entry{Name: "A", Value: 100})
	if err != nil {
		t.Fatalf("applyOne: %v", err)
	}
	if result.Outcome != calib.UnverifiedAfterRetries {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, calib.UnverifiedAfterRetries)
	}
	if result.LastRead == nil || *result.LastRead != 42 {
		t.Errorf("LastRead = %v, want 42 for diagnostics", result.LastRead)
	}
	if reads != 4 {
		t.Errorf("got %d reads, want 4 (diagnostic + 3 verification attempts)", reads)
	}
}

func TestApplyOneDiagnosticReadFailureIsAdvisory(t *testing.T) {
	reads := 0
	dev := &fakeDevice{
		readFn: func(string) (float64, error) {
			reads++
			if reads == 1 {
				return 0, errors.New("not readable yet")
			}
			return 3.5, nil
		},
	}
	a := NewApplier(dev, testConfig())

	result, err := a.applyOne(calib.Entry{Name: "A", Value: 3.5})
	if err != nil {
		t.Fatalf("applyOne: %v", err)
	}
	if result.Outcome != calib.Verified {
		t.Errorf("Outcome = %s, want %s (diagnostic failure must not block)", result.Outcome, calib.Verified)
	}
	if result.Prior != nil {
		t.Errorf("Prior = %v, want nil when the diagnostic read failed", *result.Prior)
	}
}

func TestApplyAllProcessesEveryEntry(t *testing.T) {
	set := calib.Set{
		{Name: "Good_1", Value: 1},
		{Name: "Bad_Write", Value: 2},
		{Name: "Never_Settles", Value: 3},
		{Name: "Good_2", Value: 4},
	}
	dev := &fakeDevice{
		readFn: func(name string) (float64, error) {
			if name == "Never_Settles" {
				return -1, nil
			}
			switch name {
			case "Good_1":
				return 1, nil
			case "Good_2":
				return 4, nil
			}
			return 0, nil
		},
		writeFn: func(name string, _ float64) error {
			if name == "Bad_Write" {
				return errors.New("rejected")
			}
			return nil
		},
	}
	a := NewApplier(dev, testConfig())

	summary, err := a.ApplyAll(context.Background(), set)
	if err != nil {
		t.Fatalf("ApplyAll: %v", err)
	}

	if len(summary.Results) != len(set) {
		t.Fatalf("got %d results, want %d (one per entry, no short-circuit)", len(summary.Results), len(set))
	}
	if summary.Total != len(set) {
		t.Errorf("Total = %d, want %d", summary.Total, len(set))
	}
	if summary.Succeeded+summary.Failed != summary.Total {
		t.Errorf("Succeeded(%d) + Failed(%d) != Total(%d)", summary.Succeeded, summary.Failed, summary.Total)
	}
	if summary.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", summary.Succeeded)
	}

	wantOutcomes := []calib.Outcome{
		calib.Verified,
		calib.WriteFailed,
		calib.UnverifiedAfterRetries,
		calib.Verified,
	}
	for i, want := range wantOutcomes {
		if got := summary.Results[i].Outcome; got != want {
			t.Errorf("result %d (%s) = %s, want %s", i, set[i].Name, got, want)
		}
	}
}

func TestApplyAllStopsOnUnusableDevice(t *testing.T) {
	writes := 0
	dev := &fakeDevice{
		writeFn: func(string, float64) error {
			writes++
			if writes >= 2 {
				return pkgerrors.Wrap(device.ErrUnusable, "stream closed")
			}
			return nil
		},
		readFn: func(string) (float64, error) { return 1, nil },
	}
	a := NewApplier(dev, testConfig())

	set := calib.Set{
		{Name: "A", Value: 1},
		{Name: "B", Value: 2},
		{Name: "C", Value: 3},
	}
	summary, err := a.ApplyAll(context.Background(), set)
	if !errors.Is(err, device.ErrUnusable) {
		t.Fatalf("want ErrUnusable, got %v", err)
	}
	if len(summary.Results) != 1 {
		t.Errorf("got %d results before the failure, want 1", len(summary.Results))
	}
	if writes != 2 {
		t.Errorf("got %d writes, want 2 (no commands after the connection died)", writes)
	}
}

func TestApplyAllObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	applied := 0
	dev := &fakeDevice{
		readFn: func(string) (float64, error) { return 1, nil },
		writeFn: func(string, float64) error {
			applied++
			cancel() // interrupt arrives while the first parameter is in flight
			return nil
		},
	}
	a := NewApplier(dev, testConfig())

	set := calib.Set{
		{Name: "A", Value: 1},
		{Name: "B", Value: 1},
		{Name: "C", Value: 1},
	}
	summary, err := a.ApplyAll(ctx, set)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if applied != 1 {
		t.Errorf("got %d writes, want 1 (the current parameter finishes, the rest do not start)", applied)
	}
	if len(summary.Results) != 1 {
		t.Errorf("got %d results, want 1 (the in-flight parameter completes)", len(summary.Results))
	}
}
