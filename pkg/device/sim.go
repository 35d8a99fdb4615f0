package device

import (
	"math/rand"
	"sync"
	"time"
)

// Simulator is an in-memory Device for demo runs and tests. It models a
// working calibration page: writes land on the page and become visible to
// reads only after one of the sync procedures runs.
type Simulator struct {
	mu        sync.Mutex
	committed map[string]float64
	pending   map[string]float64
	channels  map[string]float64
	measuring bool
	rng       *rand.Rand
}

var _ Device = &Simulator{}

// NewSimulator returns an empty Simulator. Unknown measurement channels
// appear with a random baseline on first read; unknown calibration
// parameters exist once written.
func NewSimulator() *Simulator {
	return &Simulator{
		committed: map[string]float64{},
		pending:   map[string]float64{},
		channels:  map[string]float64{},
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetParam prefills a calibration parameter.
func (s *Simulator) SetParam(name string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed[name] = value
}

// SetChannel prefills the baseline of a measurement channel.
func (s *Simulator) SetChannel(name string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[name] = value
}

// Measuring reports whether measurement is currently running.
func (s *Simulator) Measuring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.measuring
}

// Identify returns a fixed identification string.
func (s *Simulator) Identify() (string, error) {
	return "CALRUN,SIM-1,0,1.0", nil
}

// ReadValue reads a calibration parameter from the committed page.
func (s *Simulator) ReadValue(name string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.committed[name]
	if !ok {
		return 0, &CommandError{Cmd: cmdReadValue + " " + name, Msg: "no such parameter"}
	}
	return v, nil
}

// WriteValue stages a calibration parameter on the working page.
func (s *Simulator) WriteValue(name string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[name] = value
	return nil
}

// ReadMeasurement returns the channel baseline with a little noise.
func (s *Simulator) ReadMeasurement(name string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.measuring {
		return 0, &CommandError{Cmd: cmdReadMeasurement + " " + name, Msg: "measurement not running"}
	}

	base, ok := s.channels[name]
	if !ok {
		base = 20 + s.rng.Float64()*60
		s.channels[name] = base
	}
	return base + (s.rng.Float64()-0.5), nil
}

// SyncOps returns the usual three procedures; each commits the working page.
func (s *Simulator) SyncOps() []SyncOp {
	return []SyncOp{
		{Name: "Synchronize", Run: s.commit},
		{Name: "DownloadWorkingPage", Run: s.commit},
		{Name: "SyncWorkingPage", Run: s.commit},
	}
}

func (s *Simulator) commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range s.pending {
		s.committed[k] = v
	}
	s.pending = map[string]float64{}
	return nil
}

// StartMeasurement starts measuring. Starting twice is an error, like on
// real hardware.
func (s *Simulator) StartMeasurement() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.measuring {
		return &CommandError{Cmd: cmdMeasStart, Msg: "measurement already running"}
	}
	s.measuring = true
	return nil
}

// StopMeasurement stops measuring.
func (s *Simulator) StopMeasurement() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.measuring {
		return &CommandError{Cmd: cmdMeasStop, Msg: "measurement not running"}
	}
	s.measuring = false
	return nil
}

// Close is a no-op.
func (s *Simulator) Close() error {
	return nil
}
