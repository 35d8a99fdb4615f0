package calib

import (
	"fmt"
	"math"
	"strings"
)

// Entry is a single calibration target: write Value to the parameter
// named Name, then verify it stuck.
type Entry struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Set is an ordered collection of calibration targets. Order is the
// apply order.
type Set []Entry

// Validate checks that every entry has a usable name and a finite value
// and that no name appears twice.
func (s Set) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for i, e := range s {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return fmt.Errorf("entry %d: empty parameter name", i)
		}
		if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
			return fmt.Errorf("entry %d (%s): value must be finite", i, name)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("entry %d: duplicate parameter %s", i, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Names returns the parameter names in apply order.
func (s Set) Names() []string {
	names := make([]string, len(s))
	for i, e := range s {
		names[i] = e.Name
	}
	return names
}

// Outcome defines per-parameter verdicts of the write-verify procedure.
type Outcome string

const (
	// Verified means the write landed and a readback matched the target
	// within tolerance.
	Verified Outcome = "Verified"
	// WriteFailed means the write itself was rejected or lost; no
	// verification reads were attempted.
	WriteFailed Outcome = "WriteFailed"
	// UnverifiedAfterRetries means the write went through but no readback
	// matched the target within the allowed attempts. The value may still
	// have been applied on the device.
	UnverifiedAfterRetries Outcome = "UnverifiedAfterRetries"
)

// Result is the verdict for one parameter.
type Result struct {
	Name    string  `json:"name"`
	Target  float64 `json:"target"`
	Outcome Outcome `json:"outcome"`
	// Prior is the value read before writing, nil if the diagnostic read
	// failed.
	Prior *float64 `json:"prior,omitempty"`
	// LastRead is the most recent successful readback during verification,
	// nil if every readback failed.
	LastRead *float64 `json:"lastRead,omitempty"`
	// Err carries the underlying failure for WriteFailed outcomes.
	Err error `json:"-"`
}

// Summary aggregates the results of applying a Set.
type Summary struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Total     int      `json:"total"`
	Results   []Result `json:"results"`
}

// AllVerified reports whether every parameter in the set verified.
func (s Summary) AllVerified() bool {
	return s.Failed == 0 && s.Succeeded == s.Total
}
