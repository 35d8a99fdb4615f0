package config

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/calrun/calrun/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		VerifyTolerance:  ptr.To(0.01),
		VerifyAttempts:   ptr.To(3),
		SettleDelayMs:    ptr.To(300),
		RetryDelayMs:     ptr.To(500),
		StabilizeDelayMs: ptr.To(3000),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = defaultFileConfig
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

// RawFileConfig is the on-disk form. Delays are stored as milliseconds so
// hand-edited files stay plain numbers.
type RawFileConfig struct {
	VerifyTolerance  *float64 `json:"verifyTolerance,omitempty"`
	VerifyAttempts   *int     `json:"verifyAttempts,omitempty"`
	SettleDelayMs    *int     `json:"settleDelayMs,omitempty"`
	RetryDelayMs     *int     `json:"retryDelayMs,omitempty"`
	StabilizeDelayMs *int     `json:"stabilizeDelayMs,omitempty"`
}

func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	rawConfig := &RawFileConfig{
		VerifyTolerance:  ptr.To(c.VerifyTolerance()),
		VerifyAttempts:   ptr.To(c.VerifyAttempts()),
		SettleDelayMs:    ptr.To(int(c.SettleDelay() / time.Millisecond)),
		RetryDelayMs:     ptr.To(int(c.RetryDelay() / time.Millisecond)),
		StabilizeDelayMs: ptr.To(int(c.StabilizeDelay() / time.Millisecond)),
	}

	return rawConfig, nil
}

func (f *File) VerifyTolerance() float64 {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var tol float64

	if f.c.VerifyTolerance != nil {
		tol = *f.c.VerifyTolerance
	} else {
		tol = *defaultFileConfig.VerifyTolerance
	}

	return tol
}

func (f *File) VerifyAttempts() int {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var attempts int

	if f.c.VerifyAttempts != nil {
		attempts = *f.c.VerifyAttempts
	} else {
		attempts = *defaultFileConfig.VerifyAttempts
	}

	return attempts
}

func (f *File) SettleDelay() time.Duration {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var ms int

	if f.c.SettleDelayMs != nil {
		ms = *f.c.SettleDelayMs
	} else {
		ms = *defaultFileConfig.SettleDelayMs
	}

	return time.Duration(ms) * time.Millisecond
}

func (f *File) RetryDelay() time.Duration {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var ms int

	if f.c.RetryDelayMs != nil {
		ms = *f.c.RetryDelayMs
	} else {
		ms = *defaultFileConfig.RetryDelayMs
	}

	return time.Duration(ms) * time.Millisecond
}

func (f *File) StabilizeDelay() time.Duration {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var ms int

	if f.c.StabilizeDelayMs != nil {
		ms = *f.c.StabilizeDelayMs
	} else {
		ms = *defaultFileConfig.StabilizeDelayMs
	}

	return time.Duration(ms) * time.Millisecond
}

func (f *File) SetVerifyTolerance(tol float64) {
	if f.c == nil {
		panic("config is nil")
	}

	if tol <= 0 || math.IsNaN(tol) || math.IsInf(tol, 0) {
		panic("verify tolerance must be a positive finite number")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.VerifyTolerance = &tol
}

func (f *File) SetVerifyAttempts(n int) {
	if f.c == nil {
		panic("config is nil")
	}

	if n < 1 {
		panic("verify attempts must be at least 1")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.VerifyAttempts = &n
}

func (f *File) SetSettleDelay(d time.Duration) {
	if f.c == nil {
		panic("config is nil")
	}

	if d < 0 {
		panic("settle delay must not be negative")
	}

	ms := int(d / time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.SettleDelayMs = &ms
}

func (f *File) SetRetryDelay(d time.Duration) {
	if f.c == nil {
		panic("config is nil")
	}

	if d < 0 {
		panic("retry delay must not be negative")
	}

	ms := int(d / time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.RetryDelayMs = &ms
}

func (f *File) SetStabilizeDelay(d time.Duration) {
	if f.c == nil {
		panic("config is nil")
	}

	if d < 0 {
		panic("stabilize delay must not be negative")
	}

	ms := int(d / time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.StabilizeDelayMs = &ms
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}
	configString := string(b)

	if strings.TrimSpace(configString) == "" {
		// If the file is empty, return the empty config.
		// Do not make f.c a nil.
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"verifyTolerance": f.VerifyTolerance(),
		"verifyAttempts":  f.VerifyAttempts(),
		"settleDelay":     f.SettleDelay().String(),
		"retryDelay":      f.RetryDelay().String(),
		"stabilizeDelay":  f.StabilizeDelay().String(),
	}
}
