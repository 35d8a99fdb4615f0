package session

import (
	"encoding/csv"
	"os"
	"strconv"

	pkgerrors "github.com/pkg/errors"
)

// timestampLayout renders row timestamps with millisecond precision.
const timestampLayout = "2006-01-02 15:04:05.000"

// utf8BOM marks the output encoding for spreadsheet tools.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Sink receives sampling rows as they are produced. A Sink failure is
// fatal to the loop that feeds it.
type Sink interface {
	WriteHeader(channels []string) error
	WriteSample(s Sample) error
	Close() error
}

// CSVSink streams samples to a CSV file, flushing after every row so an
// interrupted run keeps everything written so far.
type CSVSink struct {
	path string
	f    *os.File
	w    *csv.Writer
}

var _ Sink = &CSVSink{}

// NewCSVSink creates (or truncates) path and writes the UTF-8 BOM.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to create output file %s", path)
	}
	if _, err := f.Write(utf8BOM); err != nil {
		_ = f.Close()
		return nil, pkgerrors.Wrapf(err, "failed to write to %s", path)
	}

	return &CSVSink{
		path: path,
		f:    f,
		w:    csv.NewWriter(f),
	}, nil
}

// Path returns the file being written.
func (s *CSVSink) Path() string {
	return s.path
}

// WriteHeader writes the column row: elapsed_seconds, timestamp, then one
// column per channel.
func (s *CSVSink) WriteHeader(channels []string) error {
	record := append([]string{"elapsed_seconds", "timestamp"}, channels...)
	return s.writeRecord(record)
}

// WriteSample writes one row. Elapsed renders with one decimal, readings
// with two (or the NotAvailable sentinel).
func (s *CSVSink) WriteSample(sample Sample) error {
	record := make([]string, 0, len(sample.Values)+2)
	record = append(record,
		strconv.FormatFloat(sample.Elapsed, 'f', 1, 64),
		sample.Timestamp.Format(timestampLayout),
	)
	for _, r := range sample.Values {
		record = append(record, r.String())
	}
	return s.writeRecord(record)
}

func (s *CSVSink) writeRecord(record []string) error {
	if err := s.w.Write(record); err != nil {
		return pkgerrors.Wrapf(err, "failed to write to %s", s.path)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return pkgerrors.Wrapf(err, "failed to flush %s", s.path)
	}
	return nil
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	s.w.Flush()
	flushErr := s.w.Error()
	if err := s.f.Close(); err != nil {
		return pkgerrors.Wrapf(err, "failed to close %s", s.path)
	}
	if flushErr != nil {
		return pkgerrors.Wrapf(flushErr, "failed to flush %s", s.path)
	}
	return nil
}
