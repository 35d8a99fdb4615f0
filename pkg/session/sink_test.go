package session

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCSVSinkFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.csv")

	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	if got := sink.Path(); got != path {
		t.Errorf("Path() = %q, want %q", got, path)
	}
	if err := sink.WriteHeader([]string{"Input_1", "온도_센서"}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	ts := time.Date(2025, 3, 14, 9, 26, 53, 589*int(time.Millisecond), time.UTC)
	err = sink.WriteSample(Sample{
		Tick:      1,
		Elapsed:   0.2,
		Timestamp: ts,
		Values: []Reading{
			{Value: 72.456, OK: true},
			{}, // not available
		},
	})
	if err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if !bytes.HasPrefix(b, utf8BOM) {
		t.Error("output must start with a UTF-8 BOM for spreadsheet tools")
	}

	lines := strings.Split(strings.TrimRight(string(bytes.TrimPrefix(b, utf8BOM)), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + 1 row:\n%s", len(lines), string(b))
	}
	if want := "elapsed_seconds,timestamp,Input_1,온도_센서"; lines[0] != want {
		t.Errorf("header = %q, want %q", lines[0], want)
	}
	if want := "0.2,2025-03-14 09:26:53.589,72.46,N/A"; lines[1] != want {
		t.Errorf("row = %q, want %q", lines[1], want)
	}
}

func TestCSVSinkRowsSurviveWithoutClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.csv")

	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	if err := sink.WriteHeader([]string{"A"}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := sink.WriteSample(Sample{Tick: 1, Elapsed: 1, Timestamp: time.Now(), Values: []Reading{{Value: 1, OK: true}}}); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}

	// Rows are flushed as they are written, so even a killed run keeps
	// everything recorded so far.
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got := bytes.Count(b, []byte("\n")); got != 2 {
		t.Errorf("got %d lines before Close, want 2", got)
	}

	_ = sink.Close()
}

func TestCSVSinkUncreatablePath(t *testing.T) {
	if _, err := NewCSVSink(filepath.Join(t.TempDir(), "missing", "result.csv")); err == nil {
		t.Fatal("want an error when the file cannot be created")
	}
}

func TestReadingString(t *testing.T) {
	tests := []struct {
		name string
		r    Reading
		want string
	}{
		{name: "ok value", r: Reading{Value: 3.14159, OK: true}, want: "3.14"},
		{name: "two decimals always", r: Reading{Value: 5, OK: true}, want: "5.00"},
		{name: "negative", r: Reading{Value: -0.5, OK: true}, want: "-0.50"},
		{name: "not available", r: Reading{}, want: NotAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
