package calib

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFileCSV(t *testing.T) {
	content := "\xEF\xBB\xBF" + // BOM, as spreadsheet exports produce
		"name,value\n" +
		"Engine_Spd_Max,6500\n" +
		",12.5\n" + // no name
		"Boost_Lim\n" + // no value
		"Fuel_Trim,abc\n" + // not a number
		"온도_보정,1.5\n" +
		"Engine_Spd_Max,7000\n" // overrides the earlier row

	set, err := LoadFile(writeTemp(t, "calib.csv", content))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	want := Set{
		{Name: "Engine_Spd_Max", Value: 7000},
		{Name: "온도_보정", Value: 1.5},
	}
	if len(set) != len(want) {
		t.Fatalf("got %d entries, want %d: %v", len(set), len(want), set)
	}
	for i := range want {
		if set[i] != want[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, set[i], want[i])
		}
	}
}

func TestLoadFileCSVNoValidRows(t *testing.T) {
	content := "name,value\n,1\nfoo,bar\n"
	_, err := LoadFile(writeTemp(t, "calib.csv", content))
	if err == nil {
		t.Fatal("expected an error for a sheet with no usable rows")
	}
	if !strings.Contains(err.Error(), "no valid calibration entries") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadFileWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calib.xlsx")

	f := excelize.NewFile()
	cells := map[string]interface{}{
		"A1": "name", "B1": "value",
		"A2": "Idle_Target", "B2": 850,
		"A3": "", "B3": 99, // skipped
		"A4": "Lambda_Ref", "B4": 1.02,
	}
	for axis, v := range cells {
		if err := f.SetCellValue("Sheet1", axis, v); err != nil {
			t.Fatalf("SetCellValue %s: %v", axis, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	_ = f.Close()

	set, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	want := Set{
		{Name: "Idle_Target", Value: 850},
		{Name: "Lambda_Ref", Value: 1.02},
	}
	if len(set) != len(want) {
		t.Fatalf("got %d entries, want %d: %v", len(set), len(want), set)
	}
	for i := range want {
		if set[i] != want[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, set[i], want[i])
		}
	}
}

func TestLoadFileUnsupportedType(t *testing.T) {
	if _, err := LoadFile(writeTemp(t, "calib.txt", "a,1\n")); err == nil {
		t.Fatal("expected an error for an unsupported file type")
	}
}

func TestSetValidate(t *testing.T) {
	tests := []struct {
		name    string
		set     Set
		wantErr bool
	}{
		{
			name: "valid",
			set:  Set{{Name: "A", Value: 1}, {Name: "B", Value: -2.5}},
		},
		{
			name:    "empty name",
			set:     Set{{Name: "  ", Value: 1}},
			wantErr: true,
		},
		{
			name:    "nan value",
			set:     Set{{Name: "A", Value: math.NaN()}},
			wantErr: true,
		},
		{
			name:    "infinite value",
			set:     Set{{Name: "A", Value: math.Inf(1)}},
			wantErr: true,
		},
		{
			name:    "duplicate names",
			set:     Set{{Name: "A", Value: 1}, {Name: "A", Value: 2}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetNames(t *testing.T) {
	set := Set{{Name: "A"}, {Name: "B"}, {Name: "C"}}
	got := set.Names()
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("name %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSummaryAllVerified(t *testing.T) {
	tests := []struct {
		name    string
		summary Summary
		want    bool
	}{
		{
			name:    "all verified",
			summary: Summary{Succeeded: 3, Total: 3},
			want:    true,
		},
		{
			name:    "one failed",
			summary: Summary{Succeeded: 2, Failed: 1, Total: 3},
			want:    false,
		},
		{
			name:    "interrupted before finishing",
			summary: Summary{Succeeded: 1, Total: 3},
			want:    false,
		},
		{
			name:    "empty set",
			summary: Summary{},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.summary.AllVerified(); got != tt.want {
				t.Errorf("AllVerified() = %v, want %v", got, tt.want)
			}
		})
	}
}
