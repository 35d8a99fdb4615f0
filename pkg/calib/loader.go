package calib

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// utf8BOM is the byte order mark spreadsheet tools prepend to CSV exports.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadFile reads a calibration sheet and returns the targets in row order.
// The first row is treated as a header. Column A holds parameter names,
// column B target values. Rows that cannot be parsed are skipped with a
// warning; a sheet with no usable rows is an error.
func LoadFile(path string) (Set, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return loadWorkbook(path)
	case ".csv":
		return loadCSV(path)
	default:
		return nil, fmt.Errorf("unsupported calibration file type %q, want .xlsx or .csv", ext)
	}
}

func loadWorkbook(path string) (Set, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open calibration workbook %s", path)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("calibration workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %s", sheets[0])
	}

	var (
		set   Set
		index = map[string]int{}
	)
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		e, ok := parseRow(path, i+1, cell(row, 0), cell(row, 1))
		if !ok {
			continue
		}
		set = appendEntry(set, index, e, path, i+1)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no valid calibration entries in %s", path)
	}
	return set, nil
}

func loadCSV(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open calibration file %s", path)
	}
	defer func() {
		_ = f.Close()
	}()

	br := bufio.NewReader(f)
	if lead, err := br.Peek(3); err == nil && bytes.Equal(lead, utf8BOM) {
		_, _ = br.Discard(3)
	}
	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var (
		set   Set
		index = map[string]int{}
	)
	for line := 1; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read calibration file %s", path)
		}
		if line == 1 {
			continue // header
		}
		e, ok := parseRow(path, line, cell(row, 0), cell(row, 1))
		if !ok {
			continue
		}
		set = appendEntry(set, index, e, path, line)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no valid calibration entries in %s", path)
	}
	return set, nil
}

// parseRow validates one sheet row. The bool result is false for rows to
// skip; every skip is logged so a silently shrinking set is visible.
func parseRow(file string, line int, name, raw string) (Entry, bool) {
	log := logrus.WithFields(logrus.Fields{
		"file": file,
		"row":  line,
	})

	name = strings.TrimSpace(name)
	if name == "" {
		log.Warn("skipping row with empty parameter name")
		return Entry{}, false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		log.Warnf("skipping %s: no target value", name)
		return Entry{}, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warnf("skipping %s: target %q is not a number", name, raw)
		return Entry{}, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		log.Warnf("skipping %s: target %q is not finite", name, raw)
		return Entry{}, false
	}
	return Entry{Name: name, Value: v}, true
}

// appendEntry adds e to the set. A repeated name keeps its original
// position but takes the newer value, matching how a later sheet row
// overrides an earlier one.
func appendEntry(set Set, index map[string]int, e Entry, file string, line int) Set {
	if i, ok := index[e.Name]; ok {
		logrus.WithFields(logrus.Fields{
			"file": file,
			"row":  line,
		}).Warnf("duplicate parameter %s, keeping the newer value", e.Name)
		set[i].Value = e.Value
		return set
	}
	index[e.Name] = len(set)
	return append(set, e)
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
