package dataset

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Options controls how raw text cells become typed columns.
type Options struct {
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, chosen by file extension.
	Delimiter rune
	// Sheet selects an XLSX sheet by name; SheetIndex (1-based) is used when empty.
	Sheet      string
	SheetIndex int
	// Table names the relational table to read for SQL sources.
	Table string
	// Region overrides the AWS region for s3:// sources.
	Region string

	// excelSerial lets date-named columns accept spreadsheet serial numbers.
	excelSerial bool
}

// isDateName reports whether a column is a candidate for timestamp parsing.
func isDateName(name string) bool {
	return strings.Contains(strings.ToLower(name), "date")
}

// FromRecords builds a dataset from a header and text rows. Short rows are padded
// with missing values. Columns named like "date" become datetime when every present
// value parses; columns whose present values all parse as numbers become numeric.
func FromRecords(name string, header []string, rows [][]string, opt Options) (*Dataset, error) {
	names := uniqueNames(header)
	cols := make([]*Column, len(names))
	for j, n := range names {
		cells := make([]string, len(rows))
		for i, r := range rows {
			if j < len(r) {
				cells[i] = r[j]
			}
		}
		cols[j] = inferColumn(n, cells, opt)
	}
	ds, err := New(name, cols...)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	return ds, nil
}

func inferColumn(name string, cells []string, opt Options) *Column {
	present := 0
	numOK, timeOK := true, isDateName(name)
	nums := make([]float64, len(cells))
	var times []time.Time
	if timeOK {
		times = make([]time.Time, len(cells))
	}
	for i, raw := range cells {
		if isMissingToken(raw) {
			nums[i] = math.NaN()
			continue
		}
		present++
		f, isNum := parseNumeric(raw)
		if isNum {
			nums[i] = f
		} else {
			numOK = false
		}
		if timeOK {
			if t, ok := parseTime(raw); ok {
				times[i] = t
			} else if isNum && opt.excelSerial && f > 0 {
				times[i] = excelSerialTime(f)
			} else {
				timeOK = false
			}
		}
	}
	switch {
	case timeOK && present > 0:
		return NewTimeColumn(name, times)
	case numOK:
		return &Column{Name: name, Kind: KindNumeric, num: nums}
	}
	vals := make([]string, len(cells))
	for i, raw := range cells {
		if !isMissingToken(raw) {
			vals[i] = strings.TrimSpace(raw)
		}
	}
	return NewStringColumn(name, vals)
}

// uniqueNames trims headers and suffixes duplicates (".1", ".2") so lookups stay unambiguous.
func uniqueNames(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		n := strings.TrimSpace(h)
		if n == "" {
			n = fmt.Sprintf("Unnamed: %d", i)
		}
		if k, dup := seen[n]; dup {
			seen[n] = k + 1
			n = fmt.Sprintf("%s.%d", n, k+1)
		} else {
			seen[n] = 0
		}
		out[i] = n
	}
	return out
}
