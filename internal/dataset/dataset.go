package dataset

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind is the storage type of a column after loading.
type Kind int

const (
	KindString Kind = iota
	KindNumeric
	KindDatetime
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindDatetime:
		return "datetime"
	default:
		return "string"
	}
}

// Column is a named, typed vector. Exactly one of the value slices is populated,
// according to Kind. Missing numeric values are NaN; other kinds track validity.
type Column struct {
	Name  string
	Kind  Kind
	num   []float64
	str   []string
	tm    []time.Time
	valid []bool
}

// NewNumericColumn builds a numeric column; NaN marks a missing value.
func NewNumericColumn(name string, vals []float64) *Column {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	return &Column{Name: name, Kind: KindNumeric, num: cp}
}

// NewStringColumn builds a string column; the empty string marks a missing value.
func NewStringColumn(name string, vals []string) *Column {
	c := &Column{Name: name, Kind: KindString, str: make([]string, len(vals)), valid: make([]bool, len(vals))}
	for i, v := range vals {
		c.str[i] = v
		c.valid[i] = v != ""
	}
	return c
}

// NewTimeColumn builds a datetime column; the zero time marks a missing value.
func NewTimeColumn(name string, vals []time.Time) *Column {
	c := &Column{Name: name, Kind: KindDatetime, tm: make([]time.Time, len(vals)), valid: make([]bool, len(vals))}
	for i, v := range vals {
		c.tm[i] = v
		c.valid[i] = !v.IsZero()
	}
	return c
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	switch c.Kind {
	case KindNumeric:
		return len(c.num)
	case KindDatetime:
		return len(c.tm)
	default:
		return len(c.str)
	}
}

// Missing reports whether row i holds no value.
func (c *Column) Missing(i int) bool {
	if c.Kind == KindNumeric {
		return math.IsNaN(c.num[i])
	}
	return !c.valid[i]
}

// Float returns the numeric value of row i. ok is false for missing values and non-numeric columns.
func (c *Column) Float(i int) (float64, bool) {
	if c.Kind != KindNumeric || math.IsNaN(c.num[i]) {
		return math.NaN(), false
	}
	return c.num[i], true
}

// Time returns the timestamp of row i. For string columns the value is parsed on the fly.
func (c *Column) Time(i int) (time.Time, bool) {
	switch c.Kind {
	case KindDatetime:
		return c.tm[i], c.valid[i]
	case KindString:
		if !c.valid[i] {
			return time.Time{}, false
		}
		return parseTime(c.str[i])
	default:
		return time.Time{}, false
	}
}

// Label formats row i for display and grouping. Missing values yield "".
func (c *Column) Label(i int) string {
	if c.Missing(i) {
		return ""
	}
	switch c.Kind {
	case KindNumeric:
		return strconv.FormatFloat(c.num[i], 'f', -1, 64)
	case KindDatetime:
		return formatTime(c.tm[i])
	default:
		return c.str[i]
	}
}

// Floats returns a copy of the numeric values, NaN for missing. Nil for other kinds.
func (c *Column) Floats() []float64 {
	if c.Kind != KindNumeric {
		return nil
	}
	cp := make([]float64, len(c.num))
	copy(cp, c.num)
	return cp
}

// Distinct counts distinct non-missing values.
func (c *Column) Distinct() int {
	seen := make(map[string]struct{})
	for i := 0; i < c.Len(); i++ {
		if c.Missing(i) {
			continue
		}
		seen[c.Label(i)] = struct{}{}
	}
	return len(seen)
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// Dataset is an immutable table of equally long columns.
type Dataset struct {
	Name  string
	cols  []*Column
	index map[string]int
	rows  int
}

// New assembles a dataset. Column names must be unique and lengths equal.
func New(name string, cols ...*Column) (*Dataset, error) {
	d := &Dataset{Name: name, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := d.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if i == 0 {
			d.rows = c.Len()
		} else if c.Len() != d.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name, c.Len(), d.rows)
		}
		d.index[c.Name] = i
		d.cols = append(d.cols, c)
	}
	return d, nil
}

// Rows returns the row count.
func (d *Dataset) Rows() int { return d.rows }

// NumColumns returns the column count.
func (d *Dataset) NumColumns() int { return len(d.cols) }

// Columns returns column names in dataset order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.cols))
	for i, c := range d.cols {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by exact name.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.cols[i], true
}

// ColumnAt returns the i-th column.
func (d *Dataset) ColumnAt(i int) *Column { return d.cols[i] }

// NumericColumns lists numeric column names in dataset order.
func (d *Dataset) NumericColumns() []string {
	var out []string
	for _, c := range d.cols {
		if c.Kind == KindNumeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// Fingerprint hashes names, kinds and values; equal datasets share a fingerprint.
func (d *Dataset) Fingerprint() string {
	h := sha256.New()
	var buf [8]byte
	for _, c := range d.cols {
		h.Write([]byte(c.Name))
		h.Write([]byte{0, byte(c.Kind)})
		for i := 0; i < c.Len(); i++ {
			switch c.Kind {
			case KindNumeric:
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(c.num[i]))
				h.Write(buf[:])
			default:
				if c.Missing(i) {
					h.Write([]byte{1})
					continue
				}
				h.Write([]byte(c.Label(i)))
				h.Write([]byte{0})
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
