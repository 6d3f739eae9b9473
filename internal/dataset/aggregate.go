package dataset

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Freq is a resampling granularity.
type Freq string

const (
	Daily     Freq = "D"
	Weekly    Freq = "W"
	Monthly   Freq = "M"
	Quarterly Freq = "Q"
	Yearly    Freq = "Y"
)

// ParseFreq accepts D, W, M, Q, Y (and common aliases). ok is false for anything else.
func ParseFreq(s string) (Freq, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "D", "DAY", "DAILY":
		return Daily, true
	case "W", "WEEK", "WEEKLY", "W-SUN":
		return Weekly, true
	case "M", "ME", "MONTH", "MONTHLY":
		return Monthly, true
	case "Q", "QE", "QUARTER", "QUARTERLY":
		return Quarterly, true
	case "Y", "YE", "A", "YEAR", "YEARLY", "ANNUAL":
		return Yearly, true
	}
	return "", false
}

// PeriodEnd returns the label of the bucket holding t: the last day of its period
// (weeks end on Sunday).
func (f Freq) PeriodEnd(t time.Time) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch f {
	case Daily:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case Weekly:
		ahead := (7 - int(t.Weekday())) % 7
		return time.Date(y, m, d+ahead, 0, 0, 0, 0, loc)
	case Quarterly:
		qEnd := ((int(m)-1)/3 + 1) * 3
		return time.Date(y, time.Month(qEnd)+1, 0, 0, 0, 0, 0, loc)
	case Yearly:
		return time.Date(y, 12, 31, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m+1, 0, 0, 0, 0, 0, loc)
	}
}

func (f Freq) next(end time.Time) time.Time {
	y, m, d := end.Date()
	loc := end.Location()
	switch f {
	case Daily:
		return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	case Weekly:
		return time.Date(y, m, d+7, 0, 0, 0, 0, loc)
	case Quarterly:
		return time.Date(y, m+4, 0, 0, 0, 0, 0, loc)
	case Yearly:
		return time.Date(y+1, 12, 31, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m+2, 0, 0, 0, 0, 0, loc)
	}
}

// Bucket is one resampled period.
type Bucket struct {
	End   time.Time `json:"end"`
	Sum   float64   `json:"sum"`
	Count int       `json:"count"`
}

// Resample sums values into consecutive periods spanning the first to the last
// valid date. Rows with no date are dropped; missing values add nothing, so empty
// periods sum to 0. Timestamps are read through Column.Time, so string dates work.
func Resample(dates, values *Column, f Freq) []Bucket {
	if dates == nil || values == nil {
		return nil
	}
	sums := map[time.Time]*Bucket{}
	var first, last time.Time
	for i := 0; i < dates.Len() && i < values.Len(); i++ {
		t, ok := dates.Time(i)
		if !ok {
			continue
		}
		end := f.PeriodEnd(t.UTC())
		b, seen := sums[end]
		if !seen {
			b = &Bucket{End: end}
			sums[end] = b
		}
		if v, ok := values.Float(i); ok {
			b.Sum += v
			b.Count++
		}
		if first.IsZero() || end.Before(first) {
			first = end
		}
		if last.IsZero() || end.After(last) {
			last = end
		}
	}
	if len(sums) == 0 {
		return nil
	}
	var out []Bucket
	for end := first; !end.After(last); end = f.next(end) {
		if b, ok := sums[end]; ok {
			out = append(out, *b)
		} else {
			out = append(out, Bucket{End: end})
		}
	}
	return out
}

// Group is an aggregate for one distinct key.
type Group struct {
	Key   string  `json:"key"`
	Sum   float64 `json:"sum"`
	Count int     `json:"count"`
}

// GroupSum sums values per distinct non-missing key of keys, in ascending key order
// (numeric and datetime keys sort by value). With abs set, magnitudes are summed.
// A nil values column counts rows instead.
func GroupSum(keys, values *Column, abs bool) []Group {
	if keys == nil {
		return nil
	}
	idx := map[string]int{}
	var out []Group
	var order []float64
	for i := 0; i < keys.Len(); i++ {
		if keys.Missing(i) {
			continue
		}
		k := keys.Label(i)
		j, ok := idx[k]
		if !ok {
			j = len(out)
			idx[k] = j
			out = append(out, Group{Key: k})
			order = append(order, sortValue(keys, i))
		}
		if values == nil {
			out[j].Sum++
			out[j].Count++
			continue
		}
		v, ok := values.Float(i)
		if !ok {
			continue
		}
		if abs {
			v = math.Abs(v)
		}
		out[j].Sum += v
		out[j].Count++
	}
	perm := make([]int, len(out))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		if keys.Kind == KindString {
			return out[perm[a]].Key < out[perm[b]].Key
		}
		return order[perm[a]] < order[perm[b]]
	})
	sorted := make([]Group, len(out))
	for i, p := range perm {
		sorted[i] = out[p]
	}
	return sorted
}

func sortValue(c *Column, i int) float64 {
	switch c.Kind {
	case KindNumeric:
		return c.num[i]
	case KindDatetime:
		return float64(c.tm[i].UnixNano())
	}
	return 0
}
