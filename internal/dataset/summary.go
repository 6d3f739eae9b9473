package dataset

import (
	"fmt"
	"strings"
)

// Summarize renders a compact description: shape, numeric columns and up to
// sample example values per column.
func Summarize(d *Dataset, sample int) string {
	if sample <= 0 {
		sample = 5
	}
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if d.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", d.Name)
	}
	fmt.Fprintf(&b, "Rows: %d, Columns: %d\n", d.Rows(), d.NumColumns())
	fmt.Fprintf(&b, "Numeric columns: [%s]\n\n", strings.Join(d.NumericColumns(), ", "))

	b.WriteString("[SCHEMA]\n")
	for _, c := range d.cols {
		missing := 0
		var examples []string
		for i := 0; i < c.Len(); i++ {
			if c.Missing(i) {
				missing++
				continue
			}
			if len(examples) < sample {
				examples = append(examples, safeVal(c.Label(i)))
			}
		}
		missPct := 0.0
		if c.Len() > 0 {
			missPct = float64(missing) * 100 / float64(c.Len())
		}
		fmt.Fprintf(&b, "- %s: %s (non-null %d, missing %.1f%%)", safeVal(c.Name), c.Kind, c.Len()-missing, missPct)
		if len(examples) > 0 {
			fmt.Fprintf(&b, " e.g., %s", strings.Join(examples, " | "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func safeVal(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
}
