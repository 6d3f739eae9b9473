package insight

import (
	"math"
)

// Anomaly is a flagged row of the target column.
type Anomaly struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
	Z     float64 `json:"z"`
}

// Scale factors that make MAD and mean absolute deviation comparable to a
// standard deviation under normality.
const (
	madScale    = 0.6745
	meanADScale = 1.253314
)

// DetectAnomalies flags values whose |z| >= thresh. Missing values are skipped
// but keep their row index. A zero or undefined spread yields nothing.
//
// MethodZScore uses the mean and sample standard deviation. MethodRobust uses
// the modified z-score around the median, falling back to the mean absolute
// deviation when the MAD is zero.
func DetectAnomalies(vals []float64, thresh float64, method string) []Anomaly {
	clean := present(vals)
	if len(clean) == 0 {
		return nil
	}
	var score func(float64) float64
	switch method {
	case MethodRobust:
		med, mad := medianMAD(clean)
		switch {
		case mad > 0:
			score = func(x float64) float64 { return madScale * (x - med) / mad }
		default:
			var sum float64
			for _, v := range clean {
				sum += math.Abs(v - med)
			}
			meanAD := sum / float64(len(clean))
			if meanAD == 0 {
				return nil
			}
			score = func(x float64) float64 { return (x - med) / (meanADScale * meanAD) }
		}
	default:
		mu, sd := mean(clean), sampleStd(clean)
		if sd == 0 || math.IsNaN(sd) {
			return nil
		}
		score = func(x float64) float64 { return (x - mu) / sd }
	}

	var out []Anomaly
	for i, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if z := score(v); math.Abs(z) >= thresh {
			out = append(out, Anomaly{Index: i, Value: v, Z: z})
		}
	}
	return out
}
