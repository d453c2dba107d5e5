package classifier

import "math"

// LorentzianDistance sums ln(1+|a-b|) per dimension. The log growth damps
// outlier dimensions that would dominate a Euclidean metric.
func LorentzianDistance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionError{Got: len(a), Want: len(b)}
	}
	sum := 0.0
	for i := range a {
		sum += math.Log1p(math.Abs(a[i] - b[i]))
	}
	return sum, nil
}
