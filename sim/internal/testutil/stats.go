package testutil

import (
	"math"
	"testing"
)

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// ChiSquare returns Pearson's statistic for observed counts against a
// uniform expectation over len(counts) categories.
func ChiSquare(counts map[int]int, categories, trials int) float64 {
	expected := float64(trials) / float64(categories)
	stat := 0.0
	for i := 0; i < categories; i++ {
		d := float64(counts[i]) - expected
		stat += d * d / expected
	}
	return stat
}

// ChiSquareCritical999 approximates the 99.9th percentile of the chi-square
// distribution with df degrees of freedom (Wilson-Hilferty).
func ChiSquareCritical999(df int) float64 {
	const z = 3.0902
	k := float64(df)
	h := 2.0 / (9.0 * k)
	return k * math.Pow(1-h+z*math.Sqrt(h), 3)
}
