package benford

import (
	"math"
	"strconv"
)

// Digits are the nine leading-digit buckets.
const Digits = 9

// ExpectedFrequency returns the Benford probability log10(1 + 1/d) for d in 1..9.
func ExpectedFrequency(d int) float64 {
	if d < 1 || d > 9 {
		return 0
	}
	return math.Log10(1 + 1/float64(d))
}

// LeadingDigit returns the first significant digit of |v|. Zero and non-finite values have none.
func LeadingDigit(v float64) (int, bool) {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	// Shortest scientific form avoids log10 rounding at powers of ten.
	s := strconv.FormatFloat(math.Abs(v), 'e', -1, 64)
	d := int(s[0] - '0')
	if d < 1 || d > 9 {
		return 0, false
	}
	return d, true
}

// CountLeadingDigits buckets values by leading digit; index 0 holds digit 1.
func CountLeadingDigits(values []float64) ([Digits]int, int) {
	var counts [Digits]int
	total := 0
	for _, v := range values {
		if d, ok := LeadingDigit(v); ok {
			counts[d-1]++
			total++
		}
	}
	return counts, total
}
