package benford

import "math"

// degreesOfFreedom is the nine digit categories minus one.
const degreesOfFreedom = 8

// ChiSquared returns sum((O-E)^2 / E) of counts against the Benford expectation for total observations.
func ChiSquared(counts [Digits]int, total int) float64 {
	if total == 0 {
		return 0
	}
	stat := 0.0
	for i, observed := range counts {
		expected := float64(total) * ExpectedFrequency(i+1)
		diff := float64(observed) - expected
		stat += diff * diff / expected
	}
	return stat
}

// ChiSquaredSurvival returns P(X >= x) for X chi-squared distributed with an even number of
// degrees of freedom, using the closed form e^(-x/2) * sum_{k<df/2} (x/2)^k / k!.
func ChiSquaredSurvival(x float64, df int) float64 {
	if df <= 0 || df%2 != 0 {
		return math.NaN()
	}
	if x <= 0 {
		return 1
	}
	half := x / 2
	term := 1.0
	sum := 1.0
	for k := 1; k < df/2; k++ {
		term *= half / float64(k)
		sum += term
	}
	p := math.Exp(-half) * sum
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// PValue is the goodness-of-fit p-value for a statistic over the nine digit buckets.
func PValue(stat float64) float64 {
	return ChiSquaredSurvival(stat, degreesOfFreedom)
}
