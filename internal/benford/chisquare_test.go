package benford

import (
	"math"
	"testing"
)

func TestExpectedFrequencySumsToOne(t *testing.T) {
	sum := 0.0
	for d := 1; d <= Digits; d++ {
		sum += ExpectedFrequency(d)
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("expected frequencies sum to %v", sum)
	}
	if math.Abs(ExpectedFrequency(1)-0.30103) > 1e-5 {
		t.Fatalf("unexpected P(1) %v", ExpectedFrequency(1))
	}
	if ExpectedFrequency(0) != 0 || ExpectedFrequency(10) != 0 {
		t.Fatalf("out of range digits must have zero probability")
	}
}

func TestLeadingDigit(t *testing.T) {
	cases := []struct {
		in   float64
		want int
		ok   bool
	}{
		{1000, 1, true},
		{999.99, 9, true},
		{0.00042, 4, true},
		{-73.2, 7, true},
		{1e-300, 1, true},
		{0, 0, false},
		{math.Inf(1), 0, false},
		{math.NaN(), 0, false},
	}
	for _, tc := range cases {
		got, ok := LeadingDigit(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("LeadingDigit(%v) = %d,%v want %d,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestChiSquaredSurvivalKnownValues(t *testing.T) {
	cases := []struct {
		x, want float64
	}{
		{0, 1},
		{15.507313, 0.05},
		{29.54, 0.000255},
	}
	for _, tc := range cases {
		got := ChiSquaredSurvival(tc.x, 8)
		if math.Abs(got-tc.want) > 1e-5 {
			t.Fatalf("survival(%v) = %v want %v", tc.x, got, tc.want)
		}
	}
	if !math.IsNaN(ChiSquaredSurvival(3, 7)) {
		t.Fatalf("odd degrees of freedom are unsupported")
	}
	if p := PValue(5000); p < 0 || p > 1e-100 {
		t.Fatalf("huge statistic should give vanishing p-value, got %v", p)
	}
}

func TestChiSquaredPerfectFitIsSmall(t *testing.T) {
	var counts [Digits]int
	total := 0
	for d := 1; d <= Digits; d++ {
		counts[d-1] = int(math.Round(ExpectedFrequency(d) * 100000))
		total += counts[d-1]
	}
	if stat := ChiSquared(counts, total); stat > 0.01 {
		t.Fatalf("near-perfect fit produced chi-squared %v", stat)
	}
	if stat := ChiSquared(counts, 0); stat != 0 {
		t.Fatalf("empty sample should produce zero, got %v", stat)
	}
}
