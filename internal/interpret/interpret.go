// Package interpret turns Benford test statistics into plain-language guidance.
package interpret

import (
	"fmt"
	"strings"
)

// Expectation hints how a dataset is expected to behave.
const (
	ExpectConform    = "conform"
	ExpectNonconform = "nonconform"
)

const significance = 0.05

// Interpretation is the user-facing verdict for one analysis.
type Interpretation struct {
	Headline string `json:"headline"`
	Detail   string `json:"detail"`
	Guidance string `json:"guidance"`
}

// Interpret describes p and chi for label. Either statistic being nil yields a fixed
// "could not interpret" verdict.
func Interpret(p, chi *float64, label, expectation string) Interpretation {
	if label == "" {
		label = "this dataset"
	}
	if p == nil || chi == nil {
		return Interpretation{
			Headline: "Could not interpret results for " + label,
			Detail:   "The analysis did not return a p-value or chi-squared statistic.",
			Guidance: "Re-run the analysis or verify the dataset contains numeric data.",
		}
	}

	conforms := *p > significance
	outcome := "likely does not follow Benford's Law"
	guidance := "Significant deviation detected. Investigate the data generation process or potential anomalies."
	if conforms {
		outcome = "likely follows Benford's Law"
		guidance = "No red flags detected. The first-digit distribution is close to the Benford curve."
	}

	var alignment string
	switch {
	case expectation == "":
	case expectation == ExpectConform && conforms:
		alignment = "This matches the expected behavior for this dataset."
	case expectation == ExpectNonconform && !conforms:
		alignment = "This deviation is expected for this dataset."
	default:
		alignment = "This result differs from the typical expectation; worth a closer look."
	}

	return Interpretation{
		Headline: label + " " + outcome,
		Detail:   strings.TrimSpace(fmt.Sprintf("p-value: %.4f, chi-squared: %.4f. %s", *p, *chi, alignment)),
		Guidance: guidance,
	}
}

// Float is a convenience for building optional statistics.
func Float(v float64) *float64 {
	return &v
}
