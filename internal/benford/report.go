package benford

import (
	"fmt"
	"io"
)

// WriteReport writes the plain-text report:
//
//	Benford's Law Report for: <column>
//
//	Chi-squared statistic: <%.5f>
//	P-value: <%.5f>
//	Conclusion: <sentence>
func WriteReport(w io.Writer, r *Result) error {
	_, err := fmt.Fprintf(w,
		"Benford's Law Report for: %s\n\nChi-squared statistic: %.5f\nP-value: %.5f\nConclusion: %s\n",
		r.Column, r.ChiSquared, r.PValue, r.Conclusion,
	)
	return err
}
