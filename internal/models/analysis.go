package models

import (
	"github.com/miradorstack/benford-lab/internal/benford"
	"github.com/miradorstack/benford-lab/internal/interpret"
)

// AnalysisRequest describes one Benford run over a stored CSV file.
type AnalysisRequest struct {
	Path        string
	Column      string
	Label       string
	Expectation string
}

// AnalysisResponse is returned by every analysis entry point.
type AnalysisResponse struct {
	Column         string                   `json:"column"`
	Label          string                   `json:"label,omitempty"`
	Count          int                      `json:"count"`
	ChiSquared     float64                  `json:"chi_squared"`
	PValue         float64                  `json:"p_value"`
	Conforms       bool                     `json:"conforms"`
	Conclusion     string                   `json:"conclusion"`
	Digits         []benford.DigitFrequency `json:"digits"`
	PlotName       string                   `json:"plot"`
	ReportName     string                   `json:"report"`
	PlotURL        string                   `json:"plot_url"`
	ReportURL      string                   `json:"report_url"`
	Interpretation interpret.Interpretation `json:"interpretation"`
}

// PreviewResponse summarises a stored file so a column can be chosen for analysis.
type PreviewResponse struct {
	Filename       string     `json:"filename"`
	Columns        []string   `json:"columns"`
	NumericColumns []string   `json:"numeric_columns"`
	RowCount       int        `json:"row_count"`
	Rows           [][]string `json:"rows"`
}

// ResultsResponse points at the generated artefacts of a finished analysis.
type ResultsResponse struct {
	PlotURL   string `json:"plot_url"`
	ReportURL string `json:"report_url"`
}
