// Package benford tests whether a numeric column follows Benford's first-digit law.
package benford

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Significance is the fixed p-value threshold separating conformity from anomaly.
const Significance = 0.05

// Conclusions written to reports.
const (
	ConclusionConforms = "No anomaly detected"
	ConclusionAnomaly  = "Anomaly detected"
)

// State tracks analyzer progress.
type State int

const (
	StateCreated State = iota
	StateLoaded
	StateAnalyzed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLoaded:
		return "loaded"
	case StateAnalyzed:
		return "analyzed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DigitFrequency is one row of the observed versus expected comparison.
type DigitFrequency struct {
	Digit    int     `json:"digit"`
	Count    int     `json:"count"`
	Observed float64 `json:"observed"`
	Expected float64 `json:"expected"`
}

// Result is the outcome of one analysis run.
type Result struct {
	Column     string           `json:"column"`
	Count      int              `json:"count"`
	ChiSquared float64          `json:"chi_squared"`
	PValue     float64          `json:"p_value"`
	Conclusion string           `json:"conclusion"`
	Digits     []DigitFrequency `json:"digits"`
}

// Conforms reports whether the p-value is above the significance threshold.
func (r *Result) Conforms() bool {
	return r.PValue > Significance
}

// Analyzer runs load, analyze and render for one column of one file.
type Analyzer struct {
	logger *slog.Logger
	state  State
	column string
	values []float64
	result *Result
}

// NewAnalyzer returns an analyzer in the created state.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger}
}

// State returns the current state.
func (a *Analyzer) State() State {
	return a.state
}

// Result returns the analysis result once available.
func (a *Analyzer) Result() *Result {
	return a.result
}

// Load reads column from the CSV at path, keeping only numeric cells.
func (a *Analyzer) Load(path, column string) error {
	if a.state != StateCreated {
		return a.fail(fmt.Errorf("%w: load from %s", ErrInvalidState, a.state))
	}
	values, err := loadColumn(path, column)
	if err != nil {
		return a.fail(err)
	}
	a.column = column
	a.values = values
	a.state = StateLoaded
	a.logger.Debug("column loaded", slog.String("column", column), slog.Int("values", len(values)))
	return nil
}

// Analyze computes digit frequencies, the chi-squared statistic and its p-value.
// Zero values carry no leading digit and are discarded.
func (a *Analyzer) Analyze() (*Result, error) {
	if a.state != StateLoaded {
		return nil, a.fail(fmt.Errorf("%w: analyze from %s", ErrInvalidState, a.state))
	}

	counts, total := CountLeadingDigits(a.values)
	if total == 0 {
		return nil, a.fail(fmt.Errorf("%w: %q has only zero values", ErrNoNumericData, a.column))
	}

	stat := ChiSquared(counts, total)
	res := &Result{
		Column:     a.column,
		Count:      total,
		ChiSquared: stat,
		PValue:     PValue(stat),
		Digits:     make([]DigitFrequency, Digits),
	}
	for i, c := range counts {
		res.Digits[i] = DigitFrequency{
			Digit:    i + 1,
			Count:    c,
			Observed: float64(c) / float64(total),
			Expected: ExpectedFrequency(i + 1),
		}
	}
	res.Conclusion = ConclusionAnomaly
	if res.Conforms() {
		res.Conclusion = ConclusionConforms
	}

	a.values = nil
	a.result = res
	a.state = StateAnalyzed
	return res, nil
}

// Render writes the plot and the report. Empty paths are skipped. The two writes are
// independent: both are attempted and their errors joined.
func (a *Analyzer) Render(plotPath, reportPath string) error {
	if a.state != StateAnalyzed {
		return a.fail(fmt.Errorf("%w: render from %s", ErrInvalidState, a.state))
	}

	var errs []error
	if plotPath != "" {
		if err := writeFile(plotPath, func(w io.Writer) error { return WritePlot(w, a.result) }); err != nil {
			a.logger.Error("plot rendering failed", slog.String("path", plotPath), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%w: %w", ErrPlotFailed, err))
		}
	}
	if reportPath != "" {
		if err := writeFile(reportPath, func(w io.Writer) error { return WriteReport(w, a.result) }); err != nil {
			a.logger.Error("report writing failed", slog.String("path", reportPath), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%w: %w", ErrReportFailed, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.state = StateFailed
		return err
	}
	return nil
}

// Run loads, analyzes and renders in one call. A render failure still returns the
// computed result alongside the error.
func (a *Analyzer) Run(path, column, plotPath, reportPath string) (*Result, error) {
	if err := a.Load(path, column); err != nil {
		return nil, err
	}
	res, err := a.Analyze()
	if err != nil {
		return nil, err
	}
	if err := a.Render(plotPath, reportPath); err != nil {
		return res, err
	}
	return res, nil
}

func (a *Analyzer) fail(err error) error {
	a.state = StateFailed
	return err
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	buf := bufio.NewWriter(f)
	err = write(buf)
	if err == nil {
		err = buf.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
	}
	return err
}
