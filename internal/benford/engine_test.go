package benford

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logUniformCSV(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("amount\n")
	for i := 0; i < 900; i++ {
		fmt.Fprintf(&b, "%g\n", math.Pow(10, 3*float64(i)/900))
	}
	return writeCSV(t, "benford.csv", b.String())
}

func TestAnalyzerConformingData(t *testing.T) {
	path := logUniformCSV(t)
	dir := t.TempDir()
	plot := filepath.Join(dir, "plot.png")
	report := filepath.Join(dir, "report.txt")

	a := NewAnalyzer(nil)
	res, err := a.Run(path, "amount", plot, report)
	require.NoError(t, err)
	assert.Equal(t, StateAnalyzed, a.State())
	assert.Equal(t, 900, res.Count)
	assert.Greater(t, res.PValue, 0.99)
	assert.Less(t, res.ChiSquared, 1.0)
	assert.True(t, res.Conforms())
	assert.Equal(t, ConclusionConforms, res.Conclusion)
	require.Len(t, res.Digits, Digits)
	assert.Equal(t, 1, res.Digits[0].Digit)

	png, err := os.ReadFile(plot)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")), "plot should be a PNG")

	text, err := os.ReadFile(report)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(text), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Benford's Law Report for: amount", lines[0])
	assert.Equal(t, "", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "Chi-squared statistic: "))
	assert.Equal(t, "P-value: 0.99999", lines[3])
	assert.Equal(t, "Conclusion: No anomaly detected", lines[4])
}

func TestAnalyzerConstantDataIsAnomalous(t *testing.T) {
	path := writeCSV(t, "flat.csv", "v\n"+strings.Repeat("500\n", 100))

	a := NewAnalyzer(nil)
	require.NoError(t, a.Load(path, "v"))
	res, err := a.Analyze()
	require.NoError(t, err)
	assert.InDelta(t, 1162.9, res.ChiSquared, 0.1)
	assert.Less(t, res.PValue, 1e-100)
	assert.False(t, res.Conforms())
	assert.Equal(t, ConclusionAnomaly, res.Conclusion)
	assert.Equal(t, 100, res.Digits[4].Count)
	assert.InDelta(t, 1.0, res.Digits[4].Observed, 1e-12)
}

func TestAnalyzerSampleColumn(t *testing.T) {
	values := []string{"100", "150", "120", "180", "110", "130", "1100", "190", "210", "170",
		"14000", "160", "1300", "125", "240", "310", "115", "145", "175", "105"}
	path := writeCSV(t, "sample.csv", "amount\n"+strings.Join(values, "\n")+"\n")

	var report bytes.Buffer
	a := NewAnalyzer(nil)
	require.NoError(t, a.Load(path, "amount"))
	res, err := a.Analyze()
	require.NoError(t, err)
	require.NoError(t, WriteReport(&report, res))

	assert.InDelta(t, 29.54, res.ChiSquared, 0.01)
	assert.InDelta(t, 0.000255, res.PValue, 0.00001)
	assert.Contains(t, report.String(), "Conclusion: Anomaly detected\n")
}

func TestAnalyzerFailures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		a := NewAnalyzer(nil)
		err := a.Load(filepath.Join(t.TempDir(), "nope.csv"), "v")
		assert.ErrorIs(t, err, ErrFileNotFound)
		assert.Equal(t, StateFailed, a.State())
	})

	t.Run("missing column", func(t *testing.T) {
		path := writeCSV(t, "c.csv", "amount,name\n1,a\n")
		err := NewAnalyzer(nil).Load(path, "price")
		var notFound *ColumnNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, []string{"amount"}, notFound.Available)
	})

	t.Run("only zeros", func(t *testing.T) {
		path := writeCSV(t, "z.csv", "v\n0\n0\n0.0\n")
		a := NewAnalyzer(nil)
		require.NoError(t, a.Load(path, "v"))
		_, err := a.Analyze()
		assert.ErrorIs(t, err, ErrNoNumericData)
		assert.Equal(t, StateFailed, a.State())
	})

	t.Run("out of order", func(t *testing.T) {
		a := NewAnalyzer(nil)
		_, err := a.Analyze()
		assert.ErrorIs(t, err, ErrInvalidState)
		err = a.Render("", "")
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("render into missing directory", func(t *testing.T) {
		path := writeCSV(t, "ok.csv", "v\n1\n2\n3\n")
		missing := filepath.Join(t.TempDir(), "absent")
		report := filepath.Join(t.TempDir(), "report.txt")
		a := NewAnalyzer(nil)
		res, err := a.Run(path, "v", filepath.Join(missing, "plot.png"), report)
		require.Error(t, err)
		require.NotNil(t, res, "the computed result survives a render failure")
		assert.ErrorIs(t, err, ErrPlotFailed)
		assert.False(t, errors.Is(err, ErrReportFailed))
		assert.Equal(t, StateFailed, a.State())
		_, statErr := os.Stat(report)
		assert.NoError(t, statErr, "report is written even when the plot fails")
		assert.False(t, errors.Is(err, ErrInvalidState))
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "loaded", StateLoaded.String())
	assert.Equal(t, "state(9)", State(9).String())
}
