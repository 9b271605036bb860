package benford

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
)

// PreviewRows is the number of leading rows returned by Inspect.
const PreviewRows = 10

// Summary describes the shape of a CSV file.
type Summary struct {
	Columns        []string   `json:"columns"`
	NumericColumns []string   `json:"numeric_columns"`
	RowCount       int        `json:"row_count"`
	Preview        [][]string `json:"rows"`
}

type columnProfile struct {
	numeric int
	other   int
}

// numeric mirrors dataframe dtype inference: every non-empty cell parses and at least one exists.
func (p columnProfile) isNumeric() bool {
	return p.numeric > 0 && p.other == 0
}

type scanOptions struct {
	column      string
	previewRows int
	maxRows     int
}

type scanResult struct {
	header   []string
	profiles []columnProfile
	rows     int
	preview  [][]string
	column   int
	values   []float64
}

func (r *scanResult) numericColumns() []string {
	cols := make([]string, 0, len(r.header))
	for i, name := range r.header {
		if r.profiles[i].isNumeric() {
			cols = append(cols, name)
		}
	}
	return cols
}

// Inspect reads path and summarises its columns. Files with more than maxRows data rows
// fail with ErrTooManyRows; maxRows <= 0 disables the cap.
func Inspect(path string, maxRows int) (*Summary, error) {
	res, err := scanCSV(path, scanOptions{previewRows: PreviewRows, maxRows: maxRows})
	if err != nil {
		return nil, err
	}
	return &Summary{
		Columns:        res.header,
		NumericColumns: res.numericColumns(),
		RowCount:       res.rows,
		Preview:        res.preview,
	}, nil
}

// loadColumn returns the numeric values of column, dropping empty and unparsable cells.
func loadColumn(path, column string) ([]float64, error) {
	res, err := scanCSV(path, scanOptions{column: column})
	if err != nil {
		return nil, err
	}
	if res.column < 0 {
		return nil, &ColumnNotFoundError{Column: column, Available: res.numericColumns()}
	}
	if len(res.values) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoNumericData, column)
	}
	return res.values, nil
}

func scanCSV(path string, opts scanOptions) (*scanResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	res := &scanResult{column: -1}
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv header: %w", err)
	}
	res.header = dedupeHeader(header)
	res.profiles = make([]columnProfile, len(res.header))
	for i, name := range res.header {
		if opts.column != "" && name == opts.column {
			res.column = i
			break
		}
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv row %d: %w", res.rows+2, err)
		}
		res.rows++
		if opts.maxRows > 0 && res.rows > opts.maxRows {
			return nil, fmt.Errorf("%w: more than %d rows", ErrTooManyRows, opts.maxRows)
		}

		for i := range res.header {
			cell := ""
			if i < len(record) {
				cell = record[i]
			}
			v, numeric := parseNumber(cell)
			switch {
			case numeric:
				res.profiles[i].numeric++
			case strings.TrimSpace(cell) != "":
				res.profiles[i].other++
			}
			if i == res.column && numeric {
				res.values = append(res.values, v)
			}
		}

		if len(res.preview) < opts.previewRows {
			row := make([]string, len(res.header))
			copy(row, record)
			res.preview = append(res.preview, row)
		}
	}
	return res, nil
}

func parseNumber(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// dedupeHeader strips a UTF-8 BOM, names blank columns and suffixes duplicates with .1, .2, ...
func dedupeHeader(raw []string) []string {
	header := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	suffix := make(map[string]int, len(raw))
	for i, name := range raw {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		candidate := name
		for used[candidate] {
			suffix[name]++
			candidate = fmt.Sprintf("%s.%d", name, suffix[name])
		}
		used[candidate] = true
		header[i] = candidate
	}
	return header
}
