package benford

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFileNotFound is returned when the dataset path does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrNoNumericData is returned when a column has no usable numeric values.
	ErrNoNumericData = errors.New("column contains no numeric values")
	// ErrTooManyRows is returned by Inspect when a file exceeds the row cap.
	ErrTooManyRows = errors.New("too many rows")
	// ErrInvalidState is returned when analyzer steps run out of order or after a failure.
	ErrInvalidState = errors.New("invalid analyzer state")
	// ErrPlotFailed and ErrReportFailed mark which Render output could not be written.
	ErrPlotFailed   = errors.New("render plot")
	ErrReportFailed = errors.New("write report")
)

// ColumnNotFoundError reports a missing column along with the numeric columns that do exist.
type ColumnNotFoundError struct {
	Column    string
	Available []string
}

func (e *ColumnNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("column %q not found", e.Column)
	}
	return fmt.Sprintf("column %q not found; numeric columns: %s", e.Column, strings.Join(e.Available, ", "))
}
