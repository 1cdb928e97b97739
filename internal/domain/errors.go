package domain

import (
	"errors"
	"fmt"
)

// DataShapeError reports a structural problem in loaded tabular data:
// a missing column, an unparseable cell, or an ambiguous matrix row.
// It is local and non-fatal; loaders surface it once at load time and
// scoring of other rows continues.
type DataShapeError struct {
	// Field names the column or attribute that failed.
	Field string
	// Row is the 1-based source row, 0 when the error is not row-specific.
	Row int
	// Message describes what was wrong.
	Message string
}

// Error returns the formatted data-shape failure.
func (e *DataShapeError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("data shape error at row %d, field %q: %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("data shape error in field %q: %s", e.Field, e.Message)
}

// IsDataShapeError reports whether err is (or wraps) a DataShapeError.
func IsDataShapeError(err error) bool {
	var dse *DataShapeError
	return errors.As(err, &dse)
}
