package sheet

import (
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sheetshot/sheetshot/pkg/errors"
)

// Range is an inclusive, 0-based rectangular cell range. A nil *Range
// passed to the layout engine means "whole sheet".
type Range struct {
	StartRow int
	StartCol int
	EndRow   int
	EndCol   int
}

// FullRange covers a sheet of the given extent.
func FullRange(rows, cols int) Range {
	return Range{EndRow: rows - 1, EndCol: cols - 1}
}

// Rows returns the number of rows in the range.
func (r Range) Rows() int { return r.EndRow - r.StartRow + 1 }

// Cols returns the number of columns in the range.
func (r Range) Cols() int { return r.EndCol - r.StartCol + 1 }

// Contains reports whether the coordinate lies inside the range.
func (r Range) Contains(row, col int) bool {
	return row >= r.StartRow && row <= r.EndRow && col >= r.StartCol && col <= r.EndCol
}

// Ref returns the range in A1 notation.
func (r Range) Ref() string {
	return CellRef(r.StartRow, r.StartCol) + ":" + CellRef(r.EndRow, r.EndCol)
}

// Validate checks the range against a sheet extent. An inverted range or
// one referencing cells outside the sheet is a RANGE_ERROR.
func (r Range) Validate(rows, cols int) error {
	if r.StartRow > r.EndRow || r.StartCol > r.EndCol {
		return errors.New(errors.ErrCodeRange, "range %s is inverted", r.Ref())
	}
	if r.StartRow < 0 || r.StartCol < 0 {
		return errors.New(errors.ErrCodeRange, "range %s has negative coordinates", r.Ref())
	}
	if r.EndRow >= rows || r.EndCol >= cols {
		return errors.New(errors.ErrCodeRange, "range %s exceeds sheet bounds %s", r.Ref(), Range{EndRow: rows - 1, EndCol: cols - 1}.Ref())
	}
	return nil
}

// ParseRange parses an A1-notation range like "A1:F20". A single
// reference ("B3") is accepted as a one-cell range. Parse failures are
// RANGE_ERROR.
func ParseRange(ref string) (Range, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Range{}, errors.New(errors.ErrCodeRange, "range cannot be empty")
	}

	start, end, found := strings.Cut(ref, ":")
	if !found {
		end = start
	}

	startRow, startCol, err := ParseRef(start)
	if err != nil {
		return Range{}, err
	}
	endRow, endCol, err := ParseRef(end)
	if err != nil {
		return Range{}, err
	}

	return Range{StartRow: startRow, StartCol: startCol, EndRow: endRow, EndCol: endCol}, nil
}

// ParseRef parses a single A1-notation cell reference into 0-based
// (row, col) coordinates.
func ParseRef(ref string) (row, col int, err error) {
	c, r, cerr := excelize.CellNameToCoordinates(strings.TrimSpace(ref))
	if cerr != nil {
		return 0, 0, errors.Wrap(errors.ErrCodeRange, cerr, "invalid cell reference %q", ref)
	}
	return r - 1, c - 1, nil
}

// CellRef renders 0-based (row, col) coordinates in A1 notation.
func CellRef(row, col int) string {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return ""
	}
	return name
}
