package sheet

import (
	"time"

	"github.com/sheetshot/sheetshot/pkg/errors"
	"github.com/sheetshot/sheetshot/pkg/style"
)

// Kind tags the content type of a cell value.
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
	KindBool
	KindTime
)

// Value is the tagged content of a cell. Text always carries the display
// form (number formats already applied); the typed fields are populated
// for their respective kinds.
type Value struct {
	Kind   Kind
	Text   string
	Number float64
	Bool   bool
	Time   time.Time

	// NumberFormat is the source format hint for numeric cells, e.g.
	// "0.00" or "0%". Empty when the source declared none.
	NumberFormat string
}

// IsEmpty reports whether the value renders as nothing.
func (v Value) IsEmpty() bool {
	return v.Kind == KindEmpty || v.Text == ""
}

// String returns the display text.
func (v Value) String() string {
	return v.Text
}

// Text builds a text value.
func Text(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{Kind: KindText, Text: s}
}

// Cell is one populated cell of a sheet. Absent coordinates imply an
// empty cell. Style indexes the sheet's descriptor table; -1 means the
// default style.
type Cell struct {
	Row   int
	Col   int
	Value Value
	Style int
}

// Merge is an inclusive rectangular merged region. The anchor cell
// (StartRow, StartCol) alone carries the displayed content and style.
type Merge struct {
	StartRow int
	StartCol int
	EndRow   int
	EndCol   int
}

// Rows returns the number of rows the merge spans.
func (m Merge) Rows() int { return m.EndRow - m.StartRow + 1 }

// Cols returns the number of columns the merge spans.
func (m Merge) Cols() int { return m.EndCol - m.StartCol + 1 }

// Contains reports whether the coordinate lies inside the merge.
func (m Merge) Contains(row, col int) bool {
	return row >= m.StartRow && row <= m.EndRow && col >= m.StartCol && col <= m.EndCol
}

// Overlaps reports whether two merges share any cell.
func (m Merge) Overlaps(other Merge) bool {
	return m.StartRow <= other.EndRow && other.StartRow <= m.EndRow &&
		m.StartCol <= other.EndCol && other.StartCol <= m.EndCol
}

// Ref returns the merge span in A1 notation, e.g. "B2:D3".
func (m Merge) Ref() string {
	return CellRef(m.StartRow, m.StartCol) + ":" + CellRef(m.EndRow, m.EndCol)
}

// Sheet is the complete model of one worksheet.
type Sheet struct {
	Name string

	// Rows and Cols are exclusive upper bounds on cell coordinates
	// (the sheet extent including merges).
	Rows int
	Cols int

	// Cells holds populated cells in row-major order.
	Cells []Cell

	Merges []Merge

	// ColWidths and RowHeights are explicit size hints in pixels, keyed
	// by 0-based index. A hint is a minimum, never a cap.
	ColWidths  map[int]float64
	RowHeights map[int]float64

	// Styles is the descriptor table indexed by Cell.Style.
	Styles []style.Descriptor

	index map[[2]int]int
}

// CellAt returns the populated cell at (row, col), if any. The lookup
// index is built lazily; a Sheet is owned by a single job and is not
// mutated after load.
func (s *Sheet) CellAt(row, col int) (Cell, bool) {
	if s.index == nil {
		s.index = make(map[[2]int]int, len(s.Cells))
		for i, c := range s.Cells {
			s.index[[2]int{c.Row, c.Col}] = i
		}
	}
	i, ok := s.index[[2]int{row, col}]
	if !ok {
		return Cell{}, false
	}
	return s.Cells[i], true
}

// MergeAt returns the merge containing (row, col), if any.
func (s *Sheet) MergeAt(row, col int) (Merge, bool) {
	for _, m := range s.Merges {
		if m.Contains(row, col) {
			return m, true
		}
	}
	return Merge{}, false
}

// Descriptor returns the style descriptor for a cell, or the zero
// descriptor when the cell carries no style.
func (s *Sheet) Descriptor(c Cell) style.Descriptor {
	if c.Style < 0 || c.Style >= len(s.Styles) {
		return style.Descriptor{}
	}
	return s.Styles[c.Style]
}

// Validate checks structural invariants of the model. Merge violations
// are LOAD_ERROR: the reader must reject them before layout begins.
func (s *Sheet) Validate() error {
	for i, m := range s.Merges {
		if m.StartRow > m.EndRow || m.StartCol > m.EndCol {
			return errors.New(errors.ErrCodeLoad, "merge %s is inverted", m.Ref())
		}
		if m.StartRow < 0 || m.StartCol < 0 {
			return errors.New(errors.ErrCodeLoad, "merge %s has negative coordinates", m.Ref())
		}
		if m.EndRow >= s.Rows || m.EndCol >= s.Cols {
			return errors.New(errors.ErrCodeLoad, "merge %s exceeds sheet bounds %dx%d", m.Ref(), s.Rows, s.Cols)
		}
		if m.Rows() == 1 && m.Cols() == 1 {
			return errors.New(errors.ErrCodeLoad, "merge %s spans a single cell", m.Ref())
		}
		for _, other := range s.Merges[i+1:] {
			if m.Overlaps(other) {
				return errors.New(errors.ErrCodeLoad, "merge %s overlaps %s", m.Ref(), other.Ref())
			}
		}
	}
	for _, c := range s.Cells {
		if c.Row < 0 || c.Col < 0 || c.Row >= s.Rows || c.Col >= s.Cols {
			return errors.New(errors.ErrCodeLoad, "cell %s outside sheet bounds %dx%d", CellRef(c.Row, c.Col), s.Rows, s.Cols)
		}
	}
	return nil
}
