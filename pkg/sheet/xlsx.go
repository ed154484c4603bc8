package sheet

import (
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sheetshot/sheetshot/pkg/errors"
	"github.com/sheetshot/sheetshot/pkg/style"
)

const (
	// Excel column width units to pixels, with the floor the renderer
	// historically applied to hinted columns.
	colWidthPixelsPerUnit = 7.0
	minColHintPixels      = 80.0

	// Row heights are stored in points; 1pt = 4/3 px at 96 DPI.
	pixelsPerPoint = 4.0 / 3.0

	// Values excelize reports for columns/rows that carry no explicit
	// size. Matching values are treated as "no hint".
	defaultColWidthChars = 9.140625
	defaultRowHeightPts  = 15.0

	sizeEpsilon = 1e-6
)

// Workbook wraps an open xlsx file.
type Workbook struct {
	f    *excelize.File
	path string
}

// OpenWorkbook opens an xlsx/xlsm workbook for reading. Failures are
// LOAD_ERROR: an unreadable workbook must fail before any job resources
// are consumed.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLoad, err, "failed to open workbook %s", path)
	}
	return &Workbook{f: f, path: path}, nil
}

// Path returns the source file path.
func (w *Workbook) Path() string { return w.path }

// SheetNames returns the workbook's sheet names in workbook order.
func (w *Workbook) SheetNames() []string {
	return w.f.GetSheetList()
}

// Close releases the underlying file.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// Sheet extracts the full model for one worksheet. A missing sheet or a
// malformed merge declaration is a LOAD_ERROR.
func (w *Workbook) Sheet(name string) (*Sheet, error) {
	idx, err := w.f.GetSheetIndex(name)
	if err != nil || idx < 0 {
		return nil, errors.New(errors.ErrCodeLoad, "sheet %q not found in %s", name, w.path)
	}

	rows, err := w.f.GetRows(name)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLoad, err, "failed to read sheet %q", name)
	}

	s := &Sheet{
		Name:       name,
		ColWidths:  make(map[int]float64),
		RowHeights: make(map[int]float64),
	}

	styleIndex := make(map[int]int)

	for r, rowCells := range rows {
		for c, display := range rowCells {
			axis, aerr := excelize.CoordinatesToCellName(c+1, r+1)
			if aerr != nil {
				return nil, errors.Wrap(errors.ErrCodeLoad, aerr, "invalid coordinates (%d, %d)", r, c)
			}

			styleID, _ := w.f.GetCellStyle(name, axis)
			if display == "" && styleID == 0 {
				continue
			}

			cell := Cell{Row: r, Col: c, Style: -1}
			cell.Value = w.cellValue(name, axis, display)
			if styleID != 0 {
				di, ok := styleIndex[styleID]
				if !ok {
					di = len(s.Styles)
					s.Styles = append(s.Styles, w.styleDescriptor(styleID))
					styleIndex[styleID] = di
				}
				cell.Style = di
				cell.Value.NumberFormat = w.numberFormat(styleID)
			}
			s.Cells = append(s.Cells, cell)

			if c+1 > s.Cols {
				s.Cols = c + 1
			}
		}
		if len(rowCells) > 0 && r+1 > s.Rows {
			s.Rows = r + 1
		}
	}

	if err := w.readMerges(name, s); err != nil {
		return nil, err
	}
	w.readSizeHints(name, s)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// cellValue builds the tagged value for one cell. The display text comes
// from the formatted row scan; typed fields are derived from the raw
// stored value.
func (w *Workbook) cellValue(sheetName, axis, display string) Value {
	if display == "" {
		return Value{}
	}

	ctype, _ := w.f.GetCellType(sheetName, axis)
	raw, _ := w.f.GetCellValue(sheetName, axis, excelize.Options{RawCellValue: true})

	v := Value{Kind: KindText, Text: display}
	switch ctype {
	case excelize.CellTypeBool:
		v.Kind = KindBool
		v.Bool = raw == "1" || strings.EqualFold(raw, "true")
	case excelize.CellTypeDate:
		v.Kind = KindTime
		if serial, err := strconv.ParseFloat(raw, 64); err == nil {
			if t, terr := excelize.ExcelDateToTime(serial, false); terr == nil {
				v.Time = t
			}
		}
	case excelize.CellTypeInlineString, excelize.CellTypeSharedString, excelize.CellTypeError:
		// text as-is
	default:
		// Numeric cells usually carry no explicit type attribute.
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			v.Kind = KindNumber
			v.Number = n
		}
	}
	return v
}

func (w *Workbook) readMerges(name string, s *Sheet) error {
	mcs, err := w.f.GetMergeCells(name)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLoad, err, "failed to read merges of sheet %q", name)
	}
	for _, mc := range mcs {
		sc, sr, serr := excelize.CellNameToCoordinates(mc.GetStartAxis())
		if serr != nil {
			return errors.Wrap(errors.ErrCodeLoad, serr, "malformed merge start %q", mc.GetStartAxis())
		}
		ec, er, eerr := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if eerr != nil {
			return errors.Wrap(errors.ErrCodeLoad, eerr, "malformed merge end %q", mc.GetEndAxis())
		}
		m := Merge{StartRow: sr - 1, StartCol: sc - 1, EndRow: er - 1, EndCol: ec - 1}
		s.Merges = append(s.Merges, m)

		// Merges may extend past the last populated cell.
		if m.EndRow+1 > s.Rows {
			s.Rows = m.EndRow + 1
		}
		if m.EndCol+1 > s.Cols {
			s.Cols = m.EndCol + 1
		}
	}
	return nil
}

// readSizeHints records explicit column widths and row heights as pixel
// hints, skipping the sheet defaults excelize reports for untouched
// rows/columns.
func (w *Workbook) readSizeHints(name string, s *Sheet) {
	for c := 0; c < s.Cols; c++ {
		colName, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			continue
		}
		width, err := w.f.GetColWidth(name, colName)
		if err != nil || math.Abs(width-defaultColWidthChars) < sizeEpsilon {
			continue
		}
		s.ColWidths[c] = math.Max(width*colWidthPixelsPerUnit, minColHintPixels)
	}

	for r := 0; r < s.Rows; r++ {
		height, err := w.f.GetRowHeight(name, r+1)
		if err != nil || math.Abs(height-defaultRowHeightPts) < sizeEpsilon {
			continue
		}
		s.RowHeights[r] = height * pixelsPerPoint
	}
}

// Border style indexes excelize uses, mapped to the source style names
// the resolver recognizes.
var borderStyleNames = map[int]string{
	1:  "thin",
	2:  "medium",
	3:  "dashed",
	4:  "dotted",
	5:  "thick",
	6:  "double",
	7:  "hair",
	8:  "mediumDashed",
	9:  "dashDot",
	10: "mediumDashDot",
	11: "dashDotDot",
	12: "mediumDashDotDot",
	13: "slantDashDot",
}

// Builtin number format codes worth echoing in rendered output.
var builtinNumFmts = map[int]string{
	1:  "0",
	2:  "0.00",
	3:  "#,##0",
	4:  "#,##0.00",
	9:  "0%",
	10: "0.00%",
}

func (w *Workbook) numberFormat(styleID int) string {
	st, err := w.f.GetStyle(styleID)
	if err != nil || st == nil {
		return ""
	}
	if st.CustomNumFmt != nil {
		return *st.CustomNumFmt
	}
	return builtinNumFmts[st.NumFmt]
}

// styleDescriptor maps an excelize style into the raw descriptor shape
// the style resolver consumes. Theme and indexed palette colors are
// passed through as "theme_N"/"indexed_N" references; the resolver
// substitutes defaults for them.
func (w *Workbook) styleDescriptor(styleID int) style.Descriptor {
	st, err := w.f.GetStyle(styleID)
	if err != nil || st == nil {
		return style.Descriptor{}
	}

	var d style.Descriptor
	if f := st.Font; f != nil {
		d.FontName = f.Family
		d.FontSize = f.Size
		d.Bold = f.Bold
		d.Italic = f.Italic
		d.Underline = f.Underline != "" && f.Underline != "none"
		d.FontColor = fontColor(f)
	}
	if st.Fill.Type == "pattern" && st.Fill.Pattern == 1 && len(st.Fill.Color) > 0 {
		d.FillColor = st.Fill.Color[0]
	}
	for _, b := range st.Border {
		side := style.BorderSide{Style: borderStyleNames[b.Style], Color: b.Color}
		if side.Style == "" {
			continue
		}
		switch b.Type {
		case "left":
			d.BorderLeft = side
		case "right":
			d.BorderRight = side
		case "top":
			d.BorderTop = side
		case "bottom":
			d.BorderBottom = side
		}
	}
	if a := st.Alignment; a != nil {
		d.HAlign = a.Horizontal
		d.VAlign = a.Vertical
		d.Wrap = a.WrapText
	}
	return d
}

func fontColor(f *excelize.Font) string {
	if f.Color != "" {
		return f.Color
	}
	if f.ColorTheme != nil {
		return "theme_" + strconv.Itoa(*f.ColorTheme)
	}
	if f.ColorIndexed > 0 {
		return "indexed_" + strconv.Itoa(f.ColorIndexed)
	}
	return ""
}
