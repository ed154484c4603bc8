package layout

import (
	"reflect"
	"strings"
	"testing"

	"github.com/sheetshot/sheetshot/pkg/errors"
	"github.com/sheetshot/sheetshot/pkg/sheet"
	"github.com/sheetshot/sheetshot/pkg/style"
)

func textCell(row, col int, text string) sheet.Cell {
	return sheet.Cell{Row: row, Col: col, Value: sheet.Text(text), Style: -1}
}

// demandText builds a string whose width demand is exactly px under the
// proportional table (letters at 8px plus padding).
func demandText(px float64) string {
	return strings.Repeat("a", int((px-CellPadding)/8))
}

func TestResolveEmptySheet(t *testing.T) {
	l, err := Resolve(&sheet.Sheet{}, style.NewResolver(), nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if l.Width != 0 || l.Height != 0 || len(l.Rects) != 0 {
		t.Errorf("Resolve() = %+v, want empty layout", l)
	}

	filter := &sheet.Range{}
	if _, err := Resolve(&sheet.Sheet{}, style.NewResolver(), filter, Overrides{}); !errors.Is(err, errors.ErrCodeRange) {
		t.Errorf("Resolve() with filter error = %v, want %s", err, errors.ErrCodeRange)
	}
}

func TestResolveSingleCell(t *testing.T) {
	s := &sheet.Sheet{
		Rows:  1,
		Cols:  1,
		Cells: []sheet.Cell{textCell(0, 0, "Hi")},
	}

	l, err := Resolve(s, style.NewResolver(), nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if l.Width != MinCellWidth || l.Height != MinRowHeight {
		t.Errorf("totals = %vx%v, want %vx%v", l.Width, l.Height, MinCellWidth, MinRowHeight)
	}
	r, ok := l.Rect(0, 0)
	if !ok {
		t.Fatal("Rect(0, 0) missing")
	}
	want := Rect{Left: 0, Right: MinCellWidth, Top: 0, Bottom: MinRowHeight}
	if r != want {
		t.Errorf("Rect(0, 0) = %+v, want %+v", r, want)
	}
}

func TestResolveColumnTakesMax(t *testing.T) {
	s := &sheet.Sheet{
		Rows: 2,
		Cols: 1,
		Cells: []sheet.Cell{
			textCell(0, 0, demandText(220)),
			textCell(1, 0, "bbb"),
		},
	}

	l, err := Resolve(s, style.NewResolver(), nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if l.ColWidths[0] != 220 {
		t.Errorf("ColWidths[0] = %v, want 220 (max, not sum)", l.ColWidths[0])
	}
}

func TestResolveHintsAreMinimums(t *testing.T) {
	s := &sheet.Sheet{
		Rows: 1,
		Cols: 2,
		Cells: []sheet.Cell{
			textCell(0, 0, "ok"),
			textCell(0, 1, "ok"),
		},
		ColWidths:  map[int]float64{0: 400, 1: 50},
		RowHeights: map[int]float64{0: 100},
	}

	l, err := Resolve(s, style.NewResolver(), nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if l.ColWidths[0] != 400 {
		t.Errorf("ColWidths[0] = %v, want 400 (hint raises)", l.ColWidths[0])
	}
	if l.ColWidths[1] != MinCellWidth {
		t.Errorf("ColWidths[1] = %v, want %v (hint below demand ignored)", l.ColWidths[1], MinCellWidth)
	}
	if l.RowHeights[0] != 100 {
		t.Errorf("RowHeights[0] = %v, want 100", l.RowHeights[0])
	}
}

func TestResolveEmptyColumnsCollapse(t *testing.T) {
	s := &sheet.Sheet{
		Rows:  1,
		Cols:  3,
		Cells: []sheet.Cell{textCell(0, 0, "x")},
	}

	l, err := Resolve(s, style.NewResolver(), nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []float64{MinCellWidth, 0, 0}
	if !reflect.DeepEqual(l.ColWidths, want) {
		t.Errorf("ColWidths = %v, want %v", l.ColWidths, want)
	}
	if l.Width != MinCellWidth {
		t.Errorf("Width = %v, want %v", l.Width, MinCellWidth)
	}
}

func TestResolveMergeProportionalGrowth(t *testing.T) {
	s := &sheet.Sheet{
		Rows: 2,
		Cols: 2,
		Cells: []sheet.Cell{
			textCell(0, 0, demandText(300)),
			textCell(1, 0, ""),
			textCell(1, 1, ""),
		},
		Merges: []sheet.Merge{{StartRow: 0, StartCol: 0, EndRow: 0, EndCol: 1}},
	}

	l, err := Resolve(s, style.NewResolver(), nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []float64{150, 150}
	if !reflect.DeepEqual(l.ColWidths, want) {
		t.Errorf("ColWidths = %v, want %v", l.ColWidths, want)
	}
	if l.Width != 300 {
		t.Errorf("Width = %v, want 300", l.Width)
	}

	anchor, ok := l.Rect(0, 0)
	if !ok {
		t.Fatal("Rect(0, 0) missing")
	}
	if anchor.Width() != 300 {
		t.Errorf("anchor Width() = %v, want 300 (spans the merge)", anchor.Width())
	}
	if _, ok := l.Rect(0, 1); ok {
		t.Error("Rect(0, 1) present, want covered cell omitted")
	}
	if len(l.Rects) != 3 {
		t.Errorf("len(Rects) = %d, want 3", len(l.Rects))
	}
}

func TestResolveMergeEqualShares(t *testing.T) {
	s := &sheet.Sheet{
		Rows:   1,
		Cols:   2,
		Cells:  []sheet.Cell{textCell(0, 0, "headline")},
		Merges: []sheet.Merge{{StartRow: 0, StartCol: 0, EndRow: 0, EndCol: 1}},
	}

	l, err := Resolve(s, style.NewResolver(), nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// Both spanned columns start at zero, so the 120px demand is shared
	// equally. No floor is reapplied after distribution.
	want := []float64{60, 60}
	if !reflect.DeepEqual(l.ColWidths, want) {
		t.Errorf("ColWidths = %v, want %v", l.ColWidths, want)
	}
}

func TestResolveMergeIndependence(t *testing.T) {
	base := func(merges []sheet.Merge) *sheet.Sheet {
		return &sheet.Sheet{
			Rows: 2,
			Cols: 4,
			Cells: []sheet.Cell{
				textCell(0, 0, demandText(300)),
				textCell(0, 2, demandText(300)),
				textCell(1, 0, ""),
				textCell(1, 1, ""),
				textCell(1, 2, ""),
				textCell(1, 3, ""),
			},
			Merges: merges,
		}
	}

	one, err := Resolve(base([]sheet.Merge{
		{StartRow: 0, StartCol: 2, EndRow: 0, EndCol: 3},
	}), style.NewResolver(), nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	two, err := Resolve(base([]sheet.Merge{
		{StartRow: 0, StartCol: 0, EndRow: 0, EndCol: 1},
		{StartRow: 0, StartCol: 2, EndRow: 0, EndCol: 3},
	}), style.NewResolver(), nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if one.ColWidths[2] != two.ColWidths[2] || one.ColWidths[3] != two.ColWidths[3] {
		t.Errorf("cols 2,3 changed: %v vs %v, want unchanged by a disjoint merge",
			one.ColWidths[2:], two.ColWidths[2:])
	}
	want := []float64{150, 150, 150, 150}
	if !reflect.DeepEqual(two.ColWidths, want) {
		t.Errorf("ColWidths = %v, want %v", two.ColWidths, want)
	}
}

func TestResolveSequentialMerges(t *testing.T) {
	s := &sheet.Sheet{
		Rows: 3,
		Cols: 2,
		Cells: []sheet.Cell{
			textCell(0, 0, demandText(300)),
			textCell(1, 0, strings.Repeat("a", 40)+strings.Repeat("@", 10)), // 400px demand
			textCell(2, 0, ""),
			textCell(2, 1, ""),
		},
		Merges: []sheet.Merge{
			{StartRow: 0, StartCol: 0, EndRow: 0, EndCol: 1},
			{StartRow: 1, StartCol: 0, EndRow: 1, EndCol: 1},
		},
	}

	l, err := Resolve(s, style.NewResolver(), nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// First merge grows 80+80 to 150+150; the second sees 300 and adds its
	// 100px shortfall proportionally.
	want := []float64{200, 200}
	if !reflect.DeepEqual(l.ColWidths, want) {
		t.Errorf("ColWidths = %v, want %v", l.ColWidths, want)
	}
}

func TestResolveForcedDimensions(t *testing.T) {
	s := &sheet.Sheet{
		Rows:      1,
		Cols:      2,
		Cells:     []sheet.Cell{textCell(0, 0, "ok")},
		ColWidths: map[int]float64{1: 240},
	}

	l, err := Resolve(s, style.NewResolver(), nil, Overrides{Width: 180, Height: 90})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []float64{60, 120}
	if !reflect.DeepEqual(l.ColWidths, want) {
		t.Errorf("ColWidths = %v, want %v (proportions preserved)", l.ColWidths, want)
	}
	if l.Width != 180 || l.Height != 90 {
		t.Errorf("totals = %vx%v, want 180x90", l.Width, l.Height)
	}
	r, ok := l.Rect(0, 1)
	if !ok {
		t.Fatal("Rect(0, 1) missing")
	}
	wantRect := Rect{Left: 60, Right: 180, Top: 0, Bottom: 90}
	if r != wantRect {
		t.Errorf("Rect(0, 1) = %+v, want %+v", r, wantRect)
	}
}

func TestResolveForcedOnEmptySpan(t *testing.T) {
	s := &sheet.Sheet{Rows: 1, Cols: 2}

	l, err := Resolve(s, style.NewResolver(), nil, Overrides{Width: 200})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := []float64{100, 100}
	if !reflect.DeepEqual(l.ColWidths, want) {
		t.Errorf("ColWidths = %v, want %v (equal shares)", l.ColWidths, want)
	}
}

func TestResolveRangeFilter(t *testing.T) {
	s := &sheet.Sheet{
		Rows: 3,
		Cols: 3,
		Cells: []sheet.Cell{
			textCell(0, 0, demandText(500)),
			textCell(1, 1, "ok"),
			textCell(2, 2, "ok"),
		},
	}

	filter := &sheet.Range{StartRow: 1, StartCol: 1, EndRow: 2, EndCol: 2}
	l, err := Resolve(s, style.NewResolver(), filter, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(l.ColWidths) != 2 || l.ColWidths[0] != MinCellWidth {
		t.Errorf("ColWidths = %v, want the filtered 2 columns at %v", l.ColWidths, MinCellWidth)
	}
	if l.Width != 2*MinCellWidth || l.Height != 2*MinRowHeight {
		t.Errorf("totals = %vx%v, want %vx%v", l.Width, l.Height, 2*MinCellWidth, 2*MinRowHeight)
	}

	// Rects stay keyed by absolute coordinates, origin at the range start.
	r, ok := l.Rect(1, 1)
	if !ok {
		t.Fatal("Rect(1, 1) missing")
	}
	if r.Left != 0 || r.Top != 0 {
		t.Errorf("Rect(1, 1) origin = (%v, %v), want (0, 0)", r.Left, r.Top)
	}
	if _, ok := l.Rect(0, 0); ok {
		t.Error("Rect(0, 0) present, want cells outside the filter omitted")
	}
}

func TestResolveRangeErrors(t *testing.T) {
	s := &sheet.Sheet{Rows: 3, Cols: 3, Cells: []sheet.Cell{textCell(0, 0, "x")}}

	tests := []struct {
		name   string
		filter sheet.Range
	}{
		{
			name:   "exceeds columns",
			filter: sheet.Range{EndRow: 0, EndCol: 5},
		},
		{
			name:   "exceeds rows",
			filter: sheet.Range{EndRow: 7, EndCol: 0},
		},
		{
			name:   "inverted rows",
			filter: sheet.Range{StartRow: 2, EndRow: 1, EndCol: 2},
		},
		{
			name:   "negative start",
			filter: sheet.Range{StartRow: -1, EndRow: 1, EndCol: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(s, style.NewResolver(), &tt.filter, Overrides{})
			if !errors.Is(err, errors.ErrCodeRange) {
				t.Errorf("Resolve() error = %v, want %s", err, errors.ErrCodeRange)
			}
		})
	}
}

func TestResolveBoundaryMergeTreatedAsCells(t *testing.T) {
	s := &sheet.Sheet{
		Rows: 2,
		Cols: 4,
		Cells: []sheet.Cell{
			textCell(0, 0, "abcdefghijklm"),
			textCell(1, 1, "hi"),
		},
		Merges: []sheet.Merge{{StartRow: 0, StartCol: 0, EndRow: 0, EndCol: 3}},
	}

	filter := &sheet.Range{StartRow: 0, StartCol: 0, EndRow: 1, EndCol: 1}
	l, err := Resolve(s, style.NewResolver(), filter, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// The merge straddles the range boundary, so its anchor contributes as
	// an ordinary cell and no merged rect is emitted.
	want := []float64{13*8 + CellPadding, MinCellWidth}
	if !reflect.DeepEqual(l.ColWidths, want) {
		t.Errorf("ColWidths = %v, want %v", l.ColWidths, want)
	}
	r, ok := l.Rect(0, 0)
	if !ok {
		t.Fatal("Rect(0, 0) missing")
	}
	if r.Width() != want[0] {
		t.Errorf("anchor Width() = %v, want %v (single column)", r.Width(), want[0])
	}
}

func TestResolveWrapHeights(t *testing.T) {
	s := &sheet.Sheet{
		Rows:   1,
		Cols:   1,
		Cells:  []sheet.Cell{{Row: 0, Col: 0, Value: sheet.Text("a\nb\nc"), Style: 0}},
		Styles: []style.Descriptor{{Wrap: true}},
	}

	l, err := Resolve(s, style.NewResolver(), nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := 3*LineHeight + RowPadding
	if l.RowHeights[0] != want {
		t.Errorf("RowHeights[0] = %v, want %v", l.RowHeights[0], want)
	}
}

func TestResolveDeterministic(t *testing.T) {
	s := &sheet.Sheet{
		Rows: 2,
		Cols: 2,
		Cells: []sheet.Cell{
			textCell(0, 0, demandText(300)),
			textCell(1, 0, "알파"),
			textCell(1, 1, "beta"),
		},
		Merges:    []sheet.Merge{{StartRow: 0, StartCol: 0, EndRow: 0, EndCol: 1}},
		ColWidths: map[int]float64{1: 130},
	}

	first, err := Resolve(s, style.NewResolver(), nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := Resolve(s, style.NewResolver(), nil, Overrides{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Resolve() not deterministic:\n%+v\n%+v", first, second)
	}
}
