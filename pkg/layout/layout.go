package layout

import (
	"math"
	"sort"

	"github.com/sheetshot/sheetshot/pkg/errors"
	"github.com/sheetshot/sheetshot/pkg/sheet"
	"github.com/sheetshot/sheetshot/pkg/style"
)

const eps = 1e-9

// Overrides forces the total output dimensions. Zero means "use the
// computed size". A forced dimension replaces the sheet total; columns and
// rows are scaled proportionally to fit, never individually overridden.
type Overrides struct {
	Width  float64
	Height float64
}

// Layout is the finalized, renderer-ready geometry for a sheet range.
type Layout struct {
	Range sheet.Range

	// Merges are the in-range merged regions the rects honor, ascending
	// by anchor. Boundary-straddling merges from the source sheet are
	// absent here.
	Merges []sheet.Merge

	// ColWidths and RowHeights are indexed by offset within Range.
	ColWidths  []float64
	RowHeights []float64

	// Rects maps absolute cell coordinates to pixel rectangles. Merged
	// regions appear once at their anchor; covered cells are absent.
	Rects map[Coord]Rect

	// Width and Height are the summed totals.
	Width  float64
	Height float64
}

// Rect returns the rectangle for an absolute cell coordinate.
func (l *Layout) Rect(row, col int) (Rect, bool) {
	r, ok := l.Rects[Coord{Row: row, Col: col}]
	return r, ok
}

// Resolve computes the layout for a sheet restricted to filter (nil means
// the whole sheet) under the given overrides. It fails with RANGE_ERROR
// when the filter references cells outside the sheet or is inverted.
//
// Column and row extents are influenced only by their own hints, their own
// non-merged cell demands, and proportional shares of merges spanning them.
func Resolve(s *sheet.Sheet, styles *style.Resolver, filter *sheet.Range, ov Overrides) (*Layout, error) {
	if s.Rows == 0 || s.Cols == 0 {
		if filter != nil {
			return nil, errors.New(errors.ErrCodeRange, "range %s references an empty sheet", filter.Ref())
		}
		return &Layout{Rects: map[Coord]Rect{}}, nil
	}

	rng := sheet.FullRange(s.Rows, s.Cols)
	if filter != nil {
		rng = *filter
	}
	if err := rng.Validate(s.Rows, s.Cols); err != nil {
		return nil, err
	}

	widths := make([]float64, rng.Cols())
	heights := make([]float64, rng.Rows())

	// Merges outside or straddling the range boundary are dropped; their
	// covered cells participate as ordinary cells instead.
	var merges []sheet.Merge
	for _, m := range s.Merges {
		if rng.Contains(m.StartRow, m.StartCol) && rng.Contains(m.EndRow, m.EndCol) {
			merges = append(merges, m)
		}
	}
	sort.Slice(merges, func(i, j int) bool {
		if merges[i].StartRow != merges[j].StartRow {
			return merges[i].StartRow < merges[j].StartRow
		}
		return merges[i].StartCol < merges[j].StartCol
	})

	covered := func(row, col int) bool {
		for _, m := range merges {
			if m.Contains(row, col) {
				return true
			}
		}
		return false
	}

	// Non-merged cell demands.
	for _, c := range s.Cells {
		if !rng.Contains(c.Row, c.Col) || covered(c.Row, c.Col) {
			continue
		}
		rec := styles.Resolve(s.Descriptor(c))
		ci := c.Col - rng.StartCol
		ri := c.Row - rng.StartRow
		if wd := WidthDemand(c.Value.Text, rec.Family); wd > widths[ci] {
			widths[ci] = wd
		}
		if hd := HeightDemand(c.Value.Text, rec.Wrap); hd > heights[ri] {
			heights[ri] = hd
		}
	}

	// Explicit hints are minimums, never caps.
	for col, hint := range s.ColWidths {
		if col >= rng.StartCol && col <= rng.EndCol {
			if ci := col - rng.StartCol; hint > widths[ci] {
				widths[ci] = hint
			}
		}
	}
	for row, hint := range s.RowHeights {
		if row >= rng.StartRow && row <= rng.EndRow {
			if ri := row - rng.StartRow; hint > heights[ri] {
				heights[ri] = hint
			}
		}
	}

	// Merged regions grow their spanned columns/rows to the anchor demand.
	// Growth never shrinks and floors are not reapplied afterwards, so a
	// later merge sees the full picture of organic and merge-driven extent.
	for _, m := range merges {
		anchor := sheet.Cell{Style: -1}
		if c, ok := s.CellAt(m.StartRow, m.StartCol); ok {
			anchor = c
		}
		rec := styles.Resolve(s.Descriptor(anchor))

		wd := WidthDemand(anchor.Value.Text, rec.Family)
		distribute(widths[m.StartCol-rng.StartCol:m.EndCol-rng.StartCol+1], wd)

		hd := HeightDemand(anchor.Value.Text, rec.Wrap)
		distribute(heights[m.StartRow-rng.StartRow:m.EndRow-rng.StartRow+1], hd)
	}

	if ov.Width > 0 {
		rescale(widths, ov.Width)
	}
	if ov.Height > 0 {
		rescale(heights, ov.Height)
	}

	l := &Layout{
		Range:      rng,
		Merges:     merges,
		ColWidths:  widths,
		RowHeights: heights,
		Rects:      make(map[Coord]Rect, rng.Rows()*rng.Cols()),
	}

	// Absolute rectangles by prefix-summing resolved extents.
	xs := prefixSums(widths)
	ys := prefixSums(heights)
	l.Width = xs[len(xs)-1]
	l.Height = ys[len(ys)-1]

	for row := rng.StartRow; row <= rng.EndRow; row++ {
		for col := rng.StartCol; col <= rng.EndCol; col++ {
			ri := row - rng.StartRow
			ci := col - rng.StartCol
			if m, ok := mergeAt(merges, row, col); ok {
				if row != m.StartRow || col != m.StartCol {
					continue
				}
				l.Rects[Coord{Row: row, Col: col}] = Rect{
					Left:   xs[ci],
					Right:  xs[m.EndCol-rng.StartCol+1],
					Top:    ys[ri],
					Bottom: ys[m.EndRow-rng.StartRow+1],
				}
				continue
			}
			l.Rects[Coord{Row: row, Col: col}] = Rect{
				Left:   xs[ci],
				Right:  xs[ci+1],
				Top:    ys[ri],
				Bottom: ys[ri+1],
			}
		}
	}

	return l, nil
}

// distribute grows the spanned extents until their sum covers demand.
// The shortfall is shared proportionally to current extents, or equally
// when every spanned extent is zero.
func distribute(span []float64, demand float64) {
	var sum float64
	for _, v := range span {
		sum += v
	}
	if sum >= demand {
		return
	}
	shortfall := demand - sum
	if sum > eps {
		for i := range span {
			span[i] += shortfall * span[i] / sum
		}
		return
	}
	share := shortfall / float64(len(span))
	for i := range span {
		span[i] += share
	}
}

// rescale scales extents so their sum matches the forced total. Relative
// proportions are preserved; an all-zero span is distributed equally.
func rescale(span []float64, total float64) {
	var sum float64
	for _, v := range span {
		sum += v
	}
	if sum > eps {
		if math.Abs(sum-total) > eps {
			scale := total / sum
			for i := range span {
				span[i] *= scale
			}
		}
		return
	}
	share := total / float64(len(span))
	for i := range span {
		span[i] = share
	}
}

func prefixSums(extents []float64) []float64 {
	sums := make([]float64, len(extents)+1)
	for i, v := range extents {
		sums[i+1] = sums[i] + v
	}
	return sums
}

func mergeAt(merges []sheet.Merge, row, col int) (sheet.Merge, bool) {
	for _, m := range merges {
		if m.Contains(row, col) {
			return m, true
		}
	}
	return sheet.Merge{}, false
}
