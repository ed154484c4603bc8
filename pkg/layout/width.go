package layout

import (
	"strings"

	"github.com/sheetshot/sheetshot/pkg/style"
)

// Pixel weights per character class. The proportional table matches the
// measurements the HTML renderer was tuned against at 16px Calibri.
type weightTable struct {
	Wide   float64
	Letter float64
	Digit  float64
	Space  float64
	Other  float64
}

var (
	proportionalWeights = weightTable{Wide: 12, Letter: 8, Digit: 8, Space: 4, Other: 6}
	monospaceWeights    = weightTable{Wide: 16, Letter: 8, Digit: 8, Space: 8, Other: 8}
)

const (
	// CellPadding is added to every non-empty width demand.
	CellPadding = 20.0
	// MinCellWidth floors the demand of any non-empty cell.
	MinCellWidth = 120.0
	// EmptyCellWidth is the demand of a populated cell with empty content.
	EmptyCellWidth = 80.0

	// LineHeight and RowPadding make up a cell's height demand.
	LineHeight = 24.0
	RowPadding = 6.0
	// MinRowHeight floors the demand of any populated cell.
	MinRowHeight = 30.0
)

func weightsFor(class style.FamilyClass) weightTable {
	if class == style.FamilyMonospace {
		return monospaceWeights
	}
	return proportionalWeights
}

// isWide reports whether a rune takes a double-width slot: Hangul jamo and
// syllables, CJK ideographs, kana, and fullwidth forms.
func isWide(r rune) bool {
	switch {
	case r >= 0x3131 && r <= 0x318E: // Hangul compatibility jamo
		return true
	case r >= 0xAC00 && r <= 0xD7A3: // Hangul syllables
		return true
	case r >= 0x4E00 && r <= 0x9FFF: // CJK unified ideographs
		return true
	case r >= 0x3040 && r <= 0x30FF: // Hiragana and katakana
		return true
	case r >= 0xFF01 && r <= 0xFF60: // Fullwidth forms
		return true
	}
	return false
}

func lineWidth(line string, w weightTable) float64 {
	var width float64
	for _, r := range line {
		switch {
		case isWide(r):
			width += w.Wide
		case r < 0x80 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			width += w.Letter
		case r >= '0' && r <= '9':
			width += w.Digit
		case r == ' ' || r == '\t':
			width += w.Space
		default:
			width += w.Other
		}
	}
	return width
}

// WidthDemand estimates the pixel width a cell's content requires. The
// demand is measured on the longest line (text split on line breaks, blank
// lines skipped), plus padding, floored at MinCellWidth. Empty content
// demands EmptyCellWidth.
func WidthDemand(text string, class style.FamilyClass) float64 {
	if text == "" {
		return EmptyCellWidth
	}

	w := weightsFor(class)
	var longest float64
	any := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" {
			continue
		}
		any = true
		if lw := lineWidth(line, w); lw > longest {
			longest = lw
		}
	}
	if !any {
		return EmptyCellWidth
	}

	demand := longest + CellPadding
	if demand < MinCellWidth {
		demand = MinCellWidth
	}
	return demand
}

// HeightDemand estimates the pixel height a cell's content requires:
// line count × line height for wrapping cells, a single line otherwise,
// plus padding, floored at MinRowHeight.
func HeightDemand(text string, wrap bool) float64 {
	lines := 1
	if wrap && text != "" {
		lines = strings.Count(text, "\n") + 1
	}
	demand := float64(lines)*LineHeight + RowPadding
	if demand < MinRowHeight {
		demand = MinRowHeight
	}
	return demand
}
