package render

import (
	"strings"

	"github.com/sheetshot/sheetshot/pkg/style"
)

// DefaultFontFamily is the CSS font stack matching the spreadsheet
// application's default face. The rasterizer's browser substitutes from
// the tail when Calibri is not installed.
const DefaultFontFamily = `'Calibri', 'Arial', sans-serif`

// MonospaceFontFamily is the fallback stack for fixed-pitch cell fonts.
const MonospaceFontFamily = `'Consolas', 'Monaco', 'Courier New', monospace`

// fontStack builds the font-family value for a named cell font, keeping
// the class-appropriate fallback tail so missing fonts degrade to the
// same metrics the layout demand model assumed.
func fontStack(name string, class style.FamilyClass) string {
	tail := DefaultFontFamily
	if class == style.FamilyMonospace {
		tail = MonospaceFontFamily
	}
	quoted := "'" + strings.ReplaceAll(name, "'", "") + "'"
	if strings.Contains(tail, quoted) {
		return tail
	}
	return quoted + ", " + tail
}
