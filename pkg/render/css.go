package render

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sheetshot/sheetshot/pkg/style"
)

// Horizontal cell padding (10px per side) and the 24px line height mirror
// the layout demand model's CellPadding, LineHeight, and RowPadding.
// Changing one side without the other skews the fixed geometry.
const baseCSS = `body {
  margin: 20px;
  background-color: #f5f5f5;
  font-family: 'Calibri', 'Arial', sans-serif;
}

.excel-table {
  border-collapse: collapse;
  table-layout: fixed;
  background-color: #ffffff;
  font-family: 'Calibri', 'Arial', sans-serif;
  font-size: 16px;
  line-height: 24px;
}

.excel-table td {
  border: 1px solid #d0d0d0;
  padding: 3px 10px;
  box-sizing: border-box;
  vertical-align: top;
  white-space: pre;
  overflow: hidden;
}

.excel-table tr:nth-child(even) {
  background-color: #fafafa;
}
`

// recordClass names the CSS class for a style record. Twelve hash chars
// keep collisions out of reach for any single sheet's record set.
func recordClass(rec *style.Record) string {
	return "s-" + rec.Key[:12]
}

func writeRecordCSS(buf *bytes.Buffer, used map[string]*style.Record) {
	keys := make([]string, 0, len(used))
	for k := range used {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		rec := used[k]
		fmt.Fprintf(buf, ".%s { %s }\n", recordClass(rec), strings.Join(recordDeclarations(rec), " "))
	}
}

func recordDeclarations(rec *style.Record) []string {
	var decls []string

	if rec.FontFamily != "" {
		decls = append(decls, "font-family: "+fontStack(rec.FontFamily, rec.Family)+";")
	}
	if rec.Size != 16 {
		decls = append(decls, fmt.Sprintf("font-size: %.0fpx;", rec.Size))
	}
	if rec.Bold {
		decls = append(decls, "font-weight: bold;")
	}
	if rec.Italic {
		decls = append(decls, "font-style: italic;")
	}
	if rec.Underline {
		decls = append(decls, "text-decoration: underline;")
	}
	if rec.Foreground != "" && rec.Foreground != "#000000" {
		decls = append(decls, "color: "+rec.Foreground+";")
	}
	if rec.Background != "" {
		decls = append(decls, "background-color: "+rec.Background+";")
	}
	if a := textAlign(rec.HAlign); a != "" {
		decls = append(decls, "text-align: "+a+";")
	}
	if a := verticalAlign(rec.VAlign); a != "" {
		decls = append(decls, "vertical-align: "+a+";")
	}
	if rec.Wrap {
		decls = append(decls, "white-space: pre-wrap; word-break: break-word;")
	}

	for _, side := range []struct {
		name string
		side style.Side
	}{
		{"border-left", rec.Left},
		{"border-right", rec.Right},
		{"border-top", rec.Top},
		{"border-bottom", rec.Bottom},
	} {
		if side.side.Style != "" {
			decls = append(decls, fmt.Sprintf("%s: 1px %s %s;", side.name, side.side.Style, side.side.Color))
		}
	}

	return decls
}

func textAlign(a style.HAlign) string {
	switch a {
	case style.HAlignLeft:
		return "left"
	case style.HAlignCenter:
		return "center"
	case style.HAlignRight:
		return "right"
	case style.HAlignJustify:
		return "justify"
	default:
		return ""
	}
}

func verticalAlign(a style.VAlign) string {
	switch a {
	case style.VAlignTop:
		return "top"
	case style.VAlignMiddle:
		return "middle"
	case style.VAlignBottom:
		return "bottom"
	default:
		return ""
	}
}
