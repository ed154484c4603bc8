package render

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/sheetshot/sheetshot/pkg/errors"
	"github.com/sheetshot/sheetshot/pkg/layout"
	"github.com/sheetshot/sheetshot/pkg/sheet"
	"github.com/sheetshot/sheetshot/pkg/style"
)

type Option func(*renderer)

type renderer struct {
	title string
	lang  string
}

// WithTitle overrides the document title (defaults to the sheet name).
func WithTitle(title string) Option { return func(r *renderer) { r.title = title } }

// WithLang sets the html lang attribute.
func WithLang(lang string) Option { return func(r *renderer) { r.lang = lang } }

// Document assembles the self-contained HTML document for a resolved
// layout. The sheet, resolver, and layout must come from the same job:
// the layout's rects decide which cells are emitted and the resolver
// supplies the deduplicated records the CSS rules are generated from.
func Document(s *sheet.Sheet, res *style.Resolver, l *layout.Layout, opts ...Option) (string, error) {
	if s == nil || res == nil || l == nil {
		return "", errors.New(errors.ErrCodeRender, "document requires a sheet, a style resolver, and a layout")
	}

	r := renderer{title: s.Name, lang: "en"}
	for _, opt := range opts {
		opt(&r)
	}

	used := make(map[string]*style.Record)
	var table bytes.Buffer
	renderTable(&table, s, res, l, used)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<!DOCTYPE html>\n<html lang=%q>\n<head>\n", r.lang)
	buf.WriteString("<meta charset=\"UTF-8\">\n")
	fmt.Fprintf(&buf, "<title>%s</title>\n", html.EscapeString(r.title))
	buf.WriteString("<style>\n")
	buf.WriteString(baseCSS)
	writeRecordCSS(&buf, used)
	buf.WriteString("</style>\n</head>\n<body>\n")
	table.WriteTo(&buf)
	buf.WriteString("</body>\n</html>\n")
	return buf.String(), nil
}

func renderTable(buf *bytes.Buffer, s *sheet.Sheet, res *style.Resolver, l *layout.Layout, used map[string]*style.Record) {
	anchors := make(map[layout.Coord]sheet.Merge, len(l.Merges))
	for _, m := range l.Merges {
		anchors[layout.Coord{Row: m.StartRow, Col: m.StartCol}] = m
	}
	defaultKey := style.Key(style.Descriptor{})

	fmt.Fprintf(buf, "<table class=\"excel-table\" style=\"width: %.0fpx;\">\n", l.Width)
	buf.WriteString("<colgroup>\n")
	for _, w := range l.ColWidths {
		fmt.Fprintf(buf, "<col style=\"width: %.0fpx;\">\n", w)
	}
	buf.WriteString("</colgroup>\n")

	rng := l.Range
	for row := rng.StartRow; row <= rng.EndRow; row++ {
		fmt.Fprintf(buf, "<tr style=\"height: %.0fpx;\">\n", l.RowHeights[row-rng.StartRow])
		for col := rng.StartCol; col <= rng.EndCol; col++ {
			if _, ok := l.Rect(row, col); !ok {
				continue // covered by a merge
			}

			var rec *style.Record
			cell, ok := s.CellAt(row, col)
			if ok {
				rec = res.Resolve(s.Descriptor(cell))
			} else {
				rec = res.Resolve(style.Descriptor{})
			}

			class := fmt.Sprintf("cell-%d-%d", row-rng.StartRow, col-rng.StartCol)
			if rec.Key != defaultKey {
				used[rec.Key] = rec
				class += " " + recordClass(rec)
			}

			fmt.Fprintf(buf, "<td class=%q", class)
			if m, merged := anchors[layout.Coord{Row: row, Col: col}]; merged {
				if n := m.Cols(); n > 1 {
					fmt.Fprintf(buf, " colspan=\"%d\"", n)
				}
				if n := m.Rows(); n > 1 {
					fmt.Fprintf(buf, " rowspan=\"%d\"", n)
				}
			}
			buf.WriteString(">")
			buf.WriteString(html.EscapeString(formatValue(cell.Value)))
			buf.WriteString("</td>\n")
		}
		buf.WriteString("</tr>\n")
	}
	buf.WriteString("</table>\n")
}

// formatValue turns a cell value into display text. Number cells honor
// the common "0.00" and "0%" format hints; everything else falls back to
// the display text captured at load time.
func formatValue(v sheet.Value) string {
	switch v.Kind {
	case sheet.KindNumber:
		if strings.Contains(v.NumberFormat, "0.00") {
			return strconv.FormatFloat(v.Number, 'f', 2, 64)
		}
		if strings.Contains(v.NumberFormat, "0%") {
			return strconv.FormatFloat(v.Number*100, 'f', 0, 64) + "%"
		}
		if v.Text != "" {
			return v.Text
		}
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case sheet.KindBool:
		if v.Text != "" {
			return v.Text
		}
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case sheet.KindTime:
		if v.Text != "" {
			return v.Text
		}
		return v.Time.Format("2006-01-02 15:04:05")
	default:
		return v.Text
	}
}
