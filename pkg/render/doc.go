// Package render produces the HTML document for a resolved sheet layout.
//
// # Overview
//
// The renderer is the bridge between the layout resolver and the
// rasterizer: it takes a sheet model, its deduplicated style records, and
// the resolved pixel geometry, and assembles a self-contained HTML
// document. The document carries everything inline (a <style> block with
// the base table CSS plus one rule per style record, and a single
// fixed-layout table), so the rasterizer can load it from a temp file with
// no external assets.
//
//	doc, err := render.Document(sh, resolver, lay, render.WithTitle("Q3"))
//
// # Geometry
//
// Column widths and row heights come straight from the layout resolver via
// a <colgroup> and per-row height styles. The table uses table-layout:
// fixed with border-box sizing, so the browser reproduces the resolved
// geometry exactly instead of re-measuring content. Merged regions become
// colspan/rowspan on the anchor cell; covered cells emit nothing.
//
// # Styles
//
// Cell appearance is expressed as one CSS class per deduplicated style
// record, named s-<hash prefix>. Cells additionally carry a cell-<row>-<col>
// class for addressability in tests and tooling.
package render
