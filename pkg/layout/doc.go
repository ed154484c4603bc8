// Package layout resolves a sheet model into concrete pixel geometry.
//
// Resolve turns cell content, style records, size hints, and merged-region
// declarations into final column widths, row heights, and per-cell absolute
// rectangles a renderer can consume without ambiguity.
//
// Width demands use a character-class weighting model, not real glyph
// measurement: each character of a cell's longest line contributes a fixed
// per-class pixel weight, plus cell padding. Column width is the maximum of
// the explicit hint and all non-merged cell demands; merged regions then
// grow their spanned columns proportionally when the anchor's demand exceeds
// the columns' combined width. Forced output dimensions rescale all columns
// and rows proportionally, never individually.
//
// Resolution is deterministic: the same sheet, range, and overrides always
// produce the identical layout.
package layout
