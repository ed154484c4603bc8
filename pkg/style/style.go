// Package style resolves raw cell style descriptors into canonical,
// deduplicated style records.
//
// The reader hands the core an opaque Descriptor per distinct cell style.
// Resolve maps each descriptor to exactly one immutable Record, keyed by a
// content hash of the descriptor, so identical source styles share a single
// record by identity. Resolution is pure and defensive: out-of-range values
// are clamped and unrecognized descriptor shapes map to explicit defaults,
// never to an error. Malformed style data must not abort a conversion.
package style

import (
	"encoding/json"
	"strings"

	"github.com/sheetshot/sheetshot/pkg/cache"
)

// FamilyClass selects the character weight table used for width estimation.
// It is the only part of a style the layout engine consumes.
type FamilyClass int

const (
	// FamilyProportional is the default weight table.
	FamilyProportional FamilyClass = iota
	// FamilyMonospace uses uniform per-character weights.
	FamilyMonospace
)

// HAlign is a resolved horizontal alignment.
type HAlign int

const (
	HAlignDefault HAlign = iota
	HAlignLeft
	HAlignCenter
	HAlignRight
	HAlignJustify
)

// VAlign is a resolved vertical alignment.
type VAlign int

const (
	VAlignDefault VAlign = iota
	VAlignTop
	VAlignMiddle
	VAlignBottom
)

// Side describes one resolved border edge. An empty Style means no border.
type Side struct {
	Style string // CSS line style: solid, dashed, dotted, double
	Color string // #RRGGBB
}

// BorderSide is the raw form of one border edge as supplied by the reader.
type BorderSide struct {
	Style string `json:"style,omitempty"` // source style name, e.g. "thin", "dashed"
	Color string `json:"color,omitempty"`
}

// Descriptor is the raw style shape handed over by the sheet reader.
// It is stable-keyed: two descriptors with equal fields always resolve to
// the same record. Field order matters for the content hash and must not
// be reordered.
type Descriptor struct {
	FontName  string  `json:"font_name,omitempty"`
	FontSize  float64 `json:"font_size,omitempty"`
	Bold      bool    `json:"bold,omitempty"`
	Italic    bool    `json:"italic,omitempty"`
	Underline bool    `json:"underline,omitempty"`
	FontColor string  `json:"font_color,omitempty"`
	FillColor string  `json:"fill_color,omitempty"`

	BorderLeft   BorderSide `json:"border_left,omitempty"`
	BorderRight  BorderSide `json:"border_right,omitempty"`
	BorderTop    BorderSide `json:"border_top,omitempty"`
	BorderBottom BorderSide `json:"border_bottom,omitempty"`

	HAlign string `json:"h_align,omitempty"`
	VAlign string `json:"v_align,omitempty"`
	Wrap   bool   `json:"wrap,omitempty"`
}

// Record is the canonical resolved form of a Descriptor. Records are
// immutable once created and shared across all cells with an equal
// descriptor.
type Record struct {
	Key string // content hash of the source descriptor

	FontFamily string // CSS font family name
	Family     FamilyClass
	Size       float64 // px
	Bold       bool
	Italic     bool
	Underline  bool
	Wrap       bool

	HAlign HAlign
	VAlign VAlign

	Foreground string // #RRGGBB
	Background string // #RRGGBB, empty for none

	Left   Side
	Right  Side
	Top    Side
	Bottom Side
}

const (
	defaultFontSize = 16.0
	minFontSize     = 8.0
	maxFontSize     = 72.0

	defaultForeground = "#000000"
)

// Resolver deduplicates style resolution within one conversion job.
// It is not safe for concurrent use; each job owns its resolver and
// discards it when the render stage has consumed the records.
type Resolver struct {
	records map[string]*Record
}

// NewResolver creates an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{records: make(map[string]*Record)}
}

// Resolve maps a descriptor to its canonical record. Identical descriptors
// return the identical *Record.
func (r *Resolver) Resolve(d Descriptor) *Record {
	key := Key(d)
	if rec, ok := r.records[key]; ok {
		return rec
	}
	rec := resolve(key, d)
	r.records[key] = rec
	return rec
}

// Len returns the number of distinct records resolved so far.
func (r *Resolver) Len() int {
	return len(r.records)
}

// Key computes the content-addressed key for a descriptor.
func Key(d Descriptor) string {
	data, _ := json.Marshal(d)
	return cache.Hash(data)
}

func resolve(key string, d Descriptor) *Record {
	rec := &Record{
		Key:        key,
		FontFamily: d.FontName,
		Family:     classifyFamily(d.FontName),
		Size:       clampSize(d.FontSize),
		Bold:       d.Bold,
		Italic:     d.Italic,
		Underline:  d.Underline,
		Wrap:       d.Wrap,
		HAlign:     parseHAlign(d.HAlign),
		VAlign:     parseVAlign(d.VAlign),
		Foreground: NormalizeColor(d.FontColor, defaultForeground),
		Background: NormalizeColor(d.FillColor, ""),
		Left:       resolveSide(d.BorderLeft),
		Right:      resolveSide(d.BorderRight),
		Top:        resolveSide(d.BorderTop),
		Bottom:     resolveSide(d.BorderBottom),
	}
	return rec
}

func clampSize(size float64) float64 {
	switch {
	case size <= 0:
		return defaultFontSize
	case size < minFontSize:
		return minFontSize
	case size > maxFontSize:
		return maxFontSize
	default:
		return size
	}
}

var monospaceNames = []string{"mono", "courier", "consolas", "menlo"}

func classifyFamily(name string) FamilyClass {
	lower := strings.ToLower(name)
	for _, m := range monospaceNames {
		if strings.Contains(lower, m) {
			return FamilyMonospace
		}
	}
	return FamilyProportional
}

func parseHAlign(s string) HAlign {
	switch strings.ToLower(s) {
	case "left":
		return HAlignLeft
	case "center", "centercontinuous":
		return HAlignCenter
	case "right":
		return HAlignRight
	case "justify":
		return HAlignJustify
	default:
		return HAlignDefault
	}
}

func parseVAlign(s string) VAlign {
	switch strings.ToLower(s) {
	case "top":
		return VAlignTop
	case "center", "middle":
		return VAlignMiddle
	case "bottom":
		return VAlignBottom
	default:
		return VAlignDefault
	}
}

// Source border style names grouped by the CSS line style they map to.
var borderLineStyles = map[string]string{
	"thin":             "solid",
	"medium":           "solid",
	"thick":            "solid",
	"hair":             "solid",
	"dashed":           "dashed",
	"mediumdashed":     "dashed",
	"dashdot":          "dashed",
	"mediumdashdot":    "dashed",
	"dashdotdot":       "dashed",
	"mediumdashdotdot": "dashed",
	"slantdashdot":     "dashed",
	"dotted":           "dotted",
	"double":           "double",
}

func resolveSide(b BorderSide) Side {
	if b.Style == "" {
		return Side{}
	}
	line, ok := borderLineStyles[strings.ToLower(b.Style)]
	if !ok {
		line = "solid"
	}
	return Side{Style: line, Color: NormalizeColor(b.Color, defaultForeground)}
}

// NormalizeColor converts a raw source color into a CSS #RRGGBB value.
// Accepted shapes: "#RRGGBB", bare "RRGGBB", and ARGB "AARRGGBB" (alpha
// dropped). Theme and indexed palette references ("theme_3", "indexed_64")
// and anything unrecognized fall back to the given default; an empty
// fallback means "no color".
func NormalizeColor(raw, fallback string) string {
	if raw == "" {
		return fallback
	}
	s := strings.ToUpper(strings.TrimPrefix(raw, "#"))
	switch {
	case len(s) == 6 && isHex(s):
		return "#" + s
	case len(s) == 8 && isHex(s):
		return "#" + s[2:]
	default:
		return fallback
	}
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
