package raster

import "context"

const (
	// ViewportMargin is added on every side of the content when sizing
	// the capture viewport.
	ViewportMargin = 40

	// MinPageWidth and MinPageHeight floor the capture viewport so tiny
	// sheets still produce a readable page.
	MinPageWidth  = 800
	MinPageHeight = 600

	// DefaultScale is the device scale factor for high-resolution output.
	DefaultScale = 2.0

	// DefaultQuality is the JPEG encoding quality when none is given.
	DefaultQuality = 95
)

// ShotOptions controls a single capture.
type ShotOptions struct {
	// Width and Height size the viewport in CSS pixels. Zero values fall
	// back to the minimum page size.
	Width  int
	Height int

	// Format selects the encoding: "png" (default), "jpeg", or "jpg".
	Format string

	// Quality is the JPEG quality 1-100; ignored for PNG.
	Quality int

	// Scale is the device scale factor; zero means DefaultScale.
	Scale float64
}

// Screenshotter captures an HTML document as encoded image bytes.
// Implementations must be safe for concurrent use.
type Screenshotter interface {
	Screenshot(ctx context.Context, html string, opts ShotOptions) ([]byte, error)
}

// Viewport sizes the capture viewport for the given content dimensions:
// margin on every side, floored at the minimum page size.
func Viewport(contentWidth, contentHeight float64) (width, height int) {
	width = int(contentWidth) + 2*ViewportMargin
	height = int(contentHeight) + 2*ViewportMargin
	if width < MinPageWidth {
		width = MinPageWidth
	}
	if height < MinPageHeight {
		height = MinPageHeight
	}
	return width, height
}

// normalize fills option defaults in place.
func (o *ShotOptions) normalize() {
	if o.Width <= 0 {
		o.Width = MinPageWidth
	}
	if o.Height <= 0 {
		o.Height = MinPageHeight
	}
	if o.Format == "" {
		o.Format = "png"
	}
	if o.Quality <= 0 {
		o.Quality = DefaultQuality
	}
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
}
