package layout

// Coord addresses one cell by absolute 0-based sheet coordinates.
type Coord struct {
	Row int
	Col int
}

// Rect is a single rectangular element of the resolved layout.
// Coordinates are pixels in screen orientation (y grows downward).
type Rect struct {
	Left, Right float64
	Top, Bottom float64
}

// Width returns the horizontal span of the rect.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns the vertical span of the rect.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// CenterX returns the horizontal center point of the rect.
func (r Rect) CenterX() float64 { return (r.Left + r.Right) / 2 }

// CenterY returns the vertical center point of the rect.
func (r Rect) CenterY() float64 { return (r.Top + r.Bottom) / 2 }
