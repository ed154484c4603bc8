// Package pipeline converts a single workbook sheet into an artifact.
//
// A conversion runs in stages: load the sheet, resolve its styles,
// resolve the layout geometry, render an HTML document, and (for image
// output) rasterize that document in a headless browser. The Runner
// caches finished artifacts keyed by workbook content, so repeated
// conversions of an unchanged file skip every stage.
package pipeline

import (
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sheetshot/sheetshot/pkg/cache"
	"github.com/sheetshot/sheetshot/pkg/errors"
	"github.com/sheetshot/sheetshot/pkg/layout"
	"github.com/sheetshot/sheetshot/pkg/sheet"
)

// Output types.
const (
	TypeImage = "image"
	TypeHTML  = "html"
)

// Image formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatJPG  = "jpg"
)

// Defaults applied by ValidateAndSetDefaults.
const (
	DefaultQuality  = 95
	DefaultAttempts = 3
)

// Options configures a single sheet conversion.
type Options struct {
	// Source options.
	Workbook string `json:"workbook"`        // path to the workbook file
	Sheet    string `json:"sheet"`           // sheet name within the workbook
	Range    string `json:"range,omitempty"` // optional A1:F20 window

	// Output options.
	Type    string `json:"type,omitempty"`    // image or html
	Format  string `json:"format,omitempty"`  // png, jpeg, or jpg
	Quality int    `json:"quality,omitempty"` // JPEG quality, 1-100
	Width   int    `json:"width,omitempty"`   // forced sheet width in px, 0 = natural
	Height  int    `json:"height,omitempty"`  // forced sheet height in px, 0 = natural

	// Capture options.
	Attempts         int           `json:"attempts,omitempty"` // screenshot attempts before giving up
	AdmissionTimeout time.Duration `json:"-"`                  // max wait for a capture slot, 0 = wait forever

	// NoCache bypasses artifact lookup and storage.
	NoCache bool `json:"no_cache,omitempty"`

	// Logger receives progress output. Defaults to a silent logger.
	Logger *log.Logger `json:"-"`

	// Internal state.
	validated bool `json:"-"`
}

// ValidateAndSetDefaults checks the options and fills in defaults.
// It is idempotent; repeated calls after a successful validation are no-ops.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}

	if strings.TrimSpace(o.Workbook) == "" {
		return errors.New(errors.ErrCodeConfig, "workbook path is required")
	}
	if strings.TrimSpace(o.Sheet) == "" {
		return errors.New(errors.ErrCodeConfig, "sheet name is required")
	}

	if o.Range != "" {
		if _, err := sheet.ParseRange(o.Range); err != nil {
			return err
		}
	}

	if o.Type == "" {
		o.Type = TypeImage
	}
	if err := errors.ValidateOutputType(o.Type); err != nil {
		return err
	}

	if o.Format == "" {
		o.Format = FormatPNG
	}
	if err := errors.ValidateFormat(o.Format); err != nil {
		return err
	}

	if o.Quality == 0 {
		o.Quality = DefaultQuality
	}
	if err := errors.ValidateQuality(o.Quality); err != nil {
		return err
	}

	if err := errors.ValidateDimension("width", o.Width); err != nil {
		return err
	}
	if err := errors.ValidateDimension("height", o.Height); err != nil {
		return err
	}

	if o.Attempts == 0 {
		o.Attempts = DefaultAttempts
	}
	if o.Attempts < 0 {
		return errors.New(errors.ErrCodeConfig, "attempts must be positive, got %d", o.Attempts)
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	o.validated = true
	return nil
}

// Extension returns the file extension for the configured output.
func (o *Options) Extension() string {
	if o.Type == TypeHTML {
		return "html"
	}
	return strings.ToLower(o.Format)
}

// ArtifactKeyOpts returns the cache key parameters derived from the options.
func (o *Options) ArtifactKeyOpts() cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Sheet:   o.Sheet,
		Range:   o.Range,
		Type:    o.Type,
		Format:  o.Format,
		Quality: o.Quality,
		Width:   o.Width,
		Height:  o.Height,
	}
}

// Stats captures timing and size information for a conversion.
type Stats struct {
	Rows   int `json:"rows"`
	Cols   int `json:"cols"`
	Cells  int `json:"cells"`
	Styles int `json:"styles"`

	LoadTime   time.Duration `json:"load_time"`
	StyleTime  time.Duration `json:"style_time"`
	LayoutTime time.Duration `json:"layout_time"`
	RenderTime time.Duration `json:"render_time"`
	RasterTime time.Duration `json:"raster_time"`

	// Attempts is the number of screenshot attempts actually made.
	Attempts int `json:"attempts,omitempty"`
}

// CacheInfo reports whether the artifact came from cache.
type CacheInfo struct {
	ArtifactHit bool `json:"artifact_hit"`
}

// Result contains the conversion output and execution metadata.
type Result struct {
	// Sheet is the name of the converted sheet.
	Sheet string

	// Artifact holds the final output bytes (image data or HTML).
	Artifact []byte

	// HTML is the rendered document. Empty when the artifact was
	// served from cache.
	HTML string

	// Layout is the resolved geometry. Nil when the artifact was
	// served from cache.
	Layout *layout.Layout

	Stats     Stats
	CacheInfo CacheInfo
}
