package task

import (
	"path/filepath"
	"strings"

	"github.com/sheetshot/sheetshot/pkg/errors"
	"github.com/sheetshot/sheetshot/pkg/pipeline"
	"github.com/sheetshot/sheetshot/pkg/sheet"
)

// File names one workbook in a conversion request.
type File struct {
	// Path locates the workbook on local disk.
	Path string `json:"path"`
	// Name is the display name recorded on jobs; defaults to the base
	// name of Path.
	Name string `json:"name,omitempty"`
	// Sheets selects sheets by name. Empty converts every sheet in the
	// workbook.
	Sheets []string `json:"sheets,omitempty"`
}

// Request describes a conversion submission: the workbooks to convert
// and the output parameters shared by every job.
type Request struct {
	Files  []File `json:"files"`
	Output Output `json:"output"`
}

// Validate checks the request and fills in defaults. Output parameter
// problems reject the whole request here; per-file problems (missing or
// corrupt workbooks) surface later as failed jobs so the rest of the
// batch still converts.
func (r *Request) Validate() error {
	if len(r.Files) == 0 {
		return errors.New(errors.ErrCodeConfig, "at least one workbook is required")
	}
	for i := range r.Files {
		f := &r.Files[i]
		if strings.TrimSpace(f.Path) == "" {
			return errors.New(errors.ErrCodeConfig, "workbook path is required")
		}
		if f.Name == "" {
			f.Name = filepath.Base(f.Path)
		}
		if err := errors.ValidateWorkbookFilename(f.Name); err != nil {
			return err
		}
		for _, name := range f.Sheets {
			if err := errors.ValidateSheetName(name); err != nil {
				return err
			}
		}
	}
	return r.Output.validate()
}

// validate fills defaults and range-checks the shared output
// parameters. It mirrors pipeline.Options validation so a bad request
// is rejected before any task record exists.
func (o *Output) validate() error {
	if o.Type == "" {
		o.Type = pipeline.TypeImage
	}
	if err := errors.ValidateOutputType(o.Type); err != nil {
		return err
	}
	if o.Format == "" {
		o.Format = pipeline.FormatPNG
	}
	if err := errors.ValidateFormat(o.Format); err != nil {
		return err
	}
	if o.Quality == 0 {
		o.Quality = pipeline.DefaultQuality
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
	if o.Range != "" {
		if _, err := sheet.ParseRange(o.Range); err != nil {
			return err
		}
	}
	return nil
}
