package errors

import (
	"path/filepath"
	"strings"
	"unicode"
)

// Output formats accepted by the conversion pipeline. "jpg" is an alias
// for "jpeg" and is normalized before rasterization.
var validFormats = map[string]bool{
	"png":  true,
	"jpeg": true,
	"jpg":  true,
}

// Workbook file extensions accepted at upload.
var validExtensions = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xls":  true,
}

// ValidateFormat validates an output image format.
func ValidateFormat(format string) error {
	if format == "" {
		return New(ErrCodeConfig, "output format cannot be empty")
	}
	if !validFormats[strings.ToLower(format)] {
		return New(ErrCodeConfig, "unsupported output format: %q (expected png, jpeg, or jpg)", format)
	}
	return nil
}

// ValidateOutputType validates the artifact type of a conversion request.
// "image" produces rasterized bytes, "html" stops after the render stage.
func ValidateOutputType(t string) error {
	if t != "image" && t != "html" {
		return New(ErrCodeConfig, "output type must be \"image\" or \"html\", got %q", t)
	}
	return nil
}

// ValidateQuality validates an image quality value. Quality applies to
// JPEG encoding only but is range-checked for every request.
func ValidateQuality(quality int) error {
	if quality < 1 || quality > 100 {
		return New(ErrCodeConfig, "quality must be between 1 and 100, got %d", quality)
	}
	return nil
}

// ValidateDimension validates a forced width or height override.
// Zero means "not forced"; negative values are rejected.
func ValidateDimension(name string, px int) error {
	if px < 0 {
		return New(ErrCodeConfig, "%s cannot be negative, got %d", name, px)
	}
	return nil
}

// ValidateWorkbookFilename validates an uploaded workbook filename.
// It ensures the filename is a simple basename with a supported
// spreadsheet extension and no path components.
func ValidateWorkbookFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeConfig, "filename cannot be empty")
	}

	// Must be a simple filename, not a path
	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeConfig, "filename cannot contain path separators")
	}

	if strings.HasPrefix(filename, ".") {
		return New(ErrCodeConfig, "filename cannot be a hidden file")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !validExtensions[ext] {
		return New(ErrCodeConfig, "unsupported file extension: %q (expected .xlsx, .xlsm, or .xls)", ext)
	}

	return nil
}

// ValidateSheetName validates a sheet selector for safety and correctness.
// Sheet names flow into artifact filenames, so the validation rules are
// intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path traversal sequences
//   - Maximum length of 256 characters
func ValidateSheetName(name string) error {
	if name == "" {
		return New(ErrCodeConfig, "sheet name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeConfig, "sheet name too long (max 256 characters)")
	}

	// Check for control characters and null bytes
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeConfig, "sheet name contains invalid control characters")
		}
	}

	// Check for path traversal patterns
	dangerousPatterns := []string{
		"..",   // Parent directory
		"/",    // Path separator
		"\\",   // Backslash (Windows path)
		"\x00", // Null byte
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeConfig, "sheet name contains invalid characters: %q", pattern)
		}
	}

	return nil
}
