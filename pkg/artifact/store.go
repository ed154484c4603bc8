// Package artifact persists finished conversion outputs and hands them
// back to the download path. Artifacts are grouped per task so deleting
// a task removes everything it produced in one call.
package artifact

import (
	"context"
	"io"
	"path"
	"strings"
)

// Ref identifies a stored artifact. Refs are embedded in job records
// and must survive JSON round trips through the task store backends.
type Ref struct {
	// Path locates the artifact inside the store (backend-specific).
	Path string `json:"path"`
	// Name is the client-facing filename, e.g. "3f2a_Sheet1.png".
	Name string `json:"name"`
	// ContentType is the MIME type served on download.
	ContentType string `json:"content_type"`
	// Size is the payload size in bytes.
	Size int64 `json:"size"`
}

// Store persists conversion outputs.
type Store interface {
	// Put stores data for a job and returns the ref to embed in its
	// record. name is the client-facing filename.
	Put(ctx context.Context, taskID, jobID, name string, data []byte) (Ref, error)

	// Open streams an artifact's bytes.
	Open(ctx context.Context, ref Ref) (io.ReadCloser, error)

	// Remove deletes a single artifact. Absent artifacts are not an error.
	Remove(ctx context.Context, ref Ref) error

	// RemoveTask deletes every artifact a task produced.
	RemoveTask(ctx context.Context, taskID string) error
}

// ContentType maps an artifact filename to its MIME type.
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".html":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// SafeName replaces filesystem-hostile characters in a name component,
// keeping sheet names like "Q3/Q4 지출" usable as filenames.
func SafeName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		"\x00", "_",
	)
	cleaned := strings.TrimSpace(replacer.Replace(name))
	if cleaned == "" {
		return "sheet"
	}
	return cleaned
}
