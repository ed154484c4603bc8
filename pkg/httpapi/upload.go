package httpapi

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sheetshot/sheetshot/pkg/artifact"
	"github.com/sheetshot/sheetshot/pkg/errors"
	"github.com/sheetshot/sheetshot/pkg/task"
)

// handleUpload accepts one or more workbooks under the repeated "file"
// field plus shared output parameters, saves them to the upload
// directory, and submits a conversion task.
//
// Form fields: sheet_name, range_start, range_end, output_type
// (image|html), output_format (png|jpeg|jpg), quality, width, height,
// no_cache.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, errors.New(errors.ErrCodeConfig, "invalid upload (limit %d MiB): %v", s.maxUpload>>20, err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, errors.New(errors.ErrCodeConfig, "missing file field"))
		return
	}

	out, err := outputFromForm(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var sheets []string
	if name := strings.TrimSpace(r.FormValue("sheet_name")); name != "" {
		sheets = []string{name}
	}

	// One upload batch shares a prefix so concurrent uploads of files
	// with the same name cannot collide.
	batch := uuid.New().String()[:8]
	var files []task.File
	var saved []string
	fail := func(err error) {
		s.removeUploads(saved)
		writeError(w, err)
	}

	for i, hdr := range headers {
		if err := errors.ValidateWorkbookFilename(hdr.Filename); err != nil {
			fail(err)
			return
		}
		path, err := s.saveUpload(hdr, fmt.Sprintf("%s_%02d_%s", batch, i+1, artifact.SafeName(hdr.Filename)))
		if err != nil {
			fail(err)
			return
		}
		saved = append(saved, path)
		files = append(files, task.File{Path: path, Name: hdr.Filename, Sheets: sheets})
	}

	id, err := s.Orchestrator.Submit(r.Context(), &task.Request{Files: files, Output: out})
	if err != nil {
		fail(err)
		return
	}

	t, err := s.Orchestrator.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id":    id,
		"status":     t.Status,
		"message":    t.Message,
		"created_at": t.CreatedAt,
	})
}

// saveUpload copies one multipart part into the upload directory.
func (s *Server) saveUpload(hdr *multipart.FileHeader, name string) (string, error) {
	src, err := hdr.Open()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "opening upload %s", hdr.Filename)
	}
	defer src.Close()

	path := filepath.Join(s.uploadDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "saving upload %s", hdr.Filename)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", errors.Wrap(errors.ErrCodeInternal, err, "saving upload %s", hdr.Filename)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", errors.Wrap(errors.ErrCodeInternal, err, "saving upload %s", hdr.Filename)
	}
	return path, nil
}

// outputFromForm reads the shared output parameters. Full validation
// and defaulting happen in Request.Validate; this only parses.
func outputFromForm(r *http.Request) (task.Output, error) {
	out := task.Output{
		Type:    strings.ToLower(strings.TrimSpace(r.FormValue("output_type"))),
		Format:  strings.ToLower(strings.TrimSpace(r.FormValue("output_format"))),
		NoCache: formBool(r, "no_cache"),
	}

	var err error
	if out.Quality, err = formInt(r, "quality"); err != nil {
		return out, err
	}
	if out.Width, err = formInt(r, "width"); err != nil {
		return out, err
	}
	if out.Height, err = formInt(r, "height"); err != nil {
		return out, err
	}

	start := strings.TrimSpace(r.FormValue("range_start"))
	end := strings.TrimSpace(r.FormValue("range_end"))
	switch {
	case start != "" && end != "":
		out.Range = start + ":" + end
	case start != "":
		out.Range = start
	case end != "":
		return out, errors.New(errors.ErrCodeConfig, "range_end requires range_start")
	}
	return out, nil
}

func formInt(r *http.Request, field string) (int, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(errors.ErrCodeConfig, "%s must be an integer, got %q", field, v)
	}
	return n, nil
}

func formBool(r *http.Request, field string) bool {
	switch strings.ToLower(strings.TrimSpace(r.FormValue(field))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// taskUploads returns the stored upload paths a task's jobs reference,
// restricted to the server's upload directory.
func (s *Server) taskUploads(ctx context.Context, id string) []string {
	t, err := s.Orchestrator.Status(ctx, id)
	if err != nil {
		return nil
	}

	root := filepath.Clean(s.uploadDir) + string(os.PathSeparator)
	seen := make(map[string]bool)
	var paths []string
	for _, j := range t.Jobs {
		p := filepath.Clean(j.Workbook)
		if !strings.HasPrefix(p, root) || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths
}

func (s *Server) removeUploads(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.Logger.Warn("failed to remove upload", "path", p, "error", err)
		}
	}
}
