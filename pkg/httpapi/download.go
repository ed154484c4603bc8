package httpapi

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sheetshot/sheetshot/pkg/artifact"
	"github.com/sheetshot/sheetshot/pkg/errors"
	"github.com/sheetshot/sheetshot/pkg/task"
)

// handleDownload streams a finished task's output. A single artifact is
// served with its own content type; several are bundled into a zip.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	t, err := s.Orchestrator.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !t.Status.Terminal() {
		writeError(w, errors.New(errors.ErrCodeConfig, "conversion is still running (progress %d%%)", t.Progress))
		return
	}

	var refs []artifact.Ref
	for _, j := range t.Jobs {
		if j.Status == task.StatusCompleted && j.Artifact != nil {
			refs = append(refs, *j.Artifact)
		}
	}
	if len(refs) == 0 {
		writeError(w, errors.New(errors.ErrCodeFileNotFound, "task %s produced no artifacts", id))
		return
	}

	if len(refs) == 1 {
		s.serveArtifact(w, r, refs[0])
		return
	}
	s.serveZip(w, r, id, refs)
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, ref artifact.Ref) {
	rc, err := s.Orchestrator.Artifacts.Open(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", ref.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ref.Name))
	if ref.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(ref.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.Logger.Warn("download interrupted", "artifact", ref.Name, "error", err)
	}
}

// serveZip streams the artifacts as a zip archive. Failures after the
// first byte can only truncate the stream, so they are logged, not
// reported.
func (s *Server) serveZip(w http.ResponseWriter, r *http.Request, taskID string, refs []artifact.Ref) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", taskID+".zip"))

	zw := zip.NewWriter(w)
	for _, ref := range refs {
		rc, err := s.Orchestrator.Artifacts.Open(r.Context(), ref)
		if err != nil {
			s.Logger.Warn("skipping artifact in archive", "artifact", ref.Name, "error", err)
			continue
		}
		f, err := zw.Create(ref.Name)
		if err == nil {
			_, err = io.Copy(f, rc)
		}
		rc.Close()
		if err != nil {
			s.Logger.Warn("archive write failed", "artifact", ref.Name, "error", err)
			_ = zw.Close()
			return
		}
	}
	if err := zw.Close(); err != nil {
		s.Logger.Warn("archive close failed", "task", taskID, "error", err)
	}
}
