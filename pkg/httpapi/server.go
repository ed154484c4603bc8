// Package httpapi exposes the conversion service over REST.
//
// Routes:
//
//	GET    /                  service info
//	GET    /health            liveness probe
//	POST   /upload            multipart workbook upload, starts a task
//	GET    /status/{taskID}   task status with per-sheet jobs
//	GET    /download/{taskID} artifact bytes (zip when a task has several)
//	GET    /tasks             all task records, newest first
//	DELETE /tasks/{taskID}    cancel, delete record, artifacts and upload
//
// Errors are returned as {"error": ..., "code": ...} with the HTTP
// status derived from the error code.
package httpapi

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sheetshot/sheetshot/pkg/buildinfo"
	"github.com/sheetshot/sheetshot/pkg/errors"
	"github.com/sheetshot/sheetshot/pkg/observability"
	"github.com/sheetshot/sheetshot/pkg/task"
)

// MaxUploadBytes caps the size of one upload request.
const MaxUploadBytes = 100 << 20 // 100 MiB

// DefaultUploadDir receives uploaded workbooks relative to the working
// directory.
const DefaultUploadDir = "uploads"

// Server serves the REST API in front of a task.Orchestrator. Artifact
// downloads stream from the orchestrator's artifact store.
type Server struct {
	Orchestrator *task.Orchestrator
	Logger       *log.Logger

	uploadDir string
	maxUpload int64
}

// NewServer creates a Server. A nil orchestrator falls back to an
// in-memory one (HTML output only); an empty uploadDir falls back to
// DefaultUploadDir. The upload directory is created if needed.
func NewServer(orch *task.Orchestrator, uploadDir string, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}
	if orch == nil {
		orch = task.NewOrchestrator(nil, nil, nil, logger)
	}
	if uploadDir == "" {
		uploadDir = DefaultUploadDir
	}
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "creating upload directory %s", uploadDir)
	}

	return &Server{
		Orchestrator: orch,
		Logger:       logger,
		uploadDir:    uploadDir,
		maxUpload:    MaxUploadBytes,
	}, nil
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/", s.handleInfo)
	r.Get("/health", s.handleHealth)
	r.Post("/upload", s.handleUpload)
	r.Get("/status/{taskID}", s.handleStatus)
	r.Get("/download/{taskID}", s.handleDownload)
	r.Get("/tasks", s.handleTasks)
	r.Delete("/tasks/{taskID}", s.handleDelete)

	return r
}

// ListenAndServe runs the API until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.Logger.Info("api listening", "addr", addr)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(errors.ErrCodeInternal, err, "api server failed")
		}
		return nil
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "api shutdown interrupted")
	}
	return nil
}

// observe fires the HTTP hooks and logs one line per request.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTP().OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, r.URL.Path, ww.Status(), duration)
		s.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", duration)
	})
}

// Info describes the service for the root endpoint.
type Info struct {
	Name             string   `json:"name"`
	Version          string   `json:"version"`
	Description      string   `json:"description"`
	Endpoints        []string `json:"endpoints"`
	SupportedFormats []string `json:"supported_formats"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Info{
		Name:        "sheetshot",
		Version:     buildinfo.Version,
		Description: "converts spreadsheet sheets to images over REST",
		Endpoints: []string{
			"POST /upload - upload workbooks and start a conversion",
			"GET /status/{taskID} - conversion status",
			"GET /download/{taskID} - download results",
			"GET /tasks - list all tasks",
			"DELETE /tasks/{taskID} - delete a task",
			"GET /health - liveness probe",
		},
		SupportedFormats: []string{"png", "jpeg", "jpg", "html"},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	t, err := s.Orchestrator.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.Orchestrator.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")

	// Uploaded workbooks are referenced by the job records, so collect
	// them before the record disappears.
	uploads := s.taskUploads(r.Context(), id)

	if err := s.Orchestrator.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.removeUploads(uploads)

	writeJSON(w, http.StatusOK, map[string]string{"message": "task deleted"})
}
