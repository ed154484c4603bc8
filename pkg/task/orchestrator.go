package task

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/sheetshot/sheetshot/pkg/artifact"
	"github.com/sheetshot/sheetshot/pkg/errors"
	"github.com/sheetshot/sheetshot/pkg/observability"
	"github.com/sheetshot/sheetshot/pkg/pipeline"
	"github.com/sheetshot/sheetshot/pkg/sheet"
)

// errSkip aborts a Store.Update mutate function without recording an
// error. Used when the record moved on while this goroutine was
// waiting, e.g. the task was cancelled before a job was admitted.
var errSkip = stderrors.New("skip update")

// Orchestrator expands conversion requests into per-sheet jobs, runs
// them through a shared pipeline Runner, and tracks their state in a
// Store. Submit returns as soon as the task record exists; everything
// else happens on background goroutines.
type Orchestrator struct {
	Store     Store
	Runner    *pipeline.Runner
	Artifacts artifact.Store
	Logger    *log.Logger

	// Attempts bounds screenshot retries per job; zero uses the
	// pipeline default.
	Attempts int

	// AdmissionTimeout bounds each job's wait for a capture slot.
	// Zero waits indefinitely.
	AdmissionTimeout time.Duration

	wg      sync.WaitGroup
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewOrchestrator creates an Orchestrator. Nil arguments fall back to
// sensible defaults:
//   - store: an in-memory store
//   - runner: a default pipeline.Runner (HTML output only, since no
//     rasterizer is attached)
//   - artifacts: an in-memory artifact store
//   - logger: the default logger
func NewOrchestrator(store Store, runner *pipeline.Runner, artifacts artifact.Store, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if runner == nil {
		runner = pipeline.NewRunner(nil, nil, nil, 0, logger)
	}
	if artifacts == nil {
		artifacts = artifact.NewMemoryStore()
	}
	return &Orchestrator{
		Store:     store,
		Runner:    runner,
		Artifacts: artifacts,
		Logger:    logger,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Submit validates the request, creates the task record, and starts
// the conversion in the background. It returns the task id
// immediately; poll Status to follow progress.
func (o *Orchestrator) Submit(ctx context.Context, req *Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	id := uuid.New().String()
	t := &Task{
		ID:        id,
		Status:    StatusPending,
		Message:   "queued",
		Output:    req.Output,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.Store.Create(ctx, t); err != nil {
		return "", err
	}

	// Conversion outlives the submitting request's context.
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.mu.Lock()
	o.cancels[id] = cancel
	o.mu.Unlock()

	o.Logger.Info("task submitted", "task", id, "files", len(req.Files))

	o.wg.Add(1)
	go o.run(taskCtx, id, req)

	return id, nil
}

// Status returns a snapshot of the task record.
func (o *Orchestrator) Status(ctx context.Context, id string) (*Task, error) {
	return o.Store.Get(ctx, id)
}

// List returns snapshots of all task records, newest first.
func (o *Orchestrator) List(ctx context.Context) ([]*Task, error) {
	return o.Store.List(ctx)
}

// Cancel stops a task. Jobs still pending are marked failed
// immediately; jobs already running stop at the next stage boundary. A
// capture already in flight runs to completion so the browser is never
// abandoned mid-screenshot.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	_, err := o.Store.Update(ctx, id, func(t *Task) error {
		if t.Status.Terminal() {
			return nil
		}
		now := time.Now().UTC()
		if len(t.Jobs) == 0 {
			// Cancelled before expansion wrote the job list.
			t.Status = StatusFailed
			t.Message = "cancelled"
			t.CompletedAt = &now
			return nil
		}
		for i := range t.Jobs {
			j := &t.Jobs[i]
			if j.Status == StatusPending {
				j.Status = StatusFailed
				j.Error = "cancelled before conversion started"
				j.ErrorCode = string(errors.ErrCodeCancelled)
				j.FinishedAt = &now
			}
		}
		t.refresh(now)
		return nil
	})
	if err != nil {
		return err
	}

	o.mu.Lock()
	cancel := o.cancels[id]
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	o.Logger.Info("task cancelled", "task", id)
	return nil
}

// Delete cancels the task, removes its record, and removes its
// artifacts. Outcome updates from jobs still draining are dropped once
// the record is gone.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	if err := o.Cancel(ctx, id); err != nil {
		return err
	}
	if err := o.Store.Delete(ctx, id); err != nil {
		return err
	}
	if err := o.Artifacts.RemoveTask(ctx, id); err != nil {
		o.Logger.Warn("failed to remove artifacts", "task", id, "error", err)
	}
	o.Logger.Info("task deleted", "task", id)
	return nil
}

// Shutdown cancels every running task and waits for their goroutines
// to drain, bounded by ctx.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(o.cancels))
	for _, cancel := range o.cancels {
		cancels = append(cancels, cancel)
	}
	o.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(errors.ErrCodeCancelled, ctx.Err(), "shutdown interrupted with tasks still running")
	}
}

// run drives one task from expansion to its terminal state.
func (o *Orchestrator) run(ctx context.Context, taskID string, req *Request) {
	defer o.wg.Done()
	defer o.release(taskID)

	start := time.Now()
	// Bookkeeping writes must survive task cancellation.
	upCtx := context.WithoutCancel(ctx)

	jobs := o.expand(req)

	t, err := o.Store.Update(upCtx, taskID, func(t *Task) error {
		if t.Status.Terminal() {
			return errSkip // cancelled before expansion finished
		}
		t.Jobs = jobs
		if len(jobs) == 0 {
			now := time.Now().UTC()
			t.Status = StatusFailed
			t.Message = "no convertible sheets found"
			t.CompletedAt = &now
			return nil
		}
		t.refresh(time.Now().UTC())
		return nil
	})
	if err != nil {
		if !stderrors.Is(err, errSkip) {
			o.Logger.Error("failed to record jobs", "task", taskID, "error", err)
		}
		return
	}

	observability.Task().OnTaskSubmit(upCtx, taskID, len(jobs))

	if t.Status.Terminal() {
		o.finish(upCtx, taskID, t, start)
		return
	}

	var wg sync.WaitGroup
	for _, j := range t.Jobs {
		if j.Status != StatusPending {
			continue
		}
		wg.Add(1)
		go func(jobID string) {
			defer wg.Done()
			o.runJob(ctx, upCtx, taskID, jobID)
		}(j.ID)
	}
	wg.Wait()

	final, err := o.Store.Get(upCtx, taskID)
	if err != nil {
		// Deleted while jobs were draining.
		return
	}
	o.finish(upCtx, taskID, final, start)
}

// expand resolves the request's files into one job per sheet, in
// request order. A file that cannot be opened contributes a single
// failed job instead of failing the batch.
func (o *Orchestrator) expand(req *Request) []Job {
	var jobs []Job
	seq := 0
	next := func() string {
		seq++
		return fmt.Sprintf("j%02d", seq)
	}

	for _, f := range req.Files {
		names := f.Sheets
		if len(names) == 0 {
			var err error
			names, err = sheetNames(f.Path)
			if err != nil {
				now := time.Now().UTC()
				jobs = append(jobs, Job{
					ID:         next(),
					Workbook:   f.Path,
					Source:     f.Name,
					Status:     StatusFailed,
					Error:      errors.UserMessage(err),
					ErrorCode:  string(errors.GetCode(err)),
					FinishedAt: &now,
				})
				continue
			}
		}
		for _, name := range names {
			jobs = append(jobs, Job{
				ID:       next(),
				Workbook: f.Path,
				Source:   f.Name,
				Sheet:    name,
				Status:   StatusPending,
			})
		}
	}
	return jobs
}

func sheetNames(path string) ([]string, error) {
	wb, err := sheet.OpenWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	names := wb.SheetNames()
	if len(names) == 0 {
		return nil, errors.New(errors.ErrCodeLoad, "workbook %s has no sheets", path)
	}
	return names, nil
}

// runJob converts one sheet and records the outcome. Admission flips
// the job from pending to running atomically, so a concurrent Cancel
// either fails the job before this point or lets it run.
func (o *Orchestrator) runJob(ctx, upCtx context.Context, taskID, jobID string) {
	var job Job
	var out Output
	_, err := o.Store.Update(upCtx, taskID, func(t *Task) error {
		j := t.Job(jobID)
		if j == nil || j.Status != StatusPending {
			return errSkip
		}
		now := time.Now().UTC()
		j.Status = StatusRunning
		j.StartedAt = &now
		job = *j
		out = t.Output
		return nil
	})
	if err != nil {
		if !stderrors.Is(err, errSkip) {
			o.Logger.Error("failed to admit job", "task", taskID, "job", jobID, "error", err)
		}
		return
	}

	logger := o.Logger.With("task", taskID, "job", jobID, "sheet", job.Sheet)
	opts := pipeline.Options{
		Workbook:         job.Workbook,
		Sheet:            job.Sheet,
		Range:            out.Range,
		Type:             out.Type,
		Format:           out.Format,
		Quality:          out.Quality,
		Width:            out.Width,
		Height:           out.Height,
		Attempts:         o.Attempts,
		AdmissionTimeout: o.AdmissionTimeout,
		NoCache:          out.NoCache,
		Logger:           logger,
	}

	start := time.Now()
	res, runErr := o.Runner.Execute(ctx, opts)

	var ref *artifact.Ref
	if runErr == nil {
		name := fmt.Sprintf("%s_%s.%s", shortID(taskID), artifact.SafeName(job.Sheet), opts.Extension())
		stored, perr := o.Artifacts.Put(upCtx, taskID, jobID, name, res.Artifact)
		if perr != nil {
			runErr = perr
		} else {
			ref = &stored
		}
	}

	_, err = o.Store.Update(upCtx, taskID, func(t *Task) error {
		j := t.Job(jobID)
		if j == nil || j.Status != StatusRunning {
			return errSkip
		}
		now := time.Now().UTC()
		if runErr != nil {
			j.Status = StatusFailed
			j.Error = errors.UserMessage(runErr)
			j.ErrorCode = string(errors.GetCode(runErr))
		} else {
			j.Status = StatusCompleted
			j.Artifact = ref
		}
		j.FinishedAt = &now
		t.refresh(now)
		return nil
	})
	if err != nil && !stderrors.Is(err, errSkip) {
		// Task deleted while the job was running.
		o.Logger.Warn("failed to record job outcome", "task", taskID, "job", jobID, "error", err)
	}

	duration := time.Since(start)
	observability.Task().OnJobComplete(upCtx, taskID, jobID, job.Sheet, duration, runErr)
	if runErr != nil {
		logger.Error("sheet conversion failed", "error", runErr, "duration", duration)
		return
	}
	logger.Info("sheet converted", "attempts", res.Stats.Attempts, "cached", res.CacheInfo.ArtifactHit, "duration", duration)
}

// finish logs the terminal state and fires the task completion hook.
func (o *Orchestrator) finish(ctx context.Context, taskID string, t *Task, start time.Time) {
	completed, failed := t.Counts()
	duration := time.Since(start)
	o.Logger.Info("task finished",
		"task", taskID,
		"status", string(t.Status),
		"completed", completed,
		"failed", failed,
		"duration", duration)
	observability.Task().OnTaskComplete(ctx, taskID, completed, failed, duration)
}

// release frees the task's cancel slot once its goroutine exits.
func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	cancel := o.cancels[id]
	delete(o.cancels, id)
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// shortID trims a task id to a recognizable filename prefix.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
