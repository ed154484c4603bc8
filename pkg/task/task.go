// Package task orchestrates conversion tasks.
//
// A task is one accepted request: one workbook with N sheets, or a batch
// of workbooks. Submission expands the request into an ordered list of
// conversion jobs (one per sheet), runs them concurrently through the
// pipeline Runner, and folds each outcome back into the task record.
// Jobs fail independently; one corrupt workbook never aborts its
// siblings, and a task whose every job failed still ends `completed` so
// callers can tell "everything failed" from "the system crashed".
//
// Records live in a Store. The in-memory store is the default; Redis
// and MongoDB backends persist records across restarts for deployments
// that need task status to survive the process.
package task

import (
	"fmt"
	"time"

	"github.com/sheetshot/sheetshot/pkg/artifact"
)

// Status of a task or job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a record may move from s to next.
// Pending records may fail directly (cancellation before admission).
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusFailed
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Job is one sheet conversion within a task. The job list is written
// once at submission time; afterwards only status and outcome fields
// mutate, so readers always see a stable order.
type Job struct {
	ID       string `json:"id" bson:"id"`
	Workbook string `json:"workbook" bson:"workbook"` // stored source path
	Source   string `json:"source" bson:"source"`     // original filename
	Sheet    string `json:"sheet" bson:"sheet"`

	Status    Status        `json:"status" bson:"status"`
	Error     string        `json:"error,omitempty" bson:"error,omitempty"`
	ErrorCode string        `json:"error_code,omitempty" bson:"error_code,omitempty"`
	Artifact  *artifact.Ref `json:"artifact,omitempty" bson:"artifact,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
}

// Output holds the conversion options shared by every job of a task.
type Output struct {
	Range   string `json:"range,omitempty" bson:"range,omitempty"`
	Type    string `json:"type,omitempty" bson:"type,omitempty"`
	Format  string `json:"format,omitempty" bson:"format,omitempty"`
	Quality int    `json:"quality,omitempty" bson:"quality,omitempty"`
	Width   int    `json:"width,omitempty" bson:"width,omitempty"`
	Height  int    `json:"height,omitempty" bson:"height,omitempty"`
	NoCache bool   `json:"no_cache,omitempty" bson:"no_cache,omitempty"`
}

// Task is one accepted conversion request and its job outcomes.
type Task struct {
	ID       string `json:"id" bson:"_id"`
	Status   Status `json:"status" bson:"status"`
	Progress int    `json:"progress" bson:"progress"` // 0-100
	Message  string `json:"message,omitempty" bson:"message,omitempty"`

	Output Output `json:"output" bson:"output"`
	Jobs   []Job  `json:"jobs" bson:"jobs"`

	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// Job returns a pointer to the job with the given id, or nil.
func (t *Task) Job(id string) *Job {
	for i := range t.Jobs {
		if t.Jobs[i].ID == id {
			return &t.Jobs[i]
		}
	}
	return nil
}

// Counts returns the number of completed and failed jobs.
func (t *Task) Counts() (completed, failed int) {
	for _, j := range t.Jobs {
		switch j.Status {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		}
	}
	return completed, failed
}

// Clone returns a deep copy that the caller may retain and mutate.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Jobs = make([]Job, len(t.Jobs))
	copy(c.Jobs, t.Jobs)
	for i := range c.Jobs {
		if ref := c.Jobs[i].Artifact; ref != nil {
			r := *ref
			c.Jobs[i].Artifact = &r
		}
		c.Jobs[i].StartedAt = cloneTime(c.Jobs[i].StartedAt)
		c.Jobs[i].FinishedAt = cloneTime(c.Jobs[i].FinishedAt)
	}
	c.CompletedAt = cloneTime(t.CompletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// refresh recomputes progress and the task-level status from the jobs.
// Progress counts terminal jobs only, rounded down; the task turns
// completed once every job is terminal, regardless of how many failed.
// Call it inside a Store.Update mutate function.
func (t *Task) refresh(now time.Time) {
	total := len(t.Jobs)
	if total == 0 || t.Status.Terminal() {
		return
	}

	terminal := 0
	failed := 0
	for _, j := range t.Jobs {
		if j.Status.Terminal() {
			terminal++
			if j.Status == StatusFailed {
				failed++
			}
		}
	}
	t.Progress = 100 * terminal / total

	if terminal == total {
		t.Status = StatusCompleted
		t.Message = fmt.Sprintf("%d of %d sheets converted", total-failed, total)
		if t.CompletedAt == nil {
			t.CompletedAt = &now
		}
		return
	}
	if t.Status == StatusPending {
		t.Status = StatusRunning
	}
}
