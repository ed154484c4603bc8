package task

import (
	"testing"
	"time"

	"github.com/sheetshot/sheetshot/pkg/artifact"
)

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("Terminal(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusPending, false},
		{StatusCompleted, StatusRunning, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusRunning, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestRefreshProgress(t *testing.T) {
	now := time.Now().UTC()
	tk := &Task{
		Status: StatusPending,
		Jobs: []Job{
			{ID: "j01", Status: StatusCompleted},
			{ID: "j02", Status: StatusRunning},
			{ID: "j03", Status: StatusPending},
		},
	}

	tk.refresh(now)

	if tk.Status != StatusRunning {
		t.Errorf("Status = %s, want %s", tk.Status, StatusRunning)
	}
	if tk.Progress != 33 {
		t.Errorf("Progress = %d, want 33", tk.Progress)
	}
	if tk.CompletedAt != nil {
		t.Error("CompletedAt set before all jobs finished")
	}
}

func TestRefreshCompletes(t *testing.T) {
	now := time.Now().UTC()
	tk := &Task{
		Status: StatusRunning,
		Jobs: []Job{
			{ID: "j01", Status: StatusCompleted},
			{ID: "j02", Status: StatusFailed},
			{ID: "j03", Status: StatusCompleted},
		},
	}

	tk.refresh(now)

	if tk.Status != StatusCompleted {
		t.Fatalf("Status = %s, want %s", tk.Status, StatusCompleted)
	}
	if tk.Progress != 100 {
		t.Errorf("Progress = %d, want 100", tk.Progress)
	}
	if tk.Message != "2 of 3 sheets converted" {
		t.Errorf("Message = %q, want %q", tk.Message, "2 of 3 sheets converted")
	}
	if tk.CompletedAt == nil || !tk.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v, want %v", tk.CompletedAt, now)
	}
}

func TestRefreshAllFailedStillCompletes(t *testing.T) {
	tk := &Task{
		Status: StatusRunning,
		Jobs: []Job{
			{ID: "j01", Status: StatusFailed},
			{ID: "j02", Status: StatusFailed},
		},
	}

	tk.refresh(time.Now().UTC())

	if tk.Status != StatusCompleted {
		t.Errorf("Status = %s, want %s (a fully failed batch still completes)", tk.Status, StatusCompleted)
	}
	if tk.Message != "0 of 2 sheets converted" {
		t.Errorf("Message = %q, want %q", tk.Message, "0 of 2 sheets converted")
	}
}

func TestRefreshNoOpWhenTerminal(t *testing.T) {
	done := time.Now().UTC().Add(-time.Hour)
	tk := &Task{
		Status:      StatusFailed,
		Message:     "cancelled",
		CompletedAt: &done,
		Jobs:        []Job{{ID: "j01", Status: StatusCompleted}},
	}

	tk.refresh(time.Now().UTC())

	if tk.Status != StatusFailed {
		t.Errorf("Status = %s, terminal record must not change", tk.Status)
	}
	if tk.Message != "cancelled" {
		t.Errorf("Message = %q, terminal record must not change", tk.Message)
	}
	if !tk.CompletedAt.Equal(done) {
		t.Error("CompletedAt changed on a terminal record")
	}
}

func TestRefreshNoOpWithoutJobs(t *testing.T) {
	tk := &Task{Status: StatusPending, Message: "queued"}
	tk.refresh(time.Now().UTC())

	if tk.Status != StatusPending || tk.Progress != 0 {
		t.Errorf("record without jobs changed: status %s progress %d", tk.Status, tk.Progress)
	}
}

func TestTaskJobLookup(t *testing.T) {
	tk := &Task{Jobs: []Job{{ID: "j01"}, {ID: "j02"}}}

	if j := tk.Job("j02"); j == nil || j.ID != "j02" {
		t.Errorf("Job(j02) = %+v", j)
	}
	// The pointer aliases the slice so mutations stick.
	tk.Job("j01").Status = StatusRunning
	if tk.Jobs[0].Status != StatusRunning {
		t.Error("Job() did not return a pointer into the job list")
	}
	if j := tk.Job("nope"); j != nil {
		t.Errorf("Job(nope) = %+v, want nil", j)
	}
}

func TestTaskCounts(t *testing.T) {
	tk := &Task{Jobs: []Job{
		{Status: StatusCompleted},
		{Status: StatusCompleted},
		{Status: StatusFailed},
		{Status: StatusRunning},
	}}

	completed, failed := tk.Counts()
	if completed != 2 || failed != 1 {
		t.Errorf("Counts() = (%d, %d), want (2, 1)", completed, failed)
	}
}

func TestTaskClone(t *testing.T) {
	started := time.Now().UTC()
	ref := &artifact.Ref{Path: "t/j01_a.png", Name: "a.png", Size: 10}
	orig := &Task{
		ID:     "t1",
		Status: StatusRunning,
		Jobs: []Job{
			{ID: "j01", Status: StatusCompleted, Artifact: ref, StartedAt: &started},
		},
	}

	c := orig.Clone()
	c.Jobs[0].Status = StatusFailed
	c.Jobs[0].Artifact.Name = "changed.png"
	*c.Jobs[0].StartedAt = started.Add(time.Hour)

	if orig.Jobs[0].Status != StatusCompleted {
		t.Error("clone shares the job slice")
	}
	if orig.Jobs[0].Artifact.Name != "a.png" {
		t.Error("clone shares the artifact ref")
	}
	if !orig.Jobs[0].StartedAt.Equal(started) {
		t.Error("clone shares the started timestamp")
	}

	var nilTask *Task
	if nilTask.Clone() != nil {
		t.Error("Clone of nil must be nil")
	}
}
