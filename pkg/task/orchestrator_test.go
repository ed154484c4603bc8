package task

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"

	"github.com/sheetshot/sheetshot/pkg/artifact"
	"github.com/sheetshot/sheetshot/pkg/errors"
	"github.com/sheetshot/sheetshot/pkg/pipeline"
	"github.com/sheetshot/sheetshot/pkg/raster"
)

// writeWorkbook writes a workbook with the given sheet names, each
// holding a small block of cells.
func writeWorkbook(t *testing.T, sheets ...string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("renaming sheet: %v", err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				t.Fatalf("adding sheet %s: %v", name, err)
			}
		}
		if err := f.SetCellValue(name, "A1", "Region"); err != nil {
			t.Fatalf("setting cell: %v", err)
		}
		if err := f.SetCellValue(name, "B1", 42); err != nil {
			t.Fatalf("setting cell: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("saving workbook: %v", err)
	}
	return path
}

// writeCorruptWorkbook writes a file with a spreadsheet extension that
// no reader can open.
func writeCorruptWorkbook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	if err := os.WriteFile(path, []byte("this is not a workbook"), 0644); err != nil {
		t.Fatalf("writing corrupt workbook: %v", err)
	}
	return path
}

// fakeShooter returns canned bytes. started is closed on the first
// call; release, when set, blocks every capture until closed.
type fakeShooter struct {
	mu      sync.Mutex
	calls   int
	fail    int
	started chan struct{}
	release chan struct{}
}

func (f *fakeShooter) Screenshot(ctx context.Context, html string, opts raster.ShotOptions) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.started != nil && n == 1 {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	if n <= f.fail {
		return nil, fmt.Errorf("tab crashed")
	}
	return []byte("fake-image"), nil
}

func (f *fakeShooter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func newTestOrchestrator(shooter raster.Screenshotter) (*Orchestrator, *artifact.MemoryStore) {
	arts := artifact.NewMemoryStore()
	runner := pipeline.NewRunner(nil, nil, shooter, 2, quietLogger())
	return NewOrchestrator(NewMemoryStore(), runner, arts, quietLogger()), arts
}

func waitTerminal(t *testing.T, o *Orchestrator, id string) *Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		tk, err := o.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if tk.Status.Terminal() {
			return tk
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("task did not reach a terminal state")
	return nil
}

func TestSubmitConvertsAllSheets(t *testing.T) {
	ctx := context.Background()
	o, arts := newTestOrchestrator(&fakeShooter{})
	wb := writeWorkbook(t, "Revenue", "Costs")

	id, err := o.Submit(ctx, &Request{Files: []File{{Path: wb}}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	tk := waitTerminal(t, o, id)
	if tk.Status != StatusCompleted {
		t.Fatalf("Status = %s, want %s (message %q)", tk.Status, StatusCompleted, tk.Message)
	}
	if tk.Progress != 100 {
		t.Errorf("Progress = %d, want 100", tk.Progress)
	}
	if tk.Message != "2 of 2 sheets converted" {
		t.Errorf("Message = %q", tk.Message)
	}
	if tk.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if len(tk.Jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(tk.Jobs))
	}

	// Jobs follow workbook sheet order with sequential ids.
	for i, want := range []struct{ id, sheet string }{
		{"j01", "Revenue"},
		{"j02", "Costs"},
	} {
		j := tk.Jobs[i]
		if j.ID != want.id || j.Sheet != want.sheet {
			t.Errorf("job %d = (%s, %s), want (%s, %s)", i, j.ID, j.Sheet, want.id, want.sheet)
		}
		if j.Status != StatusCompleted {
			t.Errorf("job %s status = %s (%s)", j.ID, j.Status, j.Error)
		}
		if j.Artifact == nil {
			t.Fatalf("job %s has no artifact", j.ID)
		}
		if !strings.HasSuffix(j.Artifact.Name, "_"+want.sheet+".png") {
			t.Errorf("artifact name = %q", j.Artifact.Name)
		}
		if j.StartedAt == nil || j.FinishedAt == nil {
			t.Errorf("job %s missing timestamps", j.ID)
		}

		rc, err := arts.Open(ctx, *j.Artifact)
		if err != nil {
			t.Fatalf("opening artifact: %v", err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if string(data) != "fake-image" {
			t.Errorf("artifact bytes = %q", data)
		}
	}

	// Output defaults were applied at submission.
	if tk.Output.Type != pipeline.TypeImage || tk.Output.Format != pipeline.FormatPNG || tk.Output.Quality != pipeline.DefaultQuality {
		t.Errorf("Output = %+v, defaults not applied", tk.Output)
	}
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(&fakeShooter{})

	tests := []struct {
		name string
		req  Request
	}{
		{"no files", Request{}},
		{"empty path", Request{Files: []File{{Path: "  "}}}},
		{"bad extension", Request{Files: []File{{Path: "/tmp/report.txt"}}}},
		{"bad sheet selector", Request{Files: []File{{Path: "/tmp/report.xlsx", Sheets: []string{"a/b"}}}}},
		{"bad type", Request{Files: []File{{Path: "/tmp/report.xlsx"}}, Output: Output{Type: "pdf"}}},
		{"bad format", Request{Files: []File{{Path: "/tmp/report.xlsx"}}, Output: Output{Format: "gif"}}},
		{"bad quality", Request{Files: []File{{Path: "/tmp/report.xlsx"}}, Output: Output{Quality: 101}}},
		{"negative width", Request{Files: []File{{Path: "/tmp/report.xlsx"}}, Output: Output{Width: -1}}},
		{"bad range", Request{Files: []File{{Path: "/tmp/report.xlsx"}}, Output: Output{Range: "nope"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := o.Submit(ctx, &req)
			if err == nil {
				t.Fatal("Submit accepted an invalid request")
			}
		})
	}

	// Rejected requests never create task records.
	tasks, err := o.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("found %d tasks after rejected submissions", len(tasks))
	}
}

func TestBatchIsolation(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(&fakeShooter{})
	quarterly := writeWorkbook(t, "Revenue", "Costs")
	annual := writeWorkbook(t, "Summary", "Notes", "Budget")
	bad := writeCorruptWorkbook(t)

	id, err := o.Submit(ctx, &Request{Files: []File{{Path: quarterly}, {Path: annual}, {Path: bad}}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	tk := waitTerminal(t, o, id)
	if tk.Status != StatusCompleted {
		t.Fatalf("Status = %s, want %s: one bad file must not fail the batch", tk.Status, StatusCompleted)
	}
	if len(tk.Jobs) != 6 {
		t.Fatalf("got %d jobs, want 6 (5 sheets + 1 failed file)", len(tk.Jobs))
	}

	completed, failed := tk.Counts()
	if completed != 5 || failed != 1 {
		t.Errorf("Counts = (%d, %d), want (5, 1)", completed, failed)
	}
	if tk.Message != "5 of 6 sheets converted" {
		t.Errorf("Message = %q", tk.Message)
	}

	for i, j := range tk.Jobs[:5] {
		if j.Status != StatusCompleted {
			t.Errorf("job %d status = %s, want %s", i, j.Status, StatusCompleted)
		}
		if j.Artifact == nil {
			t.Errorf("completed job %d (%s) has no artifact", i, j.Sheet)
		}
	}

	j := tk.Jobs[5]
	if j.Status != StatusFailed {
		t.Fatalf("corrupt file job status = %s", j.Status)
	}
	if j.ErrorCode != string(errors.ErrCodeLoad) {
		t.Errorf("ErrorCode = %q, want %s", j.ErrorCode, errors.ErrCodeLoad)
	}
	if j.Workbook != bad {
		t.Errorf("failed job workbook = %q, want %q", j.Workbook, bad)
	}
	if j.FinishedAt == nil {
		t.Error("failed job has no finish time")
	}
}

func TestExplicitSheetSelection(t *testing.T) {
	ctx := context.Background()
	shooter := &fakeShooter{}
	o, _ := newTestOrchestrator(shooter)
	wb := writeWorkbook(t, "Revenue", "Costs")

	id, err := o.Submit(ctx, &Request{Files: []File{{Path: wb, Sheets: []string{"Costs"}}}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	tk := waitTerminal(t, o, id)
	if len(tk.Jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(tk.Jobs))
	}
	if tk.Jobs[0].Sheet != "Costs" || tk.Jobs[0].Status != StatusCompleted {
		t.Errorf("job = %+v", tk.Jobs[0])
	}
	if n := shooter.callCount(); n != 1 {
		t.Errorf("shooter called %d times, want 1", n)
	}
}

func TestExplicitSheetMissing(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(&fakeShooter{})
	wb := writeWorkbook(t, "Revenue")

	id, err := o.Submit(ctx, &Request{Files: []File{{Path: wb, Sheets: []string{"Revenue", "Ghost"}}}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	tk := waitTerminal(t, o, id)
	if tk.Status != StatusCompleted {
		t.Fatalf("Status = %s", tk.Status)
	}

	bySheet := map[string]Status{}
	for _, j := range tk.Jobs {
		bySheet[j.Sheet] = j.Status
	}
	if bySheet["Revenue"] != StatusCompleted {
		t.Errorf("Revenue = %s, want %s", bySheet["Revenue"], StatusCompleted)
	}
	if bySheet["Ghost"] != StatusFailed {
		t.Errorf("Ghost = %s, want %s", bySheet["Ghost"], StatusFailed)
	}
	if j := tk.Job("j02"); j.ErrorCode != string(errors.ErrCodeLoad) {
		t.Errorf("Ghost ErrorCode = %q, want %s", j.ErrorCode, errors.ErrCodeLoad)
	}
}

func TestHTMLOutput(t *testing.T) {
	ctx := context.Background()
	shooter := &fakeShooter{}
	o, arts := newTestOrchestrator(shooter)
	wb := writeWorkbook(t, "Revenue")

	id, err := o.Submit(ctx, &Request{
		Files:  []File{{Path: wb}},
		Output: Output{Type: pipeline.TypeHTML},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	tk := waitTerminal(t, o, id)
	if tk.Status != StatusCompleted {
		t.Fatalf("Status = %s (%s)", tk.Status, tk.Message)
	}

	j := tk.Jobs[0]
	if j.Artifact == nil {
		t.Fatal("no artifact")
	}
	if j.Artifact.ContentType != "text/html; charset=utf-8" {
		t.Errorf("ContentType = %q", j.Artifact.ContentType)
	}
	if !strings.HasSuffix(j.Artifact.Name, ".html") {
		t.Errorf("artifact name = %q", j.Artifact.Name)
	}

	rc, err := arts.Open(ctx, *j.Artifact)
	if err != nil {
		t.Fatalf("opening artifact: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if !strings.Contains(string(data), "<table") {
		t.Error("artifact does not contain rendered markup")
	}

	if n := shooter.callCount(); n != 0 {
		t.Errorf("shooter called %d times for an html conversion", n)
	}
}

func TestRetriedJobStillCompletes(t *testing.T) {
	ctx := context.Background()
	shooter := &fakeShooter{fail: 1}
	o, _ := newTestOrchestrator(shooter)
	wb := writeWorkbook(t, "Revenue")

	id, err := o.Submit(ctx, &Request{Files: []File{{Path: wb}}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	tk := waitTerminal(t, o, id)
	if tk.Jobs[0].Status != StatusCompleted {
		t.Fatalf("job = %+v", tk.Jobs[0])
	}
	if n := shooter.callCount(); n != 2 {
		t.Errorf("shooter called %d times, want 2", n)
	}
}

func TestCancelPendingJobs(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(&fakeShooter{})

	// A task mid-flight: one job running, two still pending.
	rec := &Task{
		ID:        "t1",
		Status:    StatusRunning,
		CreatedAt: time.Now().UTC(),
		Jobs: []Job{
			{ID: "j01", Sheet: "A", Status: StatusRunning},
			{ID: "j02", Sheet: "B", Status: StatusPending},
			{ID: "j03", Sheet: "C", Status: StatusPending},
		},
	}
	if err := o.Store.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := o.Cancel(ctx, "t1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	tk, err := o.Status(ctx, "t1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if tk.Status != StatusRunning {
		t.Errorf("Status = %s: task must stay running while a job is in flight", tk.Status)
	}
	for _, id := range []string{"j02", "j03"} {
		j := tk.Job(id)
		if j.Status != StatusFailed {
			t.Errorf("job %s = %s, want %s", id, j.Status, StatusFailed)
		}
		if j.ErrorCode != string(errors.ErrCodeCancelled) {
			t.Errorf("job %s ErrorCode = %q", id, j.ErrorCode)
		}
		if j.FinishedAt == nil {
			t.Errorf("job %s has no finish time", id)
		}
	}
	if tk.Job("j01").Status != StatusRunning {
		t.Errorf("running job was touched by Cancel: %s", tk.Job("j01").Status)
	}

	// The in-flight job finishing completes the task.
	_, err = o.Store.Update(ctx, "t1", func(rec *Task) error {
		now := time.Now().UTC()
		j := rec.Job("j01")
		j.Status = StatusCompleted
		j.FinishedAt = &now
		rec.refresh(now)
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	tk, _ = o.Status(ctx, "t1")
	if tk.Status != StatusCompleted || tk.Progress != 100 {
		t.Errorf("after last job: status %s progress %d", tk.Status, tk.Progress)
	}
	if tk.Message != "1 of 3 sheets converted" {
		t.Errorf("Message = %q", tk.Message)
	}
}

func TestCancelLetsInFlightCaptureFinish(t *testing.T) {
	ctx := context.Background()
	shooter := &fakeShooter{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	o, _ := newTestOrchestrator(shooter)
	wb := writeWorkbook(t, "Revenue")

	id, err := o.Submit(ctx, &Request{Files: []File{{Path: wb}}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	<-shooter.started
	if err := o.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(shooter.release)

	tk := waitTerminal(t, o, id)
	if tk.Status != StatusCompleted {
		t.Fatalf("Status = %s (%s)", tk.Status, tk.Message)
	}
	if tk.Jobs[0].Status != StatusCompleted {
		t.Errorf("in-flight capture was abandoned: %+v", tk.Jobs[0])
	}
}

func TestCancelBeforeExpansion(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(&fakeShooter{})

	rec := &Task{ID: "t1", Status: StatusPending, Message: "queued", CreatedAt: time.Now().UTC()}
	if err := o.Store.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := o.Cancel(ctx, "t1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	tk, _ := o.Status(ctx, "t1")
	if tk.Status != StatusFailed || tk.Message != "cancelled" {
		t.Errorf("task = %s %q", tk.Status, tk.Message)
	}
	if tk.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestDeleteRemovesRecordAndArtifacts(t *testing.T) {
	ctx := context.Background()
	o, arts := newTestOrchestrator(&fakeShooter{})
	wb := writeWorkbook(t, "Revenue")

	id, err := o.Submit(ctx, &Request{Files: []File{{Path: wb}}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	tk := waitTerminal(t, o, id)
	ref := tk.Jobs[0].Artifact
	if ref == nil {
		t.Fatal("no artifact to delete")
	}

	if err := o.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := o.Status(ctx, id); !errors.Is(err, errors.ErrCodeTaskNotFound) {
		t.Errorf("Status after Delete = %v, want %s", err, errors.ErrCodeTaskNotFound)
	}
	if _, err := arts.Open(ctx, *ref); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("artifact still readable after Delete: %v", err)
	}
}

func TestStatusNotFound(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeShooter{})
	if _, err := o.Status(context.Background(), "missing"); !errors.Is(err, errors.ErrCodeTaskNotFound) {
		t.Errorf("Status = %v, want %s", err, errors.ErrCodeTaskNotFound)
	}
}

func TestShutdownDrainsTasks(t *testing.T) {
	ctx := context.Background()
	shooter := &fakeShooter{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	o, _ := newTestOrchestrator(shooter)
	wb := writeWorkbook(t, "Revenue")

	id, err := o.Submit(ctx, &Request{Files: []File{{Path: wb}}})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	<-shooter.started
	close(shooter.release)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := o.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	tk, err := o.Status(ctx, id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !tk.Status.Terminal() {
		t.Errorf("task not terminal after Shutdown: %s", tk.Status)
	}
}
