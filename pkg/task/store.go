package task

import (
	"context"
	"sort"
	"sync"

	"github.com/sheetshot/sheetshot/pkg/errors"
)

// Store persists task records.
//
// Update is the only mutation path after Create: it applies mutate to a
// copy of the record and replaces the stored record atomically, so a
// reader never observes a half-written task. Concurrent Updates to the
// same record are serialized; the error returned by mutate is passed
// through unchanged and leaves the record untouched. Get and List
// return deep copies the caller may retain.
//
// Backends provide persistence, not multi-writer coordination: the
// orchestrator owns all writes within one process.
type Store interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	Update(ctx context.Context, id string, mutate func(*Task) error) (*Task, error)
	Delete(ctx context.Context, id string) error
	// List returns all records, newest first.
	List(ctx context.Context) ([]*Task, error)
	Close() error
}

// MemoryStore is the in-memory Store used by default. Records vanish
// with the process; use the Redis or Mongo store when task status must
// survive restarts.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*memoryEntry
}

// memoryEntry serializes access to one record.
type memoryEntry struct {
	mu   sync.Mutex
	task *Task
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Create(ctx context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.ID]; ok {
		return errors.New(errors.ErrCodeInternal, "task %s already exists", t.ID)
	}
	s.tasks[t.ID] = &memoryEntry{task: t.Clone()}
	return nil
}

func (s *MemoryStore) entry(id string) (*memoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.tasks[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeTaskNotFound, "task %s not found", id)
	}
	return e, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Task, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, mutate func(*Task) error) (*Task, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.task.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	e.task = next
	return next.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return errors.New(errors.ErrCodeTaskNotFound, "task %s not found", id)
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Task, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.tasks))
	for _, e := range s.tasks {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	tasks := make([]*Task, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		tasks = append(tasks, e.task.Clone())
		e.mu.Unlock()
	}
	sortTasks(tasks)
	return tasks, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)

// sortTasks orders records newest first, with the id as a deterministic
// tie-break.
func sortTasks(tasks []*Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}
