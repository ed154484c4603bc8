package artifact

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/sheetshot/sheetshot/pkg/errors"
)

// MemoryStore keeps artifacts in process memory. It backs tests and
// embedded use where nothing should touch disk; outputs vanish with
// the process.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, taskID, jobID, name string, data []byte) (Ref, error) {
	key := SafeName(taskID) + "/" + SafeName(jobID) + "_" + SafeName(name)

	s.mu.Lock()
	s.data[key] = append([]byte(nil), data...)
	s.mu.Unlock()

	return Ref{
		Path:        key,
		Name:        name,
		ContentType: ContentType(name),
		Size:        int64(len(data)),
	}, nil
}

func (s *MemoryStore) Open(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.data[ref.Path]
	s.mu.RUnlock()

	if !ok {
		return nil, errors.New(errors.ErrCodeFileNotFound, "artifact %s not found", ref.Name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Remove(ctx context.Context, ref Ref) error {
	s.mu.Lock()
	delete(s.data, ref.Path)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) RemoveTask(ctx context.Context, taskID string) error {
	prefix := SafeName(taskID) + "/"

	s.mu.Lock()
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			delete(s.data, key)
		}
	}
	s.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
