package artifact

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sheetshot/sheetshot/pkg/errors"
)

// FileStore keeps artifacts on local disk under root/<taskID>/.
type FileStore struct {
	root string
}

// NewFileStore creates a file-backed store rooted at dir, creating it
// if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "creating artifact directory %s", dir)
	}
	return &FileStore{root: dir}, nil
}

// Root returns the store's base directory.
func (s *FileStore) Root() string {
	return s.root
}

// Put writes data under root/<taskID>/<jobID>_<name>. The jobID prefix
// keeps batch conversions with repeated sheet names from colliding.
func (s *FileStore) Put(ctx context.Context, taskID, jobID, name string, data []byte) (Ref, error) {
	rel := filepath.Join(SafeName(taskID), SafeName(jobID)+"_"+SafeName(name))
	abs := filepath.Join(s.root, rel)

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return Ref{}, errors.Wrap(errors.ErrCodeInternal, err, "creating task directory for %s", taskID)
	}
	if err := os.WriteFile(abs, data, 0644); err != nil {
		return Ref{}, errors.Wrap(errors.ErrCodeInternal, err, "writing artifact %s", rel)
	}

	return Ref{
		Path:        filepath.ToSlash(rel),
		Name:        name,
		ContentType: ContentType(name),
		Size:        int64(len(data)),
	}, nil
}

// Open streams a stored artifact.
func (s *FileStore) Open(ctx context.Context, ref Ref) (io.ReadCloser, error) {
	abs, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeFileNotFound, "artifact %s not found", ref.Name)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "opening artifact %s", ref.Name)
	}
	return f, nil
}

// Remove deletes a single artifact.
func (s *FileStore) Remove(ctx context.Context, ref Ref) error {
	abs, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeInternal, err, "removing artifact %s", ref.Name)
	}
	return nil
}

// RemoveTask deletes a task's whole artifact directory.
func (s *FileStore) RemoveTask(ctx context.Context, taskID string) error {
	dir := filepath.Join(s.root, SafeName(taskID))
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "removing artifacts for task %s", taskID)
	}
	return nil
}

// resolve maps a ref to an absolute path, rejecting refs that escape
// the store root. Refs travel through external task stores, so they are
// not trusted.
func (s *FileStore) resolve(ref Ref) (string, error) {
	abs := filepath.Join(s.root, filepath.FromSlash(ref.Path))
	if !strings.HasPrefix(abs, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", errors.New(errors.ErrCodeInternal, "artifact path %q escapes the store", ref.Path)
	}
	return abs, nil
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
