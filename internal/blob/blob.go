// Package blob stores uploaded files (attachments and registration
// documents) under generated names.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// ErrExtensionNotAllowed is returned for file types outside the allowed set
var ErrExtensionNotAllowed = errors.New("file extension not allowed")

// ErrNotFound is returned when a reference points at nothing
var ErrNotFound = errors.New("blob not found")

// Extensions accepted for each use
var (
	AttachmentExtensions = []string{".pdf"}
	DocumentExtensions   = []string{".pdf", ".jpg", ".jpeg", ".png"}
)

// Store writes blobs to an afero filesystem. Production uses a base-path OS
// filesystem rooted at the media directory; tests use a MemMapFs.
type Store struct {
	fs afero.Fs
}

// NewStore wraps fs
func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// NewDiskStore roots a store at dir, creating it when missing
func NewDiskStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root %s: %w", dir, err)
	}
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewMemStore returns a store backed by memory
func NewMemStore() *Store {
	return NewStore(afero.NewMemMapFs())
}

// Put stores r under prefix with a fresh name keeping the extension of
// filename, and returns the reference to persist. allowed limits the
// extensions; nil allows any.
func (s *Store) Put(ctx context.Context, prefix, filename string, r io.Reader, allowed []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if allowed != nil && !contains(allowed, ext) {
		return "", fmt.Errorf("%s: %w", filename, ErrExtensionNotAllowed)
	}

	ref := path.Join(prefix, uuid.NewString()+ext)
	if err := s.fs.MkdirAll(path.Dir(ref), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path.Dir(ref), err)
	}

	f, err := s.fs.Create(ref)
	if err != nil {
		return "", fmt.Errorf("failed to create blob %s: %w", ref, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = s.fs.Remove(ref)
		return "", fmt.Errorf("failed to write blob %s: %w", ref, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close blob %s: %w", ref, err)
	}
	return ref, nil
}

// Open returns a reader for ref
func (s *Store) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	if !validRef(ref) {
		return nil, ErrNotFound
	}
	f, err := s.fs.Open(ref)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", ref, err)
	}
	return f, nil
}

// Delete removes ref. Deleting something already gone is not an error.
func (s *Store) Delete(_ context.Context, ref string) error {
	if !validRef(ref) {
		return nil
	}
	err := s.fs.Remove(ref)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete blob %s: %w", ref, err)
	}
	return nil
}

// validRef rejects empty and escaping references
func validRef(ref string) bool {
	if ref == "" || strings.HasPrefix(ref, "/") {
		return false
	}
	clean := path.Clean(ref)
	return clean == ref && !strings.HasPrefix(clean, "..")
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
