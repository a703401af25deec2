// Package artifacts stores compiled models and run manifests by content
// digest. Backends are the local filesystem, S3 and (with the gcp build tag)
// Google Cloud Storage.
package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned when no artifact has the requested digest.
	ErrNotFound = errors.New("artifacts: not found")
	// ErrInvalidDigest is returned for digests not of the form sha256:<hex>.
	ErrInvalidDigest = errors.New("artifacts: invalid digest")
)

// Media types of the artifacts a run publishes.
const (
	MediaTypeModel    = "text/x-minizinc"
	MediaTypeData     = "text/x-minizinc-data"
	MediaTypeManifest = "application/json"
	MediaTypeTree     = "application/json"
)

const digestPrefix = "sha256:"

// Artifact is a named blob to publish.
type Artifact struct {
	Name      string
	MediaType string
	Data      []byte
}

// Descriptor records where a published artifact can be fetched from.
type Descriptor struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Digest    string `json:"digest"`
	Size      int    `json:"size"`
}

// Store is a content-addressed artifact store. Putting the same bytes twice
// is a no-op that returns the same digest.
type Store interface {
	Put(ctx context.Context, a Artifact) (Descriptor, error)
	Get(ctx context.Context, digest string) ([]byte, error)
	Exists(ctx context.Context, digest string) (bool, error)
	Delete(ctx context.Context, digest string) error
}

// Digest returns the sha256 digest of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return digestPrefix + hex.EncodeToString(sum[:])
}

func describe(a Artifact) Descriptor {
	return Descriptor{Name: a.Name, MediaType: a.MediaType, Digest: Digest(a.Data), Size: len(a.Data)}
}

// blobName maps a digest to its object name below prefix.
func blobName(prefix, digest string) (string, error) {
	raw, ok := strings.CutPrefix(digest, digestPrefix)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidDigest, digest)
	}
	if b, err := hex.DecodeString(raw); err != nil || len(b) != sha256.Size {
		return "", fmt.Errorf("%w: %s", ErrInvalidDigest, digest)
	}
	return prefix + raw + ".blob", nil
}

// FileStore keeps blobs in a directory.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates baseDir if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	//nolint:gosec // G301: artifacts are shared with the solver process
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure artifact dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(digest string) (string, error) {
	name, err := blobName("", digest)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, name), nil
}

func (s *FileStore) Put(_ context.Context, a Artifact) (Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := describe(a)
	path, err := s.path(d.Digest)
	if err != nil {
		return Descriptor{}, err
	}
	if _, err := os.Stat(path); err == nil {
		return d, nil
	}

	tmp := path + ".tmp"
	//nolint:gosec // G306: blobs are world-readable model text
	if err := os.WriteFile(tmp, a.Data, 0644); err != nil {
		return Descriptor{}, fmt.Errorf("failed to write %s: %w", a.Name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return Descriptor{}, fmt.Errorf("failed to commit %s: %w", a.Name, err)
	}
	return d, nil
}

func (s *FileStore) Get(_ context.Context, digest string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := s.path(digest)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // digest validated as hex
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", digest, err)
	}
	return data, nil
}

func (s *FileStore) Exists(_ context.Context, digest string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := s.path(digest)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", digest, err)
}

func (s *FileStore) Delete(_ context.Context, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.path(digest)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// Export copies the blob for d into dir under its own name, so a solver can
// be pointed at ordinary .mzn and .dzn files.
func Export(ctx context.Context, s Store, d Descriptor, dir string) (string, error) {
	data, err := s.Get(ctx, d.Digest)
	if err != nil {
		return "", err
	}
	//nolint:gosec // G301: export directory is user-chosen
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure export dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(d.Name))
	//nolint:gosec // G306: exported model text
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("export %s: %w", d.Name, err)
	}
	return path, nil
}
