// Package artifact uploads binary artifacts under logical keys, reusing
// objects that already exist instead of fetching and uploading them again.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/v0xg/coursescrape/internal/logger"
)

var (
	// ErrFetchFailed wraps a failed download of the source asset
	ErrFetchFailed = errors.New("artifact fetch failed")
	// ErrUploadConflict is returned by a Backend when the key was created concurrently
	ErrUploadConflict = errors.New("artifact already exists")
	// ErrNotFound is returned when no object exists at a key
	ErrNotFound = errors.New("artifact not found")
)

// Object is a stored artifact
type Object struct {
	Key string
	URL string
}

// Backend is the storage collaborator
type Backend interface {
	// List returns every object whose key starts with prefix
	List(ctx context.Context, prefix string) ([]Object, error)
	// Upload creates key. It returns ErrUploadConflict if key already exists.
	Upload(ctx context.Context, key string, data []byte, contentType string) (Object, error)
}

// FetchFunc produces the artifact bytes. It is only called on a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Stats counts what a Store did during a run
type Stats struct {
	Uploaded int `json:"uploaded"`
	Reused   int `json:"reused"`
	Failed   int `json:"failed"`
}

// Store deduplicates uploads by logical key. One Store serves one run and is
// used from a single goroutine.
type Store struct {
	backend Backend
	log     logger.Interface
	known   map[string]string // key -> url, uploaded or seen during this run
	stats   Stats
}

// NewStore wraps backend
func NewStore(backend Backend, log logger.Interface) *Store {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Store{backend: backend, log: log, known: map[string]string{}}
}

// Stats returns counters for this run
func (s *Store) Stats() Stats {
	return s.stats
}

// PutIfAbsent returns the URL of the object at key, fetching and uploading it
// only when the backend does not already hold it.
func (s *Store) PutIfAbsent(ctx context.Context, key string, fetch FetchFunc, contentType string) (string, error) {
	if url, ok := s.known[key]; ok {
		s.stats.Reused++
		return url, nil
	}

	existing, err := s.lookup(ctx, key)
	switch {
	case err == nil:
		s.log.Debug("Reusing stored artifact", "key", key, "url", existing.URL)
		s.known[key] = existing.URL
		s.stats.Reused++
		return existing.URL, nil
	case !errors.Is(err, ErrNotFound):
		// Listing is an optimisation; fall through to upload
		s.log.Warn("Could not check for existing artifact", "key", key, "error", err)
	}

	data, err := fetch(ctx)
	if err != nil {
		s.stats.Failed++
		return "", fmt.Errorf("%w: %s: %v", ErrFetchFailed, key, err)
	}

	obj, err := s.backend.Upload(ctx, key, data, contentType)
	if errors.Is(err, ErrUploadConflict) {
		// Another run created it between our check and upload
		existing, lerr := s.lookup(ctx, key)
		if lerr != nil {
			s.stats.Failed++
			return "", fmt.Errorf("%w: %s: could not resolve existing object: %v", ErrUploadConflict, key, lerr)
		}
		s.log.Info("Upload raced with another writer, using existing artifact", "key", key)
		s.known[key] = existing.URL
		s.stats.Reused++
		return existing.URL, nil
	}
	if err != nil {
		s.stats.Failed++
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.log.Info("Uploaded artifact", "key", key, "size", len(data), "content_type", contentType)
	s.known[key] = obj.URL
	s.stats.Uploaded++
	return obj.URL, nil
}

// Put always uploads data under key. Used for artifacts whose keys are unique per run.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	obj, err := s.backend.Upload(ctx, key, data, contentType)
	if err != nil {
		s.stats.Failed++
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	s.log.Debug("Uploaded artifact", "key", key, "size", len(data))
	s.known[key] = obj.URL
	s.stats.Uploaded++
	return obj.URL, nil
}

// lookup lists key's directory and picks out the exact key
func (s *Store) lookup(ctx context.Context, key string) (Object, error) {
	objects, err := s.backend.List(ctx, Prefix(key))
	if err != nil {
		return Object{}, err
	}
	for _, o := range objects {
		if o.Key == key {
			return o, nil
		}
	}
	return Object{}, ErrNotFound
}

// Prefix returns the directory part of key including the trailing slash
func Prefix(key string) string {
	dir := path.Dir(key)
	if dir == "." || dir == "/" {
		return ""
	}
	return strings.TrimSuffix(dir, "/") + "/"
}
