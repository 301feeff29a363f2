package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend stores artifacts under a directory on disk
type LocalBackend struct {
	root    string
	baseURL string
}

// NewLocalBackend stores under root. When baseURL is empty, object URLs are file:// URLs.
func NewLocalBackend(root, baseURL string) (*LocalBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifact root %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact root %s: %w", abs, err)
	}
	return &LocalBackend{root: abs, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (l *LocalBackend) List(ctx context.Context, prefix string) ([]Object, error) {
	dir := filepath.Join(l.root, filepath.FromSlash(prefix))
	var out []Object
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		out = append(out, Object{Key: key, URL: l.objectURL(key)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	return out, nil
}

// Upload creates the file exclusively so a concurrent writer surfaces as ErrUploadConflict
func (l *LocalBackend) Upload(ctx context.Context, key string, data []byte, _ string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	p := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return Object{}, err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return Object{}, fmt.Errorf("%w: %s", ErrUploadConflict, key)
	}
	if err != nil {
		return Object{}, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(p)
		return Object{}, err
	}
	if err := f.Close(); err != nil {
		return Object{}, err
	}
	return Object{Key: key, URL: l.objectURL(key)}, nil
}

func (l *LocalBackend) objectURL(key string) string {
	if l.baseURL != "" {
		return l.baseURL + "/" + key
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(l.root, filepath.FromSlash(key)))}
	return u.String()
}
