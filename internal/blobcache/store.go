// Package blobcache provides a content-addressed object store for
// generated artifacts (audio summaries, mirrored PDFs, uploads).
package blobcache

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrNotFound signals an absent object. It is a normal return for
// cache-miss checks, distinct from transport or storage failures.
var ErrNotFound = errors.New("object not found")

// IsNotFound reports whether err is an absent-object result.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Object describes a stored artifact.
type Object struct {
	// Location is the publicly resolvable URL of the object.
	Location string

	// ContentType is the MIME type of the payload.
	ContentType string

	// Size is the payload size in bytes.
	Size int64
}

// ObjectStore is a minimal put/head/delete object store.
//
// Stores are append-only from the caller's perspective: objects are
// created and optionally deleted out of band, never overwritten in
// place by the pipelines (callers check Head first).
type ObjectStore interface {
	// Head returns object metadata, or ErrNotFound.
	Head(ctx context.Context, name string) (Object, error)

	// Put stores the payload under name and returns its public location.
	Put(ctx context.Context, name string, payload []byte, contentType string) (Object, error)

	// Delete removes the object. Deleting an absent object is not an error.
	Delete(ctx context.Context, name string) error
}

// FSStore implements ObjectStore on the local filesystem. Objects are
// served by the daemon under a public base URL (the /blobs/ route).
type FSStore struct {
	root      string
	publicURL string
	logger    *zap.Logger
}

var _ ObjectStore = (*FSStore)(nil)

// NewFSStore creates a filesystem-backed object store rooted at root.
func NewFSStore(root, publicURL string, logger *zap.Logger) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob root path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root %s: %w", root, err)
	}
	return &FSStore{
		root:      root,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		logger:    logger,
	}, nil
}

// Root returns the filesystem root, for static serving.
func (s *FSStore) Root() string {
	return s.root
}

// Head returns object metadata, or ErrNotFound.
func (s *FSStore) Head(ctx context.Context, name string) (Object, error) {
	full, err := s.resolve(name)
	if err != nil {
		return Object{}, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return Object{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Object{}, fmt.Errorf("stat %s: %w", name, err)
	}

	return Object{
		Location:    s.location(name),
		ContentType: contentTypeFor(name),
		Size:        info.Size(),
	}, nil
}

// Put stores the payload under name. The write goes to a temp file in
// the same directory and is renamed into place, so concurrent writers
// to the same name each land a complete payload and readers never see
// a torn object.
func (s *FSStore) Put(ctx context.Context, name string, payload []byte, contentType string) (Object, error) {
	full, err := s.resolve(name)
	if err != nil {
		return Object{}, err
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Object{}, fmt.Errorf("creating directory for %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return Object{}, fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return Object{}, fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return Object{}, fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return Object{}, fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return Object{}, fmt.Errorf("writing %s: %w", name, err)
	}

	s.logger.Debug("stored blob",
		zap.String("name", name),
		zap.Int("bytes", len(payload)),
		zap.String("content_type", contentType),
	)

	return Object{
		Location:    s.location(name),
		ContentType: contentType,
		Size:        int64(len(payload)),
	}, nil
}

// Delete removes the object if present.
func (s *FSStore) Delete(ctx context.Context, name string) error {
	full, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	return nil
}

// resolve maps an object name to a filesystem path, rejecting names
// that would escape the root.
func (s *FSStore) resolve(name string) (string, error) {
	clean := path.Clean("/" + name)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *FSStore) location(name string) string {
	return s.publicURL + "/" + strings.TrimPrefix(path.Clean("/"+name), "/")
}

// contentTypeFor derives a MIME type from the object name extension.
func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
