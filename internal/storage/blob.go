package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/truststack/internal/domain"
)

const blobsDir = "evidence/blobs"

// BlobStore keeps evidence bytes content-addressed inside each project's
// workspace directory, so a project directory is a self-contained unit.
type BlobStore struct {
	root string
}

// NewBlobStore creates a blob store rooted at the workspace directory.
func NewBlobStore(root string) *BlobStore {
	return &BlobStore{root: root}
}

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Key returns the blob location relative to the project directory.
func Key(hash string) string {
	return blobsDir + "/" + hash
}

func (s *BlobStore) path(projectID, hash string) (string, error) {
	if len(hash) != sha256.Size*2 {
		return "", fmt.Errorf("invalid hash length %d", len(hash))
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return "", fmt.Errorf("invalid hash hex: %w", err)
	}
	if projectID == "" || projectID != filepath.Base(projectID) {
		return "", fmt.Errorf("invalid project id %q", projectID)
	}
	return filepath.Join(s.root, projectID, filepath.FromSlash(blobsDir), hash), nil
}

// Put writes data under its hash and returns the storage key. Existing blobs
// are left untouched, so identical uploads share one file.
func (s *BlobStore) Put(ctx context.Context, projectID, hash string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.path(projectID, hash)
	if err != nil {
		return "", err
	}
	if Digest(data) != hash {
		return "", fmt.Errorf("content does not match hash %s", hash)
	}

	if _, err := os.Stat(path); err == nil {
		return Key(hash), nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to ensure blob dir: %w", err)
	}

	// Write to a private temp file, then rename into place.
	tmp, err := os.CreateTemp(dir, "."+hash+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp blob: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close blob: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("failed to commit blob: %w", err)
	}
	return Key(hash), nil
}

// Open returns a reader over a stored blob and its size.
func (s *BlobStore) Open(ctx context.Context, projectID, hash string) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	path, err := s.path(projectID, hash)
	if err != nil {
		return nil, 0, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid evidence hash", err)
	}
	f, err := os.Open(path) //nolint:gosec // hash validated as hex
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, domain.ErrBlobNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}
