package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// LocalBlobStore persists blobs under a root directory. Content is written
// to <root>/<id> with a JSON metadata sidecar at <root>/<id>.meta.json.
// Suitable for a single-node deployment.
type LocalBlobStore struct {
	root string
}

func NewLocalBlobStore(root string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory %s: %w", root, err)
	}
	return &LocalBlobStore{root: root}, nil
}

func (s *LocalBlobStore) contentPath(id string) string {
	return filepath.Join(s.root, id)
}

func (s *LocalBlobStore) metaPath(id string) string {
	return filepath.Join(s.root, id+".meta.json")
}

func (s *LocalBlobStore) Upload(_ context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	if err := ValidateUpload(meta); err != nil {
		return nil, err
	}
	data, hash, err := readAll(content)
	if err != nil {
		return nil, err
	}

	meta.ID = uuid.New().String()
	meta.Size = int64(len(data))
	meta.Hash = hash
	meta.CreatedAt = time.Now().UTC()

	if err := os.WriteFile(s.contentPath(meta.ID), data, 0o644); err != nil {
		return nil, fmt.Errorf("write blob content: %w", err)
	}
	sidecar, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode blob metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(meta.ID), sidecar, 0o644); err != nil {
		os.Remove(s.contentPath(meta.ID))
		return nil, fmt.Errorf("write blob metadata: %w", err)
	}

	out := meta
	return &out, nil
}

func (s *LocalBlobStore) Download(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	meta, err := s.GetMetadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(s.contentPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("open blob content: %w", err)
	}
	return f, meta, nil
}

func (s *LocalBlobStore) Delete(_ context.Context, id string) error {
	if _, err := os.Stat(s.metaPath(id)); os.IsNotExist(err) {
		return ErrBlobNotFound
	}
	if err := os.Remove(s.contentPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob content: %w", err)
	}
	if err := os.Remove(s.metaPath(id)); err != nil {
		return fmt.Errorf("remove blob metadata: %w", err)
	}
	return nil
}

func (s *LocalBlobStore) GetMetadata(_ context.Context, id string) (*BlobMetadata, error) {
	raw, err := os.ReadFile(s.metaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("read blob metadata: %w", err)
	}
	var meta BlobMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode blob metadata: %w", err)
	}
	return &meta, nil
}
