package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"albumvault/internal/storage"
)

// LocalBlobStore реализация для локальной файловой системы
type LocalBlobStore struct {
	baseDir string // Базовый каталог для хранения (например: "./blobs")
	maxSize int64
}

func NewLocalBlobStore(baseDir string, maxSize int64) (*LocalBlobStore, error) {
	// Создаем директорию, если она не существует
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}

	return &LocalBlobStore{
		baseDir: baseDir,
		maxSize: maxSize,
	}, nil
}

func (s *LocalBlobStore) Put(ctx context.Context, data []byte) (PutResult, error) {
	const op = "blobstore.LocalBlobStore.Put"

	if err := ctx.Err(); err != nil {
		return PutResult{}, err
	}

	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return PutResult{}, fmt.Errorf("%s: %w", op, storage.ErrBlobTooLarge)
	}

	blobID := BlobID(data)
	dgst, _ := parseBlobID(blobID)
	path := s.blobPath(dgst.Algorithm().String(), dgst.Encoded())

	if _, err := os.Stat(path); err == nil {
		return PutResult{BlobID: blobID, Size: int64(len(data)), Outcome: AlreadyStored}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return PutResult{}, fmt.Errorf("%s: failed to create directories: %w", op, err)
	}

	// Пишем во временный файл и переименовываем, чтобы не оставлять частичных блобов
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return PutResult{}, fmt.Errorf("%s: failed to create temp file: %w", op, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return PutResult{}, fmt.Errorf("%s: failed to write blob: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		return PutResult{}, fmt.Errorf("%s: %w", op, err)
	}

	select {
	case <-ctx.Done():
		return PutResult{}, ctx.Err()
	default:
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return PutResult{}, fmt.Errorf("%s: failed to commit blob: %w", op, err)
	}

	return PutResult{BlobID: blobID, Size: int64(len(data)), Outcome: NewlyStored}, nil
}

func (s *LocalBlobStore) Get(ctx context.Context, blobID string) ([]byte, error) {
	const op = "blobstore.LocalBlobStore.Get"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dgst, err := parseBlobID(blobID)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid blob id %q: %w", op, blobID, err)
	}

	data, err := os.ReadFile(s.blobPath(dgst.Algorithm().String(), dgst.Encoded()))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return data, nil
}

func (s *LocalBlobStore) blobPath(alg, hex string) string {
	return filepath.Join(s.baseDir, alg, hex[:2], hex, "data")
}
