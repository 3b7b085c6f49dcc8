package blobstore

import (
	"context"

	"github.com/opencontainers/go-digest"
)

type Outcome string

const (
	AlreadyStored Outcome = "already_stored"
	NewlyStored   Outcome = "newly_stored"
)

// PutResult describes one persisted blob payload.
type PutResult struct {
	BlobID  string  `json:"blob_id"`
	Size    int64   `json:"size"`
	Outcome Outcome `json:"outcome"`
}

// BlobStore is content addressed: the id of a blob is the sha256 digest of its bytes.
type BlobStore interface {
	Put(ctx context.Context, data []byte) (PutResult, error)
	Get(ctx context.Context, blobID string) ([]byte, error)
}

// BlobID returns the content address of data.
func BlobID(data []byte) string {
	return digest.FromBytes(data).String()
}

func parseBlobID(blobID string) (digest.Digest, error) {
	dgst, err := digest.Parse(blobID)
	if err != nil {
		return "", err
	}
	return dgst, nil
}
