package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"albumvault/internal/storage"
)

type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	MaxSize      int64
}

// s3API is the subset of *s3.Client used by the store.
type s3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3BlobStore keeps ciphertexts in an S3 compatible bucket (MinIO in development).
type S3BlobStore struct {
	client  s3API
	bucket  string
	maxSize int64
}

func NewS3BlobStore(ctx context.Context, cfg S3Config) (*S3BlobStore, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("blobstore.NewS3BlobStore: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3BlobStore(client, cfg.Bucket, cfg.MaxSize), nil
}

func newS3BlobStore(client s3API, bucket string, maxSize int64) *S3BlobStore {
	return &S3BlobStore{client: client, bucket: bucket, maxSize: maxSize}
}

func (s *S3BlobStore) Put(ctx context.Context, data []byte) (PutResult, error) {
	const op = "blobstore.S3BlobStore.Put"

	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return PutResult{}, fmt.Errorf("%s: %w", op, storage.ErrBlobTooLarge)
	}

	blobID := BlobID(data)
	key := objectKey(blobID)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return PutResult{BlobID: blobID, Size: int64(len(data)), Outcome: AlreadyStored}, nil
	}
	if !isNotFound(err) {
		return PutResult{}, fmt.Errorf("%s: head object: %w", op, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return PutResult{}, fmt.Errorf("%s: put object: %w", op, err)
	}

	return PutResult{BlobID: blobID, Size: int64(len(data)), Outcome: NewlyStored}, nil
}

func (s *S3BlobStore) Get(ctx context.Context, blobID string) ([]byte, error) {
	const op = "blobstore.S3BlobStore.Get"

	if _, err := parseBlobID(blobID); err != nil {
		return nil, fmt.Errorf("%s: invalid blob id %q: %w", op, blobID, err)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(blobID)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}

	return data, nil
}

func objectKey(blobID string) string {
	return "blobs/" + blobID
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
