package terrainstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/simwire/simwire/pkg/terrain"
)

// S3API is the part of the S3 client the store uses. *s3.Client
// implements it.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps one object per patch under a key prefix.
//
// Example usage:
//
//	client := s3.New(s3.Options{Region: "us-east-1"})
//	store := terrainstore.NewS3Store(client, "my-bucket", "regions/home/")
type S3Store struct {
	client S3API
	bucket string
	prefix string
	closed atomic.Bool
}

// NewS3Store creates a store writing to bucket under prefix.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Key returns the object key of the patch at (x, y).
func (s *S3Store) Key(x, y int) string {
	return fmt.Sprintf("%sterrain/%02d_%02d.patch", s.prefix, x, y)
}

// GetPatch downloads the patch at (x, y).
func (s *S3Store) GetPatch(ctx context.Context, x, y int) (terrain.Patch, error) {
	if err := checkCoords(x, y); err != nil {
		return terrain.Patch{}, err
	}
	if s.closed.Load() {
		return terrain.Patch{}, ErrStoreClosed
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.Key(x, y)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return terrain.Patch{}, ErrNotFound
		}
		return terrain.Patch{}, fmt.Errorf("terrainstore: s3 get failed: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, recordSize+1))
	if err != nil {
		return terrain.Patch{}, fmt.Errorf("terrainstore: s3 read failed: %w", err)
	}
	return decodePatch(data)
}

// SetPatch uploads p at (x, y).
func (s *S3Store) SetPatch(ctx context.Context, x, y int, p terrain.Patch) error {
	if err := checkCoords(x, y); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}
	data, err := encodePatch(x, y, &p)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(x, y)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("terrainstore: s3 upload failed: %w", err)
	}
	return nil
}

// Close marks the store closed. The caller owns the client.
func (s *S3Store) Close() error {
	s.closed.Store(true)
	return nil
}
