package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/kurin/blazer/b2"
)

// B2Storage keeps files in a Backblaze B2 bucket.
type B2Storage struct {
	client *b2.Client
	bucket *b2.Bucket
}

// NewB2Storage authorises the account and resolves the bucket.
func NewB2Storage(ctx context.Context, accountID, appKey, bucketName string) (*B2Storage, error) {
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, fmt.Errorf("create b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("resolve b2 bucket %q: %w", bucketName, err)
	}
	return &B2Storage{client: client, bucket: bucket}, nil
}

// Put uploads r under key.
func (s *B2Storage) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	var opts []b2.WriterOption
	if contentType != "" {
		opts = append(opts, b2.WithAttrsOption(&b2.Attrs{ContentType: contentType}))
	}
	w := s.bucket.Object(cleaned).NewWriter(ctx, opts...)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write b2 object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close b2 writer: %w", err)
	}
	return nil
}

// Get streams the object stored under key.
func (s *B2Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	obj := s.bucket.Object(cleaned)
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat b2 object: %w", err)
	}
	return obj.NewReader(ctx), nil
}

// Delete removes the object stored under key.
func (s *B2Storage) Delete(ctx context.Context, key string) error {
	cleaned, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := s.bucket.Object(cleaned).Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return fmt.Errorf("delete b2 object: %w", err)
	}
	return nil
}
