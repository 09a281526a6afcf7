// Package s3 stores journal entries as JSON objects in an S3 bucket.
//
// Each entry becomes one object named <prefix><journal.SortKey>.json. S3 lists
// keys in ascending order, so ListObjectsV2 returns the newest entries first
// without a client-side sort.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/filefighter/ftpfighter/pkg/journal"
)

// API is the subset of *s3.Client used by the Store.
type API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config configures a Store.
type Config struct {
	// Client is the configured S3 client
	Client API

	// Bucket must already exist
	Bucket string

	// KeyPrefix is prepended to every object key, e.g. "ftpfighter/journal/"
	KeyPrefix string
}

// Store is an S3-backed journal.
type Store struct {
	client    API
	bucket    string
	keyPrefix string
	seq       atomic.Uint64
}

// New verifies bucket access and returns a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	if _, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	}); err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &Store{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

var _ journal.Store = (*Store)(nil)

func (s *Store) Record(ctx context.Context, e journal.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}

	key := s.keyPrefix + journal.SortKey(e.Time, s.seq.Add(1)) + ".json"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put journal entry %q: %w", key, err)
	}
	return nil
}

// Recent lists at most n keys (one page when n is positive) and fetches
// each entry.
func (s *Store) Recent(ctx context.Context, n int) ([]journal.Entry, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	}
	if n > 0 {
		input.MaxKeys = aws.Int32(int32(n))
	}

	var out []journal.Entry
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list journal entries: %w", err)
		}

		for _, obj := range page.Contents {
			e, err := s.get(ctx, aws.ToString(obj.Key))
			if err != nil {
				return nil, err
			}
			out = append(out, e)
			if n > 0 && len(out) >= n {
				return out, nil
			}
		}
	}
	return out, nil
}

func (s *Store) get(ctx context.Context, key string) (journal.Entry, error) {
	var e journal.Entry

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return e, fmt.Errorf("failed to get journal entry %q: %w", key, err)
	}
	defer result.Body.Close()

	if err := json.NewDecoder(result.Body).Decode(&e); err != nil {
		return e, fmt.Errorf("decode journal entry %q: %w", key, err)
	}
	return e, nil
}

func (s *Store) Close() error {
	return nil
}
