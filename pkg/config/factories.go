package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/filefighter/ftpfighter/internal/logger"
	"github.com/filefighter/ftpfighter/pkg/journal"
	journalBadger "github.com/filefighter/ftpfighter/pkg/journal/badger"
	journalMemory "github.com/filefighter/ftpfighter/pkg/journal/memory"
	journalS3 "github.com/filefighter/ftpfighter/pkg/journal/s3"
	"github.com/filefighter/ftpfighter/pkg/metrics"
	"github.com/filefighter/ftpfighter/pkg/remote"
	"github.com/mitchellh/mapstructure"
)

// CreateRemoteClient builds the HTTP client for the FileFighter services.
func CreateRemoteClient(cfg *RemoteConfig, remoteMetrics metrics.RemoteMetrics) (*remote.Client, error) {
	client, err := remote.New(remote.Config{
		FileSystemURL:  cfg.FileSystemURL,
		FileHandlerURL: cfg.FileHandlerURL,
		RequestTimeout: cfg.RequestTimeout,
		UserAgent:      cfg.UserAgent,
		Metrics:        remoteMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create remote client: %w", err)
	}

	logger.Info("Remote services: filesystem=%s filehandler=%s", cfg.FileSystemURL, cfg.FileHandlerURL)
	return client, nil
}

// CreateJournal creates a journal store based on configuration.
//
// The Type field selects the implementation. Its type-specific options map
// is decoded with mapstructure and passed to the store's constructor.
//
// Supported types:
//   - "none": drops every entry
//   - "memory": pkg/journal/memory (bounded ring buffer, lost on restart)
//   - "badger": pkg/journal/badger (BadgerDB, persistent)
//   - "s3": pkg/journal/s3 (one JSON object per entry)
func CreateJournal(ctx context.Context, cfg *JournalConfig) (journal.Store, error) {
	switch cfg.Type {
	case "none":
		return journal.NewNoop(), nil
	case "memory":
		return createMemoryJournal(cfg.Memory)
	case "badger":
		return createBadgerJournal(ctx, cfg.Badger)
	case "s3":
		return createS3Journal(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown journal type: %q", cfg.Type)
	}
}

func createMemoryJournal(options map[string]any) (journal.Store, error) {
	type MemoryJournalOptions struct {
		MaxEntries int `mapstructure:"max_entries"`
	}

	var opts MemoryJournalOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode memory journal config: %w", err)
	}
	if opts.MaxEntries < 0 {
		return nil, fmt.Errorf("memory journal: max_entries must be >= 0, got %d", opts.MaxEntries)
	}

	return journalMemory.New(journalMemory.Config{MaxEntries: opts.MaxEntries}), nil
}

func createBadgerJournal(ctx context.Context, options map[string]any) (journal.Store, error) {
	type BadgerJournalOptions struct {
		Path       string        `mapstructure:"path"`
		SyncWrites bool          `mapstructure:"sync_writes"`
		Retention  time.Duration `mapstructure:"retention"`
	}

	var opts BadgerJournalOptions
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return nil, fmt.Errorf("failed to decode badger journal config: %w", err)
	}

	if opts.Path == "" {
		return nil, fmt.Errorf("badger journal: path is required")
	}

	store, err := journalBadger.Open(ctx, journalBadger.Config{
		Path:       opts.Path,
		SyncWrites: opts.SyncWrites,
		Retention:  opts.Retention,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger journal: %w", err)
	}

	logger.Info("Badger journal initialized: path=%s sync_writes=%t retention=%v",
		opts.Path, opts.SyncWrites, opts.Retention)
	return store, nil
}

func createS3Journal(ctx context.Context, options map[string]any) (journal.Store, error) {
	type S3JournalOptions struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var opts S3JournalOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 journal config: %w", err)
	}

	if opts.Bucket == "" {
		return nil, fmt.Errorf("S3 journal: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("S3 journal: region is required")
	}

	client, err := newS3Client(ctx, opts.Region, opts.Endpoint, opts.AccessKeyID, opts.SecretAccessKey, opts.MaxRetries)
	if err != nil {
		return nil, err
	}

	store, err := journalS3.New(ctx, journalS3.Config{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 journal: %w", err)
	}

	logger.Info("S3 journal initialized: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)
	return store, nil
}

// newS3Client loads the AWS configuration. A custom endpoint (MinIO,
// Localstack) switches to path-style addressing. Without static keys the
// default credential chain is used.
func newS3Client(ctx context.Context, region, endpoint, accessKeyID, secretAccessKey string, maxRetries int) (*s3.Client, error) {
	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(region),
	}

	if accessKeyID != "" && secretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	if maxRetries == 0 {
		maxRetries = 3
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
