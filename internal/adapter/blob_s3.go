package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/MKhiriev/go-fish-log/internal/config"
	"github.com/MKhiriev/go-fish-log/internal/logger"
)

const defaultPresignTTL = 15 * time.Minute

type s3BlobStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	logger  *logger.Logger
}

// NewS3BlobStore builds a BlobStore over an S3-compatible bucket. A custom
// endpoint (MinIO and friends) switches to path-style addressing.
func NewS3BlobStore(ctx context.Context, cfg config.Blob, log *logger.Logger) (BlobStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.Err(err).Str("func", "NewS3BlobStore").Msg("failed to load aws config")
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}

	return &s3BlobStore{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		ttl:     ttl,
		logger:  log,
	}, nil
}

func (s *s3BlobStore) Put(ctx context.Context, key string, data []byte, meta BlobMeta) error {
	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(data),
		Metadata: meta.Metadata,
	}
	if meta.ContentType != "" {
		input.ContentType = aws.String(meta.ContentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "s3BlobStore.Put").Str("key", key).Msg("failed to upload object")
		return fmt.Errorf("%w: %w", ErrBlobStoreUnavailable, err)
	}
	return nil
}

func (s *s3BlobStore) Get(ctx context.Context, key string) ([]byte, BlobMeta, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, BlobMeta{}, mapS3Error(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, BlobMeta{}, fmt.Errorf("%w: %w", ErrBlobStoreUnavailable, err)
	}

	return data, BlobMeta{ContentType: aws.ToString(out.ContentType), Metadata: out.Metadata}, nil
}

func (s *s3BlobStore) URL(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBlobStoreUnavailable, err)
	}
	return req.URL, nil
}

func (s *s3BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)

	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBlobStoreUnavailable, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (s *s3BlobStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return mapS3Error(err)
	}
	return nil
}

func mapS3Error(err error) error {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrBlobStoreUnavailable, err)
}
