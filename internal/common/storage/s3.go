// internal/common/storage/s3.go
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"msad-registration/internal/common/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store stores objects in S3 buckets and hands out either public or
// presigned GET URLs.
type S3Store struct {
	client        *s3.Client
	presigner     *s3.PresignClient
	region        string
	publicBaseURL string
	signed        bool
	signedTTL     time.Duration
}

func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3StoreFromClient(client, cfg), nil
}

// NewS3StoreFromClient wraps an existing client.
func NewS3StoreFromClient(client *s3.Client, cfg config.StorageConfig) *S3Store {
	ttl := time.Duration(cfg.SignedURLTTL) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &S3Store{
		client:        client,
		presigner:     s3.NewPresignClient(client),
		region:        cfg.Region,
		publicBaseURL: cfg.PublicBaseURL,
		signed:        cfg.SignedURLs,
		signedTTL:     ttl,
	}
}

// Put buffers body so the request can be signed with a payload hash.
func (s *S3Store) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}

	limit := size
	if limit <= 0 {
		limit = 32 << 20
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return fmt.Errorf("read upload body: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(k),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", bucket, k, err)
	}
	return nil
}

func (s *S3Store) URL(ctx context.Context, bucket, key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	if s.signed {
		req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(k),
		}, s3.WithPresignExpires(s.signedTTL))
		if err != nil {
			return "", fmt.Errorf("presign %s/%s: %w", bucket, k, err)
		}
		return req.URL, nil
	}

	if s.publicBaseURL != "" {
		return joinURL(s.publicBaseURL, bucket, k), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.region, k), nil
}

func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(k),
	}); err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", bucket, k, err)
	}
	return nil
}
