package storage

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
)

// S3API is the subset of *s3.Client used by S3Storage.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage stores entries as objects in an S3 bucket.
//
// Example usage:
//
//	client := storage.NewS3Client(storage.S3Config{Region: "eu-central-1"})
//	backend := storage.NewS3Storage(client, "my-bucket", "state/")
type S3Storage struct {
	client  S3API
	bucket  string
	prefix  string
	maxSize int64
	closed  atomic.Bool
}

// NewS3Storage creates a new S3 backend.
//
// Parameters:
//   - client: AWS S3 client from aws-sdk-go-v2
//   - bucket: S3 bucket name
//   - prefix: Key prefix for entries (e.g., "state/")
func NewS3Storage(client S3API, bucket, prefix string) *S3Storage {
	return &S3Storage{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		maxSize: 1 << 20,
	}
}

// WithMaxSize limits how many bytes Load reads from one object.
// Default: 1 MiB.
func (s *S3Storage) WithMaxSize(n int64) *S3Storage {
	s.maxSize = n
	return s
}

func (s *S3Storage) key(name string) string {
	return s.prefix + name
}

// Load downloads the entry object.
func (s *S3Storage) Load(ctx context.Context, name string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil
		}
		return nil, fmt.Errorf("s3 get %s: %w", name, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(out.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("s3 read %s: %w", name, err)
	}
	if n > s.maxSize {
		return nil, fmt.Errorf("s3 read %s: entry exceeds %d bytes", name, s.maxSize)
	}
	return buf.Bytes(), nil
}

// Save uploads the entry object.
func (s *S3Storage) Save(ctx context.Context, name string, data []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", name, err)
	}
	return nil
}

// Remove deletes the entry object. S3 does not fail for missing keys.
func (s *S3Storage) Remove(ctx context.Context, name string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", name, err)
	}
	return nil
}

// Close marks the backend as closed.
func (s *S3Storage) Close() error {
	s.closed.Store(true)
	return nil
}

// S3Config holds connection settings for NewS3Client.
type S3Config struct {
	Region          string
	Endpoint        string // optional, for S3-compatible services
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	UsePathStyle    bool
}

// NewS3Client builds an S3 client from static settings.
func NewS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.AccessKeyID != "" {
		creds := aws.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			SessionToken:    cfg.SessionToken,
			Source:          "vstore",
		}
		opts.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		})
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}
