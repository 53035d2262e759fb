package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrBucketRequired is returned when S3 storage is created without a bucket.
var ErrBucketRequired = errors.New("storage: S3 bucket is required")

// DefaultURLTTL is how long a presigned report URL stays valid.
const DefaultURLTTL = 24 * time.Hour

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string        // Optional: for custom S3-compatible endpoints
	Prefix          string        // Optional: key prefix, e.g. "reports/"
	AccessKeyID     string        // Optional: AWS access key ID
	SecretAccessKey string        // Optional: AWS secret access key
	URLTTL          time.Duration // Optional: presigned URL lifetime, defaults to DefaultURLTTL
}

// S3Storage uploads reports to an S3 bucket and hands out presigned
// download URLs.
type S3Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	prefix    string
	urlTTL    time.Duration
}

// NewS3Storage creates a new S3Storage instance.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}

	return &S3Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		urlTTL:    ttl,
	}, nil
}

// Key returns the object key of a job's report.
func (s *S3Storage) Key(jobID string) (string, error) {
	name, err := ReportName(jobID)
	if err != nil {
		return "", err
	}
	return s.prefix + name, nil
}

// Store uploads content as <prefix><jobID>.md and returns a presigned GET
// URL valid for the configured TTL.
func (s *S3Storage) Store(ctx context.Context, jobID, content string) (string, error) {
	key, err := s.Key(jobID)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/markdown; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("upload report to S3: %w", err)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlTTL))
	if err != nil {
		return "", fmt.Errorf("presign report URL: %w", err)
	}

	return req.URL, nil
}
