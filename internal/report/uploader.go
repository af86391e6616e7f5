// Package report uploads run reports to an S3-compatible bucket (AWS S3 or
// MinIO). One object per run: {prefix}/{run_id}.json.
package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/roach88/topoload/internal/inventory"
)

// Config holds the bucket settings.
type Config struct {
	Bucket   string
	Region   string // default us-east-1
	Endpoint string // optional; enables path-style addressing (MinIO)
	Prefix   string

	// Static credentials; the default AWS chain is used when empty.
	AccessKeyID     string
	SecretAccessKey string
}

// Uploader writes reports to one bucket.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// Option configures an Uploader.
type Option func(*s3.Options)

// WithHTTPClient replaces the transport. Used by tests.
func WithHTTPClient(h s3.HTTPClient) Option {
	return func(o *s3.Options) { o.HTTPClient = h }
}

// New creates an Uploader from cfg.
func New(ctx context.Context, cfg Config, logger *slog.Logger, opts ...Option) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("report bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		for _, opt := range opts {
			opt(o)
		}
	})
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, logger: logger}, nil
}

// Key is the object key of a run's report.
func (u *Uploader) Key(runID string) string {
	return path.Join(u.prefix, runID+".json")
}

// Upload stores report as indented canonical JSON and returns the object key.
func (u *Uploader) Upload(ctx context.Context, runID string, report any) (string, error) {
	body, err := inventory.MarshalCanonicalIndent(report)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	key := u.Key(runID)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
		Metadata:      map[string]string{"run-id": runID},
	})
	if err != nil {
		return "", fmt.Errorf("upload report %s: %w", key, err)
	}
	u.logger.Info("uploaded run report", "bucket", u.bucket, "key", key, "bytes", len(body))
	return key, nil
}
