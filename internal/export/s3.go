package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alfredjeanlab/reqgraph/internal/clock"
)

// s3API is the subset of *s3.Client used by S3Destination.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Destination writes JSONL data to an S3-compatible bucket. Besides the
// configured key, each write also stores a timestamped retention copy next
// to it when Retain is set.
type S3Destination struct {
	client s3API
	bucket string
	key    string
	clock  clock.Clock

	Retain bool
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return newS3Destination(s3.NewFromConfig(cfg, s3opts...), bucket, key, clock.Real()), nil
}

func newS3Destination(client s3API, bucket, key string, clk clock.Clock) *S3Destination {
	return &S3Destination{
		client: client,
		bucket: bucket,
		key:    key,
		clock:  clk,
	}
}

// Name identifies the destination in logs.
func (d *S3Destination) Name() string {
	return "s3://" + d.bucket + "/" + d.key
}

// Write uploads data to S3 as the configured object key.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	if err := d.put(ctx, d.key, data); err != nil {
		return err
	}
	if d.Retain {
		if err := d.put(ctx, retentionKey(d.key, d.clock.Now()), data); err != nil {
			return err
		}
	}
	return nil
}

func (d *S3Destination) put(ctx context.Context, key string, data []byte) error {
	contentType := "application/x-ndjson"
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return nil
}

// retentionKey inserts a UTC timestamp before the key's extension:
// "reqgraph/export.jsonl" becomes "reqgraph/export-20260701T090000Z.jsonl".
func retentionKey(key string, at time.Time) string {
	stamp := at.UTC().Format("20060102T150405Z")
	slash := strings.LastIndex(key, "/")
	if dot := strings.LastIndex(key, "."); dot > slash {
		return key[:dot] + "-" + stamp + key[dot:]
	}
	return key + "-" + stamp
}
