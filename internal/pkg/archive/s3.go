package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures the bucket writer.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	PathStyle       bool
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 writes snapshots as objects in a bucket.
type S3 struct {
	client putObjectAPI
	bucket string
	prefix string
}

// NewS3 builds an S3 client with static credentials.
func NewS3(opts S3Options) (*S3, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	region := strings.TrimSpace(opts.Region)
	accessKey := strings.TrimSpace(opts.AccessKeyID)
	secretKey := strings.TrimSpace(opts.SecretAccessKey)
	if bucket == "" || region == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("incomplete s3 config: bucket/region/access_key_id/secret_access_key are required")
	}

	s3opts := s3.Options{
		Region:       region,
		Credentials:  aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		UsePathStyle: opts.PathStyle,
	}
	if endpoint := strings.TrimSpace(opts.Endpoint); endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		s3opts.BaseEndpoint = aws.String(endpoint)
		// custom endpoints (minio, r2) generally need path-style addressing
		s3opts.UsePathStyle = true
	}

	return &S3{
		client: s3.New(s3opts),
		bucket: bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
	}, nil
}

func (s *S3) Write(ctx context.Context, address string, entries []Entry, at time.Time) (string, error) {
	payload, err := encode(entries)
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}

	key := ObjectName(address, at)
	if s.prefix != "" {
		key = path.Join(s.prefix, key)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(payload))),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
