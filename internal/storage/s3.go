package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds explicit construction parameters. Credentials fall back to
// the default AWS chain when AccessKeyID is empty.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"` // optional, e.g. MinIO
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// S3Store keeps each key as an object; revisions are ETags and writes are
// conditional. A multi-key commit is applied in order and earlier writes
// are restored if a later one fails.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3StoreFromClient(client, cfg.Bucket, cfg.Prefix), nil
}

func NewS3StoreFromClient(client *s3.Client, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) Get(ctx context.Context, key string) (Item, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: aws.String(s.objectKey(key))})
	if statusCode(err) == http.StatusNotFound {
		return Item{}, nil
	}
	if err != nil {
		return Item{}, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return Item{}, fmt.Errorf("read object %s: %w", key, err)
	}
	return Item{Value: body, Revision: Revision(aws.ToString(out.ETag))}, nil
}

func (s *S3Store) Commit(ctx context.Context, writes ...Write) error {
	if err := checkWrites(writes); err != nil {
		return err
	}

	previous := make([]Item, len(writes))
	for i, w := range writes {
		item, err := s.Get(ctx, w.Key)
		if err != nil {
			return err
		}
		if item.Revision != w.Expect {
			return conflict(w.Key)
		}
		previous[i] = item
	}

	applied := make([]Revision, 0, len(writes))
	for _, w := range writes {
		rev, err := s.put(ctx, w.Key, w.Value, w.Expect)
		if err != nil {
			s.rollback(ctx, writes[:len(applied)], previous, applied)
			if statusCode(err) == http.StatusPreconditionFailed {
				return conflict(w.Key)
			}
			return fmt.Errorf("put object %s: %w", w.Key, err)
		}
		applied = append(applied, rev)
	}
	return nil
}

func (s *S3Store) Close() error { return nil }

func (s *S3Store) put(ctx context.Context, key string, value []byte, expect Revision) (Revision, error) {
	input := &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/json"),
	}
	if expect == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(string(expect))
	}
	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return "", err
	}
	return Revision(aws.ToString(out.ETag)), nil
}

// rollback restores keys that were already overwritten by a failed commit.
// Failures are logged; the caller sees the commit error.
func (s *S3Store) rollback(ctx context.Context, writes []Write, previous []Item, applied []Revision) {
	for i, w := range writes {
		var err error
		if previous[i].Exists() {
			_, err = s.put(ctx, w.Key, previous[i].Value, applied[i])
		} else {
			_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: aws.String(s.objectKey(w.Key))})
		}
		if err != nil {
			slog.Error("Failed to roll back s3 write", "key", w.Key, "error", err)
		}
	}
}

func (s *S3Store) objectKey(key string) string {
	return s.prefix + key + ".json"
}

func statusCode(err error) int {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}
