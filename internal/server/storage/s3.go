package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/dmitrijs2005/lexisync/internal/logging"
	"github.com/dmitrijs2005/lexisync/internal/server/config"
	"github.com/dmitrijs2005/lexisync/internal/server/models"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// objectAPI is the part of *s3.Client used by S3Store.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures S3Store. BaseEndpoint selects an S3-compatible
// service such as MinIO and switches to path-style addressing. Static
// credentials are used when AccessKey is set, otherwise the default AWS
// credential chain applies.
type S3Options struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Prefix       string
}

// S3Store keeps each record as one JSON object at {Prefix}{key}.json.
type S3Store struct {
	client objectAPI
	bucket string
	prefix string
	logger logging.Logger
}

func NewS3Store(ctx context.Context, opts S3Options, logger logging.Logger) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, opts.Bucket, opts.Prefix, logger), nil
}

func newS3Store(client objectAPI, bucket, prefix string, logger logging.Logger) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

func (s *S3Store) Name() string { return config.BackendS3 }

func (s *S3Store) objectKey(username string) string {
	return s.prefix + RecordKey(username) + ".json"
}

// Get reads the record object. Every failure, including a missing object,
// is reported as not found.
func (s *S3Store) Get(ctx context.Context, username string) (*models.UserRecord, error) {
	key := s.objectKey(username)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "NoSuchKey" {
			s.logger.Warn(ctx, "s3 read failed, treating as missing", "key", key, "error", err)
		}
		return nil, common.ErrorNotFound
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		s.logger.Warn(ctx, "s3 read failed, treating as missing", "key", key, "error", err)
		return nil, common.ErrorNotFound
	}

	rec := &models.UserRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("s3 get %s: decode record: %w", key, err)
	}
	return rec, nil
}

// Put writes the record object. Any failure is a *common.StoreWriteError.
func (s *S3Store) Put(ctx context.Context, record *models.UserRecord) error {
	key := s.objectKey(record.Username)

	raw, err := json.Marshal(record)
	if err != nil {
		return &common.StoreWriteError{Backend: config.BackendS3, Key: key, Err: err}
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(raw),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(raw))),
	})
	if err != nil {
		return &common.StoreWriteError{Backend: config.BackendS3, Key: key, Err: err}
	}
	return nil
}

func (s *S3Store) Close() error { return nil }
