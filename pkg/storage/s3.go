package storage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"go.uber.org/zap"

	"github.com/wdm0006/songlake/pkg/apperrors"
)

// S3Options configures the S3 client. Credentials left empty fall back to the
// SDK's default provider chain.
type S3Options struct {
	Region          string
	Endpoint        string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	MaxRetries      int
}

// S3Store maps keys onto objects below bucket/prefix.
type S3Store struct {
	client     *s3.S3
	downloader *s3manager.Downloader
	uploader   *s3manager.Uploader
	bucket     string
	prefix     string
	logger     *zap.Logger
}

func NewS3Store(bucket, prefix string, opt S3Options, logger *zap.Logger) (*S3Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if (opt.AccessKeyID == "") != (opt.SecretAccessKey == "") {
		return nil, fmt.Errorf("%w: access key id and secret access key must be set together", apperrors.ErrMissingCredentials)
	}
	region := opt.Region
	if region == "" {
		region = "us-west-2"
	}
	cfg := aws.NewConfig().WithRegion(region).WithS3ForcePathStyle(opt.ForcePathStyle)
	if opt.AccessKeyID != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(opt.AccessKeyID, opt.SecretAccessKey, opt.SessionToken))
	}
	if opt.Endpoint != "" {
		cfg = cfg.WithEndpoint(opt.Endpoint)
	}
	if opt.MaxRetries > 0 {
		cfg = cfg.WithMaxRetries(opt.MaxRetries)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{
		client:     s3.New(sess),
		downloader: s3manager.NewDownloader(sess),
		uploader:   s3manager.NewUploader(sess),
		bucket:     bucket,
		prefix:     prefix,
		logger:     logger,
	}, nil
}

func (s *S3Store) String() string { return "s3://" + s.bucket + "/" + s.prefix }

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.client.ListObjectsV2PagesWithContext(ctx,
		&s3.ListObjectsV2Input{Bucket: aws.String(s.bucket), Prefix: aws.String(s.prefix + prefix)},
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				keys = append(keys, strings.TrimPrefix(aws.StringValue(obj.Key), s.prefix))
			}
			return true
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.bucket, s.prefix+prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	buf := aws.NewWriteAtBuffer(nil)
	_, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	result, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	s.logger.Debug("Uploaded object", zap.String("location", result.Location), zap.Int("bytes", len(data)))
	return nil
}

func (s *S3Store) DeletePrefix(ctx context.Context, prefix string) error {
	iter := s3manager.NewDeleteListIterator(s.client, &s3.ListObjectsInput{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + prefix),
	})
	if err := s3manager.NewBatchDeleteWithClient(s.client).Delete(ctx, iter); err != nil {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", s.bucket, s.prefix+prefix, err)
	}
	return nil
}
