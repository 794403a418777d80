package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"estatelink/marketplace/internal/config"
	"estatelink/marketplace/internal/logging"
)

// ErrBlobNotFound is returned when a key does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// BlobInfo describes a stored object.
type BlobInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// IBlobStore defines the blob operations the document tracker relies on.
type IBlobStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, keys ...string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// s3Storage implements IBlobStore.
type s3Storage struct {
	bucket        string
	s3Client      *s3.Client
	presignClient *s3.PresignClient
}

// NewS3Storage creates a new S3 storage service.
func NewS3Storage(cfg *config.Config) (IBlobStore, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// S3-compatible stores (MinIO, LocalStack) need path-style addressing.
		if cfg.AwsS3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AwsS3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &s3Storage{
		bucket:        cfg.AwsS3Bucket,
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
	}, nil
}

func (s *s3Storage) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Remove deletes keys in one batch. Missing keys are not an error.
func (s *s3Storage) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(k)})
	}
	out, err := s.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to remove %v: %w", keys, err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("failed to remove %s: %s", aws.ToString(first.Key), aws.ToString(first.Message))
	}
	return nil
}

// PresignGet creates a time-limited download URL. Every call signs a new URL.
func (s *s3Storage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned GET URL for key %s: %w", key, err)
	}
	logging.GetLogger().WithFields(logrus.Fields{"key": key, "ttl": ttl.String()}).Debug("generated presigned URL")
	return req.URL, nil
}

func (s *s3Storage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%s: %w", key, ErrBlobNotFound)
		}
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	return out.Body, nil
}

func (s *s3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", key, err)
}

func (s *s3Storage) List(ctx context.Context, prefix string) ([]BlobInfo, error) {
	var blobs []BlobInfo
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			blobs = append(blobs, BlobInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return blobs, nil
}
