package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	sc "github.com/dmitrijs2005/gophsync/internal/server/config"
	"github.com/google/uuid"
)

// BlobStore holds attachment bytes. Clients upload directly through
// presigned URLs; the server only signs, probes and deletes.
type BlobStore interface {
	PresignPut(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}

	headObject = func(c *s3.Client, ctx context.Context, in *s3.HeadObjectInput) error {
		_, err := c.HeadObject(ctx, in)
		return err
	}

	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput) error {
		_, err := c.DeleteObject(ctx, in)
		return err
	}
)

// S3BlobStore is a BlobStore over an S3-compatible bucket (MinIO in
// development).
type S3BlobStore struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

func NewS3BlobStore(ctx context.Context, c *sc.Config) (*S3BlobStore, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3RootUser,
			c.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3BlobStore{
		client:  client,
		presign: newS3PresignClient(client),
		bucket:  c.S3Bucket,
		expiry:  c.PresignExpiry,
	}, nil
}

func (s *S3BlobStore) PresignPut(ctx context.Context, key string) (string, error) {
	req, err := presignPutObject(s.presign, ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// Exists reports whether key is stored. A missing object is not an error.
func (s *S3BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	err := headObject(s.client, ctx, &s3.HeadObjectInput{
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
	return false, fmt.Errorf("head object %s: %w", key, err)
}

func (s *S3BlobStore) Delete(ctx context.Context, key string) error {
	return deleteObject(s.client, ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
}

// newStorageKey is a seam for tests.
var newStorageKey = func(now time.Time) string {
	return fmt.Sprintf("attachments/%d/%02d/%02d/%s", now.Year(), now.Month(), now.Day(), uuid.New())
}
