// Package media stores profile images in an S3-compatible bucket. Register
// hands it files by local path and gets back a public URL plus the object
// key used to delete the object later.
package media

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/vidtube/internal/server/config"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// objectAPI is the part of *s3.Client the storage uses.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}

	now = time.Now
)

// S3Storage uploads and deletes media objects.
type S3Storage struct {
	client    objectAPI
	bucket    string
	publicURL string
}

// NewS3Storage builds an S3 client for the configured endpoint with static
// credentials. Path-style addressing keeps it compatible with MinIO.
func NewS3Storage(ctx context.Context, c *sc.Config) (*S3Storage, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3AccessKey,
			c.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, oops.Code("S3_CONFIG_FAILED").Wrap(err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	publicURL := c.S3PublicURL
	if publicURL == "" {
		publicURL = strings.TrimRight(c.S3BaseEndpoint, "/") + "/" + c.S3Bucket
	}

	return &S3Storage{client: client, bucket: c.S3Bucket, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// objectKey places uploads under a dated prefix with a random name, keeping
// the original extension.
func objectKey(path string) string {
	d := now()
	return fmt.Sprintf("users/%d/%02d/%02d/%v%s", d.Year(), d.Month(), d.Day(), uuid.New(), strings.ToLower(filepath.Ext(path)))
}

// Upload stores the file at path and removes the local copy whether or not
// the upload succeeds.
func (s *S3Storage) Upload(ctx context.Context, path string) (*models.MediaRef, error) {
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, oops.Code("MEDIA_READ_FAILED").With("path", path).Wrap(err)
	}
	defer f.Close()

	key := objectKey(path)
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return nil, oops.Code("MEDIA_UPLOAD_FAILED").With("bucket", s.bucket, "key", key).Wrap(err)
	}

	return &models.MediaRef{URL: s.publicURL + "/" + key, PublicID: key}, nil
}

// Delete removes the object identified by publicID.
func (s *S3Storage) Delete(ctx context.Context, publicID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return oops.Code("MEDIA_DELETE_FAILED").With("bucket", s.bucket, "key", publicID).Wrap(err)
	}
	return nil
}
