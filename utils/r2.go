// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrR2NotConfigured is returned by uploads when InitR2 was skipped
var ErrR2NotConfigured = errors.New("R2 storage is not configured")

// R2Config carries the Cloudflare R2 credentials
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Enabled reports whether enough settings are present to talk to R2
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.AccessKeySecret != "" && c.Bucket != ""
}

// ObjectPutter is the slice of the S3 API used for uploads
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Uploader stores public assets (achievement icons) in an R2 bucket
type R2Uploader struct {
	client     ObjectPutter
	bucket     string
	cdnBaseURL string
}

// NewR2Uploader wires an uploader around any S3-compatible client
func NewR2Uploader(client ObjectPutter, bucket, cdnBaseURL string) *R2Uploader {
	return &R2Uploader{client: client, bucket: bucket, cdnBaseURL: cdnBaseURL}
}

func InitR2(ctx context.Context, c R2Config) (*R2Uploader, error) {
	if !c.Enabled() {
		return nil, ErrR2NotConfigured
	}
	cdnBaseURL := c.CDNBaseURL
	if cdnBaseURL == "" {
		cdnBaseURL = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKeyID, c.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID))
	})
	return NewR2Uploader(client, c.Bucket, cdnBaseURL), nil
}

// UploadFile uploads a multipart file to R2 and returns the public URL.
// key is the R2 object key (e.g., "achievements/abc123.png")
func (u *R2Uploader) UploadFile(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error) {
	if u == nil {
		return "", ErrR2NotConfigured
	}
	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, file); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(fileHeader.Header.Get("Content-Type")),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}

	return fmt.Sprintf("%s/%s", u.cdnBaseURL, key), nil
}
