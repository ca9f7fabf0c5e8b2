package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Storage implements remote storage for S3-compatible services.
// Identifiers are object keys relative to the configured path.
type S3Storage struct {
	client *s3.Client
	config *S3Config
}

// S3Config holds the configuration for S3-compatible storage
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Path            string
	PageSize        int32
}

// NewS3Storage creates a new S3 storage instance
func NewS3Storage(ctx context.Context, config *S3Config) (*S3Storage, error) {
	debugLog("Creating S3 storage for bucket %s at %q", config.Bucket, config.Endpoint)

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			"",
		)))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Custom endpoints (B2, MinIO, ...) use path-style addressing
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client: client,
		config: config,
	}, nil
}

// key returns the full object key for an identifier
func (s *S3Storage) key(id string) string {
	prefix := strings.TrimPrefix(s.config.Path, "./")
	if prefix == "" {
		return id
	}
	return path.Join(prefix, id)
}

// id returns the identifier for a full object key
func (s *S3Storage) id(key string) string {
	prefix := strings.TrimPrefix(s.config.Path, "./")
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, strings.TrimSuffix(prefix, "/")), "/")
}

// statusCode returns the HTTP status of a failed S3 call, or zero
func statusCode(err error) int {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}

// Upload uploads a file to S3 storage under remoteName. An existing object
// with the same key is never replaced.
func (s *S3Storage) Upload(ctx context.Context, localPath, remoteName string) (string, error) {
	debugLog("Uploading %s to %s", localPath, remoteName)

	key := s.key(remoteName)

	// Not every S3-compatible service honors If-None-Match. Without
	// s3:ListBucket a missing key answers 403 instead of 404.
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return "", fmt.Errorf("upload %s: %w", remoteName, ErrExists)
	}
	if code := statusCode(err); code != http.StatusNotFound && code != http.StatusForbidden {
		return "", fmt.Errorf("failed to check object: %w", err)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open local file: %w", err)
	}
	defer file.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(zipMimeType),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		if statusCode(err) == http.StatusPreconditionFailed {
			return "", fmt.Errorf("upload %s: %w", remoteName, ErrExists)
		}
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	debugLog("Upload completed successfully")
	return remoteName, nil
}

// Download downloads an object from S3 storage
func (s *S3Storage) Download(ctx context.Context, id, localPath string) error {
	debugLog("Downloading %s to %s", id, localPath)

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) || statusCode(err) == http.StatusNotFound {
			return fmt.Errorf("failed to get object %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to get object: %w", err)
	}
	defer result.Body.Close()

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, result.Body); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	return file.Close()
}

// List lists all objects under the configured path
func (s *S3Storage) List(ctx context.Context) ([]RemoteFile, error) {
	prefix := strings.TrimPrefix(s.config.Path, "./")
	debugLog("Listing objects with prefix: %s", prefix)

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.config.Bucket),
		Prefix: aws.String(prefix),
	}
	if s.config.PageSize > 0 {
		input.MaxKeys = aws.Int32(s.config.PageSize)
	}

	files := []RemoteFile{}
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			// Skip if object is a directory
			if strings.HasSuffix(aws.ToString(obj.Key), "/") {
				continue
			}

			id := s.id(aws.ToString(obj.Key))
			files = append(files, RemoteFile{
				ID:      id,
				Name:    path.Base(id),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	debugLog("Found %d objects", len(files))
	return files, nil
}

// Delete deletes an object from S3 storage
func (s *S3Storage) Delete(ctx context.Context, id string) error {
	debugLog("Deleting object: %s", id)

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// Close closes any open connections
func (s *S3Storage) Close() error {
	// No connections to close for S3
	return nil
}
