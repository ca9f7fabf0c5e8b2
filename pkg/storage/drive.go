package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const zipMimeType = "application/zip"

// DriveConfig holds the configuration for Google Drive storage
type DriveConfig struct {
	ApplicationName string
	// Endpoint overrides the Drive API base URL; empty uses the public API
	Endpoint string
	PageSize int64
}

// DriveStorage implements remote storage on Google Drive. With the drive.file
// scope only files created by this application are visible.
type DriveStorage struct {
	service *drive.Service
	config  *DriveConfig
}

// NewDriveStorage creates a Drive storage instance that sends requests through
// client, which must already carry OAuth credentials.
func NewDriveStorage(ctx context.Context, client *http.Client, config *DriveConfig) (*DriveStorage, error) {
	debugLog("Creating Drive storage with config: %+v", config)

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(config.Endpoint))
	}

	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	service.UserAgent = config.ApplicationName

	return &DriveStorage{
		service: service,
		config:  config,
	}, nil
}

// List lists all non-trashed files visible to the application
func (s *DriveStorage) List(ctx context.Context) ([]RemoteFile, error) {
	debugLog("Listing Drive files with page size %d", s.config.PageSize)

	call := s.service.Files.List().
		Q("trashed = false").
		Fields("nextPageToken, files(id, name, size, modifiedTime)")
	if s.config.PageSize > 0 {
		call = call.PageSize(s.config.PageSize)
	}

	files := []RemoteFile{}
	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			files = append(files, RemoteFile{
				ID:      f.Id,
				Name:    f.Name,
				Size:    f.Size,
				ModTime: parseDriveTime(f.ModifiedTime),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	debugLog("Found %d Drive files", len(files))
	return files, nil
}

// Upload uploads a local ZIP file to Drive under remoteName
func (s *DriveStorage) Upload(ctx context.Context, localPath, remoteName string) (string, error) {
	debugLog("Uploading %s to Drive as %s", localPath, remoteName)

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open local file: %w", err)
	}
	defer file.Close()

	created, err := s.service.Files.Create(&drive.File{
		Name:     remoteName,
		MimeType: zipMimeType,
	}).
		Media(file, googleapi.ContentType(zipMimeType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	debugLog("Upload completed successfully, id %s", created.Id)
	return created.Id, nil
}

// Download downloads the content of a Drive file to localPath
func (s *DriveStorage) Download(ctx context.Context, id, localPath string) error {
	debugLog("Downloading Drive file %s to %s", id, localPath)

	resp, err := s.service.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("failed to download file %s: %w", id, driveError(err))
	}
	defer resp.Body.Close()

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	return file.Close()
}

// Delete permanently deletes a Drive file
func (s *DriveStorage) Delete(ctx context.Context, id string) error {
	debugLog("Deleting Drive file: %s", id)

	if err := s.service.Files.Delete(id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", id, driveError(err))
	}
	return nil
}

// Close closes any open connections
func (s *DriveStorage) Close() error {
	// The HTTP client is owned by the caller
	return nil
}

// driveError maps a 404 from the Drive API to ErrNotFound
func driveError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func parseDriveTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
