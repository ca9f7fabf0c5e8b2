package storage

import (
	"context"
	"errors"
	"log"
	"time"
)

// Debug controls verbose logging
var Debug bool

// debugLog prints a log message only if Debug is true
func debugLog(format string, v ...interface{}) {
	if Debug {
		log.Printf(format, v...)
	}
}

// ErrNotFound is returned when no remote object has the requested identifier
var ErrNotFound = errors.New("remote file not found")

// ErrExists is returned when an upload would replace an existing remote object
var ErrExists = errors.New("remote file already exists")

// RemoteFile represents an object stored in the remote account
type RemoteFile struct {
	// ID is the opaque identifier assigned by the backend
	ID string
	// Name is the display name given at upload
	Name string
	// Size is the object size in bytes, zero when the backend does not report it
	Size int64
	// ModTime is the last modification time, zero when the backend does not report it
	ModTime time.Time
}

// Storage defines the interface for remote storage implementations
type Storage interface {
	// List lists every object the application can access, in backend order
	List(ctx context.Context) ([]RemoteFile, error)

	// Upload creates a new object from a local file and returns its identifier
	Upload(ctx context.Context, localPath, remoteName string) (string, error)

	// Download writes the content of the object with the given identifier to localPath
	Download(ctx context.Context, id, localPath string) error

	// Delete deletes the object with the given identifier
	Delete(ctx context.Context, id string) error

	// Close closes any open connections
	Close() error
}
