package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/logandonley/secure-gdrive/pkg/archive"
	"github.com/logandonley/secure-gdrive/pkg/auth"
	"github.com/logandonley/secure-gdrive/pkg/config"
	"github.com/logandonley/secure-gdrive/pkg/storage"
	"github.com/logandonley/secure-gdrive/pkg/workspace"
	"google.golang.org/api/drive/v3"
)

// Debug controls verbose logging
var Debug bool

// debugLog prints a log message only if Debug is true
func debugLog(format string, v ...interface{}) {
	if Debug {
		log.Printf(format, v...)
	}
}

// ErrAmbiguousID is returned when more than one remote file carries the requested identifier
var ErrAmbiguousID = errors.New("identifier matches more than one remote file")

// Manager runs the list, remove, upload and fetch operations against one remote
type Manager struct {
	config *config.Config
	store  storage.Storage
	// remote labels the backend in progress messages
	remote string
	out    io.Writer
}

// NewManager creates a manager for the backend selected in cfg. For Google
// Drive the authorization code is read from in on first use.
func NewManager(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*Manager, error) {
	store, remote, err := newStorage(ctx, cfg, in, out)
	if err != nil {
		return nil, err
	}

	return &Manager{
		config: cfg,
		store:  store,
		remote: remote,
		out:    out,
	}, nil
}

// NewManagerWithStorage creates a manager for an already constructed backend
func NewManagerWithStorage(cfg *config.Config, store storage.Storage, remote string, out io.Writer) *Manager {
	return &Manager{
		config: cfg,
		store:  store,
		remote: remote,
		out:    out,
	}
}

// NewAuthorizer creates the Google authorizer described by cfg.Auth
func NewAuthorizer(cfg *config.Config, in io.Reader, out io.Writer) (*auth.Authorizer, error) {
	credentials, err := config.ExpandPath(cfg.Auth.CredentialsFile)
	if err != nil {
		return nil, err
	}
	token, err := config.ExpandPath(cfg.Auth.TokenFile)
	if err != nil {
		return nil, err
	}

	authorizer, err := auth.NewAuthorizer(credentials, token, cfg.Auth.RedirectURL, drive.DriveFileScope)
	if err != nil {
		return nil, err
	}
	authorizer.In = in
	authorizer.Out = out
	return authorizer, nil
}

func newStorage(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (storage.Storage, string, error) {
	debugLog("Creating %s storage", cfg.Remote.Backend)

	switch cfg.Remote.Backend {
	case config.BackendDrive:
		authorizer, err := NewAuthorizer(cfg, in, out)
		if err != nil {
			return nil, "", fmt.Errorf("failed to authorize: %w", err)
		}
		client, err := authorizer.Client(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("failed to authorize: %w", err)
		}
		store, err := storage.NewDriveStorage(ctx, client, &storage.DriveConfig{
			ApplicationName: cfg.Remote.Drive.ApplicationName,
			Endpoint:        cfg.Remote.Drive.Endpoint,
			PageSize:        int64(cfg.Remote.PageSize),
		})
		if err != nil {
			return nil, "", err
		}
		return store, "GDrive", nil

	case config.BackendS3:
		store, err := storage.NewS3Storage(ctx, &storage.S3Config{
			Endpoint:        cfg.Remote.S3.Endpoint,
			Region:          cfg.Remote.S3.Region,
			Bucket:          cfg.Remote.S3.Bucket,
			AccessKeyID:     cfg.Remote.S3.AccessKeyID,
			SecretAccessKey: cfg.Remote.S3.SecretAccessKey,
			Path:            cfg.Remote.S3.Path,
			PageSize:        int32(cfg.Remote.PageSize),
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to create S3 storage: %w", err)
		}
		return store, "S3", nil

	case config.BackendSFTP:
		keyFile, err := config.ExpandPath(cfg.Remote.SFTP.KeyFile)
		if err != nil {
			return nil, "", err
		}
		knownHosts, err := config.ExpandPath(cfg.Remote.SFTP.KnownHostsFile)
		if err != nil {
			return nil, "", err
		}
		store, err := storage.NewSFTPStorage(ctx, &storage.SFTPConfig{
			Host:           cfg.Remote.SFTP.Host,
			Port:           cfg.Remote.SFTP.Port,
			Username:       cfg.Remote.SFTP.Username,
			KeyFile:        keyFile,
			KnownHostsFile: knownHosts,
			Path:           cfg.Remote.SFTP.Path,
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to create SFTP storage: %w", err)
		}
		return store, "SFTP", nil
	}

	return nil, "", fmt.Errorf("unknown remote backend %q", cfg.Remote.Backend)
}

// Close closes the remote connection
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Close(); err != nil {
		return fmt.Errorf("failed to close %s storage: %w", m.remote, err)
	}
	return nil
}

// ListFiles prints every remote file the application can access. With long
// set, sizes and modification ages are printed as well.
func (m *Manager) ListFiles(ctx context.Context, long bool) error {
	files, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	fmt.Fprintln(m.out, "Accessible files:")
	if len(files) == 0 {
		fmt.Fprintln(m.out, "You haven't made any files yet")
		return nil
	}

	for _, f := range files {
		if !long {
			fmt.Fprintf(m.out, "%s (%s)\n", f.Name, f.ID)
			continue
		}
		age := "unknown"
		if !f.ModTime.IsZero() {
			age = humanize.Time(f.ModTime)
		}
		fmt.Fprintf(m.out, "%s (%s)  %s  %s\n", f.Name, f.ID, humanize.Bytes(uint64(f.Size)), age)
	}
	return nil
}

// Resolve finds the remote file with the given identifier
func (m *Manager) Resolve(ctx context.Context, id string) (storage.RemoteFile, error) {
	files, err := m.store.List(ctx)
	if err != nil {
		return storage.RemoteFile{}, fmt.Errorf("failed to list files: %w", err)
	}

	var matches []storage.RemoteFile
	for _, f := range files {
		if f.ID == id {
			matches = append(matches, f)
		}
	}

	switch len(matches) {
	case 0:
		return storage.RemoteFile{}, fmt.Errorf("file %s: %w", id, storage.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return storage.RemoteFile{}, fmt.Errorf("file %s (%d matches): %w", id, len(matches), ErrAmbiguousID)
	}
}

// RemoveFile deletes the remote file with the given identifier
func (m *Manager) RemoveFile(ctx context.Context, id string) error {
	file, err := m.Resolve(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Removing file %s (%s)\n", file.Name, file.ID)
	if err := m.store.Delete(ctx, file.ID); err != nil {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	fmt.Fprintf(m.out, "File %s (%s) removed\n", file.Name, file.ID)
	return nil
}

// ZipUpload archives and encrypts source, uploads it under name and returns
// the identifier assigned by the remote.
func (m *Manager) ZipUpload(ctx context.Context, source, name, password string) (string, error) {
	if _, err := archive.CheckSource(source); err != nil {
		return "", err
	}

	ws, err := m.createWorkspace()
	if err != nil {
		return "", err
	}
	defer m.cleanupWorkspace(ws)

	result, err := archive.Protect(ctx, source, ws.Path(), password, archive.Options{
		Exclude: m.config.Archive.Exclude,
		Out:     m.out,
	})
	if err != nil {
		return "", err
	}

	size := "unknown size"
	if info, err := os.Stat(result.Protected); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}

	fmt.Fprintf(m.out, "Starting upload of '%s' (%s) -> '%s:%s'\n", result.Protected, size, m.remote, name)
	start := time.Now()
	id, err := m.store.Upload(ctx, result.Protected, name)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", result.Protected, err)
	}
	debugLog("Upload took %s", time.Since(start))

	fmt.Fprintf(m.out, "Uploaded '%s' -> '%s:%s', %s id: %s\n", result.Protected, m.remote, name, m.remote, id)
	return id, nil
}

// Fetch downloads the remote file with the given identifier and decrypts it
// into destination.
func (m *Manager) Fetch(ctx context.Context, id, destination, password string) error {
	ws, err := m.createWorkspace()
	if err != nil {
		return err
	}
	defer m.cleanupWorkspace(ws)

	file, err := m.Resolve(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "Downloading file %s (%s)\n", file.Name, file.ID)
	local := ws.Join(localName(file))
	if err := m.store.Download(ctx, file.ID, local); err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	fmt.Fprintf(m.out, "File %s (%s) downloaded '%s:%s' -> '%s'\n", file.Name, file.ID, m.remote, file.Name, local)

	fmt.Fprintf(m.out, "Decrypting zip '%s' -> '%s'\n", local, destination)
	folder, err := archive.Unprotect(ctx, local, ws.Path(), destination, password)
	if err != nil {
		return err
	}
	debugLog("Fetched %s into %s (folder bundle: %t)", file.ID, destination, folder)
	return nil
}

func (m *Manager) createWorkspace() (*workspace.Workspace, error) {
	root, err := config.ExpandPath(m.config.Workspace.Root)
	if err != nil {
		return nil, err
	}

	ws, err := workspace.Create(root)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(m.out, "Creating workfolder '%s'\n", ws.Path())
	return ws, nil
}

func (m *Manager) cleanupWorkspace(ws *workspace.Workspace) {
	fmt.Fprintf(m.out, "Cleaning up workfolder '%s'\n", ws.Path())
	if err := ws.Cleanup(); err != nil {
		log.Printf("Warning: %v", err)
	}
}

// localName returns the workspace file name for a downloaded remote file
func localName(file storage.RemoteFile) string {
	name := filepath.Base(file.Name)
	switch name {
	case ".", "..", string(filepath.Separator), "":
		return "download.zip"
	}
	return name
}
