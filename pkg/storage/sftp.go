package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPConfig holds the configuration for SFTP storage
type SFTPConfig struct {
	Host           string
	Port           int
	Username       string
	KeyFile        string
	KnownHostsFile string
	Path           string
}

// SFTPStorage implements remote storage on an SFTP server (a NAS, a VPS, ...).
// Identifiers are file names inside the configured directory.
type SFTPStorage struct {
	config     *SFTPConfig
	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

// NewSFTPStorage connects to the SFTP server described by config
func NewSFTPStorage(ctx context.Context, config *SFTPConfig) (*SFTPStorage, error) {
	debugLog("Creating SFTP storage for %s@%s:%d", config.Username, config.Host, config.Port)

	key, err := os.ReadFile(config.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key file %s: %w", config.KeyFile, err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key: %w", err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if config.KnownHostsFile != "" {
		hostKeyCallback, err = knownhosts.New(config.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts file %s: %w", config.KnownHostsFile, err)
		}
	} else {
		debugLog("No known_hosts file configured, host key will not be verified")
	}

	sshConfig := &ssh.ClientConfig{
		User:            config.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
	}

	addr := net.JoinHostPort(config.Host, fmt.Sprint(config.Port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to establish SSH connection: %w", err)
	}
	sshClient := ssh.NewClient(c, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}

	return &SFTPStorage{
		config:     config,
		sshClient:  sshClient,
		sftpClient: sftpClient,
	}, nil
}

// NewSFTPStorageFromClient wraps an already connected SFTP client
func NewSFTPStorageFromClient(client *sftp.Client, config *SFTPConfig) *SFTPStorage {
	return &SFTPStorage{
		config:     config,
		sftpClient: client,
	}
}

// Close closes the SFTP and SSH connections
func (s *SFTPStorage) Close() error {
	var errs []error
	if s.sftpClient != nil {
		if err := s.sftpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close SFTP client: %w", err))
		}
	}
	if s.sshClient != nil {
		if err := s.sshClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close SSH client: %w", err))
		}
	}
	return errors.Join(errs...)
}

// dir returns the remote directory holding uploaded files
func (s *SFTPStorage) dir() string {
	dir := strings.TrimPrefix(s.config.Path, "./")
	if dir == "" {
		return "."
	}
	return path.Clean(dir)
}

// remotePath returns the full remote path for an identifier
func (s *SFTPStorage) remotePath(id string) (string, error) {
	if id == "" || id != path.Base(id) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid file identifier %q", id)
	}
	return path.Join(s.dir(), id), nil
}

// Upload uploads a file to the SFTP server under remoteName. An existing
// file of the same name is never replaced.
func (s *SFTPStorage) Upload(ctx context.Context, localPath, remoteName string) (string, error) {
	debugLog("Starting upload: local=%s, remote=%s", localPath, remoteName)

	remotePath, err := s.remotePath(remoteName)
	if err != nil {
		return "", err
	}

	localFile, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open local file: %w", err)
	}
	defer localFile.Close()

	if err := s.sftpClient.MkdirAll(s.dir()); err != nil {
		return "", fmt.Errorf("failed to create remote directory: %w", err)
	}

	if _, err := s.sftpClient.Stat(remotePath); err == nil {
		return "", fmt.Errorf("upload %s: %w", remoteName, ErrExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to check remote file: %w", err)
	}

	remoteFile, err := s.sftpClient.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
	if err != nil {
		// Lost a race with another upload of the same name
		if _, statErr := s.sftpClient.Stat(remotePath); statErr == nil {
			return "", fmt.Errorf("upload %s: %w", remoteName, ErrExists)
		}
		return "", fmt.Errorf("failed to create remote file: %w", err)
	}
	defer remoteFile.Close()

	if _, err := io.Copy(remoteFile, &contextReader{ctx: ctx, r: localFile}); err != nil {
		return "", fmt.Errorf("failed to copy file contents: %w", err)
	}
	if err := remoteFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close remote file: %w", err)
	}

	debugLog("Upload completed successfully")
	return remoteName, nil
}

// List lists all regular files in the remote directory
func (s *SFTPStorage) List(ctx context.Context) ([]RemoteFile, error) {
	dir := s.dir()
	debugLog("Listing files in directory: %s", dir)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := s.sftpClient.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Nothing has been uploaded yet
			return []RemoteFile{}, nil
		}
		return nil, fmt.Errorf("failed to list remote directory: %w", err)
	}

	files := []RemoteFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, RemoteFile{
			ID:      entry.Name(),
			Name:    entry.Name(),
			Size:    entry.Size(),
			ModTime: entry.ModTime().UTC(),
		})
	}

	debugLog("Found %d files", len(files))
	return files, nil
}

// Download downloads a file from the SFTP server
func (s *SFTPStorage) Download(ctx context.Context, id, localPath string) error {
	remotePath, err := s.remotePath(id)
	if err != nil {
		return err
	}
	debugLog("Remote path for download: %s", remotePath)

	remoteFile, err := s.sftpClient.Open(remotePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to open remote file %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to open remote file: %w", err)
	}
	defer remoteFile.Close()

	localFile, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer localFile.Close()

	if _, err := io.Copy(localFile, &contextReader{ctx: ctx, r: remoteFile}); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	return localFile.Close()
}

// Delete removes a file from the SFTP server
func (s *SFTPStorage) Delete(ctx context.Context, id string) error {
	remotePath, err := s.remotePath(id)
	if err != nil {
		return err
	}
	debugLog("Remote path for deletion: %s", remotePath)

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.sftpClient.Remove(remotePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete file %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	debugLog("Successfully deleted file")
	return nil
}

// contextReader stops a copy once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
