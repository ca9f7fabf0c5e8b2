package e2e

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/logandonley/secure-gdrive/pkg/archive"
	"github.com/logandonley/secure-gdrive/pkg/backup"
	"github.com/logandonley/secure-gdrive/pkg/config"
	"github.com/logandonley/secure-gdrive/pkg/storage"
	"github.com/pkg/sftp"
)

const testConfig = `remote:
  backend: sftp
  sftp:
    host: %s
    port: %d
    username: %s
    key_file: %s
    path: %s
archive:
  exclude:
    - "**/.cache"
workspace:
  root: %s
`

// writeConfig writes a config file for an SFTP remote and loads it
func writeConfig(t *testing.T, dir, host string, port int, user, keyFile, remotePath string) *config.Config {
	t.Helper()

	configPath := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(testConfig, host, port, user, keyFile, remotePath, filepath.Join(dir, "secure-gdrive-temp"))
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// createTestData creates docs/a.txt and docs/sub/b.txt under dir
func createTestData(t *testing.T, dir string) string {
	t.Helper()

	docs := filepath.Join(dir, "docs")
	files := map[string]string{
		"a.txt":           "first file",
		"sub/b.txt":       "second file",
		".cache/skip.tmp": "excluded",
	}
	for name, content := range files {
		path := filepath.Join(docs, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}
	return docs
}

// newInMemoryRemote returns SFTP storage served by an in-process SFTP server
func newInMemoryRemote(t *testing.T, remotePath string) storage.Storage {
	t.Helper()

	serverConn, clientConn := net.Pipe()
	server := sftp.NewRequestServer(serverConn, sftp.InMemHandler())
	go server.Serve()
	t.Cleanup(func() { server.Close() })

	client, err := sftp.NewClientPipe(clientConn, clientConn)
	if err != nil {
		t.Fatalf("Failed to create SFTP client: %v", err)
	}
	return storage.NewSFTPStorageFromClient(client, &storage.SFTPConfig{Path: remotePath})
}

// runScenario uploads docs, fetches it back and removes it
func runScenario(t *testing.T, manager *backup.Manager, out *bytes.Buffer, tmpDir, workspaceRoot string) {
	t.Helper()
	ctx := context.Background()

	docs := createTestData(t, tmpDir)

	t.Log("Testing empty listing...")
	out.Reset()
	if err := manager.ListFiles(ctx, false); err != nil {
		t.Fatalf("Failed to list files: %v", err)
	}
	if !strings.Contains(out.String(), "You haven't made any files yet") {
		t.Fatalf("Expected empty listing, got %q", out.String())
	}

	t.Log("Testing zip and upload...")
	id, err := manager.ZipUpload(ctx, docs, "docs-e2e", "hunter2")
	if err != nil {
		t.Fatalf("Failed to upload: %v", err)
	}

	out.Reset()
	if err := manager.ListFiles(ctx, false); err != nil {
		t.Fatalf("Failed to list files: %v", err)
	}
	if !strings.Contains(out.String(), fmt.Sprintf("docs-e2e (%s)", id)) {
		t.Fatalf("Uploaded file missing from listing: %q", out.String())
	}

	t.Log("Testing upload under a taken name...")
	if _, err := manager.ZipUpload(ctx, docs, "docs-e2e", "other"); !errors.Is(err, storage.ErrExists) {
		t.Fatalf("Expected existing file error, got %v", err)
	}

	t.Log("Testing wrong password...")
	wrongDir := filepath.Join(tmpDir, "wrong")
	if err := manager.Fetch(ctx, id, wrongDir, "hunter3"); !errors.Is(err, archive.ErrInvalidPassword) {
		t.Fatalf("Expected invalid password error, got %v", err)
	}
	if _, err := os.Stat(wrongDir); !os.IsNotExist(err) {
		t.Fatalf("Destination was written with a wrong password")
	}

	t.Log("Testing fetch...")
	outDir := filepath.Join(tmpDir, "out")
	if err := manager.Fetch(ctx, id, outDir, "hunter2"); err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}

	for name, want := range map[string]string{"a.txt": "first file", "sub/b.txt": "second file"} {
		data, err := os.ReadFile(filepath.Join(outDir, filepath.FromSlash(name)))
		if err != nil {
			t.Fatalf("Failed to read restored file: %v", err)
		}
		if string(data) != want {
			t.Fatalf("Restored %s does not match: got %q, want %q", name, string(data), want)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, ".cache")); !os.IsNotExist(err) {
		t.Fatalf("Excluded directory was restored")
	}

	leftovers, err := filepath.Glob(filepath.Join(outDir, "*.zip"))
	if err != nil {
		t.Fatalf("Failed to glob: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("Archives left in destination: %v", leftovers)
	}

	entries, err := os.ReadDir(workspaceRoot)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("Failed to read workspace root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("Workspaces left behind: %v", entries)
	}

	t.Log("Testing remove...")
	if err := manager.RemoveFile(ctx, "does-not-exist"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected not found error, got %v", err)
	}
	if err := manager.RemoveFile(ctx, id); err != nil {
		t.Fatalf("Failed to remove: %v", err)
	}
	if err := manager.Fetch(ctx, id, filepath.Join(tmpDir, "gone"), "hunter2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected not found error after remove, got %v", err)
	}
}

func TestE2E(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := writeConfig(t, tmpDir, "localhost", 22, "test", "", "/backups/secure-gdrive-e2e")

	var out bytes.Buffer
	manager := backup.NewManagerWithStorage(cfg, newInMemoryRemote(t, cfg.Remote.SFTP.Path), "SFTP", &out)
	defer manager.Close()

	runScenario(t, manager, &out, tmpDir, cfg.Workspace.Root)
	t.Log("E2E test completed successfully")
}

func TestE2E_SFTPServer(t *testing.T) {
	host := os.Getenv("SECURE_GDRIVE_TEST_SFTP_HOST")
	if host == "" {
		t.Skip("SECURE_GDRIVE_TEST_SFTP_HOST not set")
	}
	user := os.Getenv("SECURE_GDRIVE_TEST_SFTP_USER")
	if user == "" {
		t.Skip("SECURE_GDRIVE_TEST_SFTP_USER not set")
	}
	keyFile := os.Getenv("SECURE_GDRIVE_TEST_SFTP_KEY_FILE")
	if keyFile == "" {
		t.Skip("SECURE_GDRIVE_TEST_SFTP_KEY_FILE not set")
	}

	tmpDir := t.TempDir()
	cfg := writeConfig(t, tmpDir, host, 22, user, keyFile, "./backups/test/secure-gdrive-e2e")

	var out bytes.Buffer
	manager, err := backup.NewManager(context.Background(), cfg, strings.NewReader(""), &out)
	if err != nil {
		t.Fatalf("Failed to create backup manager: %v", err)
	}
	defer manager.Close()

	runScenario(t, manager, &out, tmpDir, cfg.Workspace.Root)
}
