package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, BackendDrive, cfg.Remote.Backend)
	assert.Equal(t, DefaultPageSize, cfg.Remote.PageSize)
	assert.Equal(t, DefaultApplicationName, cfg.Remote.Drive.ApplicationName)
	assert.Equal(t, 22, cfg.Remote.SFTP.Port)
	assert.Equal(t, filepath.Join(os.TempDir(), WorkspaceDirName), cfg.Workspace.Root)
	assert.Equal(t, "credentials.json", filepath.Base(cfg.Auth.CredentialsFile))
	assert.Equal(t, "token.yaml", filepath.Base(cfg.Auth.TokenFile))
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `remote:
  backend: sftp
  sftp:
    host: nas.example.com
    username: backups
    key_file: ~/.ssh/id_ed25519
    path: ./backups/secure
archive:
  exclude:
    - "**/.git/**"
workspace:
  root: /var/tmp/work
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, BackendSFTP, cfg.Remote.Backend)
	assert.Equal(t, "nas.example.com", cfg.Remote.SFTP.Host)
	assert.Equal(t, 22, cfg.Remote.SFTP.Port)
	assert.Equal(t, []string{"**/.git/**"}, cfg.Archive.Exclude)
	assert.Equal(t, "/var/tmp/work", cfg.Workspace.Root)
	assert.Equal(t, DefaultPageSize, cfg.Remote.PageSize)
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("remote:\n  backend: dropbox\n"), 0600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dropbox")
}

func TestValidatePageSize(t *testing.T) {
	cfg := Default()
	cfg.Remote.PageSize = -1
	assert.Error(t, cfg.Validate())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/secure-gdrive/token.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "secure-gdrive", "token.yaml"), got)

	got, err = ExpandPath("/etc/hosts")
	require.NoError(t, err)
	assert.Equal(t, "/etc/hosts", got)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Archive.Exclude = []string{"**/node_modules/**"}

	data, err := cfg.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0600))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
