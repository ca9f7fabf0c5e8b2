package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported remote backends
const (
	BackendDrive = "drive"
	BackendS3    = "s3"
	BackendSFTP  = "sftp"
)

const (
	// DefaultDirName is the directory under $HOME holding credentials, token and config
	DefaultDirName = "secure-gdrive"
	// DefaultPageSize is the listing page size requested from the remote
	DefaultPageSize = 1000
	// DefaultApplicationName is sent to Google Drive as the user agent
	DefaultApplicationName = "Secure Google Drive Storage"
	// WorkspaceDirName is the directory under the system temp root holding workspaces
	WorkspaceDirName = "secure-gdrive-temp"
)

// Config represents the main configuration structure
type Config struct {
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Remote    RemoteConfig    `yaml:"remote" mapstructure:"remote"`
	Archive   ArchiveConfig   `yaml:"archive" mapstructure:"archive"`
	Workspace WorkspaceConfig `yaml:"workspace" mapstructure:"workspace"`
}

// AuthConfig holds the OAuth client credentials and token locations
type AuthConfig struct {
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	TokenFile       string `yaml:"token_file" mapstructure:"token_file"`
	RedirectURL     string `yaml:"redirect_url,omitempty" mapstructure:"redirect_url"`
}

// RemoteConfig selects and configures the remote storage backend
type RemoteConfig struct {
	Backend  string      `yaml:"backend" mapstructure:"backend"`
	PageSize int         `yaml:"page_size" mapstructure:"page_size"`
	Drive    DriveConfig `yaml:"drive" mapstructure:"drive"`
	S3       S3Config    `yaml:"s3" mapstructure:"s3"`
	SFTP     SFTPConfig  `yaml:"sftp" mapstructure:"sftp"`
}

// DriveConfig represents Google Drive configuration
type DriveConfig struct {
	ApplicationName string `yaml:"application_name" mapstructure:"application_name"`
	Endpoint        string `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
}

// S3Config represents S3-compatible storage configuration
type S3Config struct {
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
	Region          string `yaml:"region" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	Path            string `yaml:"path" mapstructure:"path"`
}

// SFTPConfig represents SFTP server configuration
type SFTPConfig struct {
	Host           string `yaml:"host" mapstructure:"host"`
	Port           int    `yaml:"port" mapstructure:"port"`
	Username       string `yaml:"username" mapstructure:"username"`
	KeyFile        string `yaml:"key_file" mapstructure:"key_file"`
	KnownHostsFile string `yaml:"known_hosts_file,omitempty" mapstructure:"known_hosts_file"`
	Path           string `yaml:"path" mapstructure:"path"`
}

// ArchiveConfig holds settings for building folder archives
type ArchiveConfig struct {
	Exclude []string `yaml:"exclude,omitempty" mapstructure:"exclude"`
}

// WorkspaceConfig holds the location of per-operation temporary directories
type WorkspaceConfig struct {
	Root string `yaml:"root,omitempty" mapstructure:"root"`
}

// Dir returns the default configuration directory ($HOME/secure-gdrive)
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// Default returns a configuration with every default filled in
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults
func (c *Config) ApplyDefaults() {
	dir, err := Dir()
	if err != nil {
		dir = DefaultDirName
	}

	if c.Auth.CredentialsFile == "" {
		c.Auth.CredentialsFile = filepath.Join(dir, "credentials.json")
	}
	if c.Auth.TokenFile == "" {
		c.Auth.TokenFile = filepath.Join(dir, "token.yaml")
	}
	if c.Remote.Backend == "" {
		c.Remote.Backend = BackendDrive
	}
	if c.Remote.PageSize == 0 {
		c.Remote.PageSize = DefaultPageSize
	}
	if c.Remote.Drive.ApplicationName == "" {
		c.Remote.Drive.ApplicationName = DefaultApplicationName
	}
	if c.Remote.SFTP.Port == 0 {
		c.Remote.SFTP.Port = 22
	}
	if c.Workspace.Root == "" {
		c.Workspace.Root = filepath.Join(os.TempDir(), WorkspaceDirName)
	}
}

// Validate checks the configuration for values that cannot work
func (c *Config) Validate() error {
	switch c.Remote.Backend {
	case BackendDrive, BackendS3, BackendSFTP:
	default:
		return fmt.Errorf("unknown remote backend %q (expected %s, %s or %s)",
			c.Remote.Backend, BackendDrive, BackendS3, BackendSFTP)
	}
	if c.Remote.PageSize <= 0 {
		return fmt.Errorf("remote.page_size must be positive, got %d", c.Remote.PageSize)
	}
	return nil
}

// ExpandPath expands a leading ~/ to the user's home directory
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return &cfg, nil
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
