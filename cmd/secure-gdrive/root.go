package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/logandonley/secure-gdrive/pkg/archive"
	"github.com/logandonley/secure-gdrive/pkg/auth"
	"github.com/logandonley/secure-gdrive/pkg/backup"
	"github.com/logandonley/secure-gdrive/pkg/cmd"
	"github.com/logandonley/secure-gdrive/pkg/config"
	"github.com/logandonley/secure-gdrive/pkg/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	debug   bool
	flags   verbFlags
	long    bool
)

// debugLog prints a log message only if debug is true
func debugLog(format string, v ...interface{}) {
	if debug {
		log.Printf(format, v...)
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "secure-gdrive",
	Short: "Encrypted backups of files and folders to Google Drive",
	Long: `secure-gdrive zips a file or folder, encrypts it with a password and
uploads it to Google Drive. Folders are zipped twice so that file names and
structure are hidden as well. The application can only see files it created.

  secure-gdrive -l                                  list uploaded files
  secure-gdrive -r ID                               remove a file
  secure-gdrive -z SOURCE NAME PASSWORD             zip, encrypt and upload
  secure-gdrive -f ID DESTINATION PASSWORD          download and decrypt

A PASSWORD of "-" is read from the terminal.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(c *cobra.Command, args []string) {
		storage.Debug = debug
		archive.Debug = debug
		backup.Debug = debug
		auth.Debug = debug
		if debug {
			log.Println("Debug mode enabled")
		}
	},
	RunE: func(c *cobra.Command, args []string) error {
		v, err := selectVerb(flags, args)
		if err != nil {
			return err
		}
		return runVerb(c, v, args)
	},
}

// Execute runs the root command with ctx, which cancels in-flight operations
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/secure-gdrive/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.Flags().BoolVarP(&flags.list, "list", "l", false, "list accessible files")
	rootCmd.Flags().BoolVarP(&flags.remove, "remove", "r", false, "remove the file with ID")
	rootCmd.Flags().BoolVarP(&flags.zip, "zip", "z", false, "zip, encrypt and upload SOURCE as NAME with PASSWORD")
	rootCmd.Flags().BoolVarP(&flags.fetch, "fetch", "f", false, "download ID and decrypt it into DESTINATION with PASSWORD")
	rootCmd.Flags().BoolVar(&long, "long", false, "with --list, also print size and age")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(zipCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(cmd.InitCmd())
	rootCmd.AddCommand(cmd.AuthCmd())
}

// registerDefaults gives every key a default so environment overrides work without a config file
func registerDefaults() {
	d := config.Default()

	viper.SetDefault("auth.credentials_file", d.Auth.CredentialsFile)
	viper.SetDefault("auth.token_file", d.Auth.TokenFile)
	viper.SetDefault("auth.redirect_url", d.Auth.RedirectURL)
	viper.SetDefault("remote.backend", d.Remote.Backend)
	viper.SetDefault("remote.page_size", d.Remote.PageSize)
	viper.SetDefault("remote.drive.application_name", d.Remote.Drive.ApplicationName)
	viper.SetDefault("remote.drive.endpoint", d.Remote.Drive.Endpoint)
	viper.SetDefault("remote.s3.endpoint", d.Remote.S3.Endpoint)
	viper.SetDefault("remote.s3.region", d.Remote.S3.Region)
	viper.SetDefault("remote.s3.bucket", d.Remote.S3.Bucket)
	viper.SetDefault("remote.s3.access_key_id", d.Remote.S3.AccessKeyID)
	viper.SetDefault("remote.s3.secret_access_key", d.Remote.S3.SecretAccessKey)
	viper.SetDefault("remote.s3.path", d.Remote.S3.Path)
	viper.SetDefault("remote.sftp.host", d.Remote.SFTP.Host)
	viper.SetDefault("remote.sftp.port", d.Remote.SFTP.Port)
	viper.SetDefault("remote.sftp.username", d.Remote.SFTP.Username)
	viper.SetDefault("remote.sftp.key_file", d.Remote.SFTP.KeyFile)
	viper.SetDefault("remote.sftp.known_hosts_file", d.Remote.SFTP.KnownHostsFile)
	viper.SetDefault("remote.sftp.path", d.Remote.SFTP.Path)
	viper.SetDefault("archive.exclude", d.Archive.Exclude)
	viper.SetDefault("workspace.root", d.Workspace.Root)
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	registerDefaults()

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := config.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in ~/secure-gdrive
		viper.AddConfigPath(dir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("SECURE_GDRIVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
		debugLog("No config file found, using defaults")
		return
	}
	debugLog("Using config file: %s", viper.ConfigFileUsed())
}

// createManager creates a backup manager with the current configuration
func createManager(c *cobra.Command) (*backup.Manager, error) {
	cfg, err := cmd.LoadConfig()
	if err != nil {
		return nil, err
	}
	debugLog("Config after unmarshal: backend=%s page_size=%d", cfg.Remote.Backend, cfg.Remote.PageSize)

	manager, err := backup.NewManager(c.Context(), cfg, c.InOrStdin(), c.OutOrStdout())
	if err != nil {
		return nil, fmt.Errorf("failed to create backup manager: %w", err)
	}
	return manager, nil
}

// runVerb dispatches a verb selected by the flag form
func runVerb(c *cobra.Command, v verb, args []string) error {
	switch v {
	case verbList:
		return runList(c, long)
	case verbRemove:
		return runRemove(c, args[0])
	case verbZip:
		return runZip(c, args[0], args[1], args[2])
	case verbFetch:
		return runFetch(c, args[0], args[1], args[2])
	}
	return c.Help()
}
