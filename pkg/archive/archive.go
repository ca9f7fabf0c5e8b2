// Package archive builds and opens the password-protected ZIP bundles that
// secure-gdrive uploads.
//
// A folder is first written to a plain ("unprotected") ZIP so that its
// structure is preserved, and that ZIP is then stored as the single encrypted
// entry of a second ("protected") ZIP. ZIP encryption only covers entry
// contents, so wrapping the plain archive hides every file name and the
// directory tree. A single file is stored directly as the encrypted entry.
//
// The entries are encrypted with the traditional PKWARE ZipCrypto stream
// cipher. ZipCrypto is broken and is used here for compatibility with common
// unzip tools only; it must not be relied on to protect sensitive data.
package archive

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	// UnprotectedSuffix names the plain inner archive of a folder bundle
	UnprotectedSuffix = "_unprotected.zip"
	// ProtectedSuffix names the encrypted outer archive
	ProtectedSuffix = "_protected.zip"
)

var (
	// ErrSourceNotFound is returned when the source is neither a file nor a directory
	ErrSourceNotFound = errors.New("source is not a file nor a directory")
	// ErrSourceUnreadable is returned when the source exists but cannot be read
	ErrSourceUnreadable = errors.New("source cannot be read")
	// ErrEmptyPassword is returned when an archive would be encrypted with an empty password
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrInvalidPassword is returned when a protected archive cannot be decrypted.
	// Corrupted archives are reported the same way.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrUnsafePath is returned for archive entries that would be written outside the target directory
	ErrUnsafePath = errors.New("archive entry escapes target directory")
)

// Debug controls verbose logging
var Debug bool

// debugLog prints a log message only if Debug is true
func debugLog(format string, v ...interface{}) {
	if Debug {
		log.Printf(format, v...)
	}
}

// CheckSource verifies that source is an existing, readable file or directory
func CheckSource(source string) (os.FileInfo, error) {
	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", source, ErrSourceNotFound)
		}
		return nil, fmt.Errorf("%s: %w: %v", source, ErrSourceUnreadable, err)
	}

	if !info.IsDir() && !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", source, ErrSourceNotFound)
	}

	if err := unix.Access(source, unix.R_OK); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", source, ErrSourceUnreadable, err)
	}

	return info, nil
}

// rootBaseName is used for a source that has no name of its own, such as "/"
const rootBaseName = "root"

// BaseName returns the name a source is archived under
func BaseName(source string) (string, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return "", fmt.Errorf("failed to resolve source path: %w", err)
	}
	base := filepath.Base(abs)
	if base == string(filepath.Separator) || base == "." {
		return rootBaseName, nil
	}
	return base, nil
}

// ProtectedName returns the file name of the protected archive for a source base name
func ProtectedName(base string) string {
	return base + ProtectedSuffix
}

// UnprotectedName returns the file name of the plain inner archive for a source base name
func UnprotectedName(base string) string {
	return base + UnprotectedSuffix
}

// IsUnprotectedName reports whether name follows the inner archive naming convention
func IsUnprotectedName(name string) bool {
	return strings.HasSuffix(name, UnprotectedSuffix) && len(name) > len(UnprotectedSuffix)
}

// safeJoin resolves an archive entry name inside dir
func safeJoin(dir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return filepath.Join(dir, clean), nil
}
