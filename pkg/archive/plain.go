package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// writePlain writes every entry under sourcePath, empty directories included,
// into an unencrypted ZIP at archivePath. Entry names are slash-separated and
// relative to sourcePath.
func writePlain(ctx context.Context, sourcePath, archivePath string, excludePatterns []string) error {
	out, err := os.OpenFile(archivePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	err = filepath.Walk(sourcePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// Get path relative to source directory for pattern matching
		relPath, err := filepath.Rel(sourcePath, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		if relPath == "." {
			return nil
		}

		// Skip excluded files/directories
		if isExcluded(relPath, excludePatterns) {
			debugLog("Excluding %s", relPath)
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch {
		case info.IsDir():
			header, err := zip.FileInfoHeader(info)
			if err != nil {
				return fmt.Errorf("failed to create zip header: %w", err)
			}
			header.Name = filepath.ToSlash(relPath) + "/"
			header.Method = zip.Store
			if _, err := zw.CreateHeader(header); err != nil {
				return fmt.Errorf("failed to write directory entry %s: %w", relPath, err)
			}

		case info.Mode().IsRegular():
			header, err := zip.FileInfoHeader(info)
			if err != nil {
				return fmt.Errorf("failed to create zip header: %w", err)
			}
			header.Name = filepath.ToSlash(relPath)
			header.Method = zip.Deflate

			w, err := zw.CreateHeader(header)
			if err != nil {
				return fmt.Errorf("failed to write file entry %s: %w", relPath, err)
			}

			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer file.Close()

			if _, err := io.Copy(w, &contextReader{ctx: ctx, r: file}); err != nil {
				return fmt.Errorf("failed to write file contents: %w", err)
			}

		default:
			debugLog("Skipping non-regular file %s (%s)", relPath, info.Mode().Type())
		}

		return nil
	})
	if err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return out.Close()
}

// extractPlain extracts an unencrypted ZIP into destPath
func extractPlain(archivePath, destPath string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(destPath, 0755); err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	for _, f := range r.File {
		target, err := safeJoin(destPath, f.Name)
		if err != nil {
			return err
		}

		if strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, dirMode(f.Mode())); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open entry %s: %w", f.Name, err)
		}
		err = writeFile(target, rc, fileMode(f.Mode()))
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}

	return nil
}

// writeFile creates or truncates target and copies r into it
func writeFile(target string, r io.Reader, mode os.FileMode) error {
	// If file exists and is read-only, make it writable before truncating
	if info, err := os.Stat(target); err == nil && info.Mode()&0200 == 0 {
		if err := os.Chmod(target, info.Mode()|0200); err != nil {
			return fmt.Errorf("failed to make file writable: %w", err)
		}
	}

	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return fmt.Errorf("failed to write file contents: %w", err)
	}
	return file.Close()
}

func fileMode(m os.FileMode) os.FileMode {
	if m.Perm() == 0 {
		return 0644
	}
	return m.Perm()
}

func dirMode(m os.FileMode) os.FileMode {
	if m.Perm() == 0 {
		return 0755
	}
	return m.Perm() | 0700
}
