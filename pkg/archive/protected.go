package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yeka/zip"
)

// writeProtected writes a ZIP at archivePath holding a single entry named
// entryName, with the contents of sourcePath encrypted under password.
func writeProtected(ctx context.Context, sourcePath, archivePath, entryName, password string) error {
	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", sourcePath, err)
	}
	defer src.Close()

	out, err := os.OpenFile(archivePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	w, err := zw.Encrypt(entryName, password, zip.StandardEncryption)
	if err != nil {
		return fmt.Errorf("failed to create encrypted entry: %w", err)
	}

	if _, err := io.Copy(w, &contextReader{ctx: ctx, r: src}); err != nil {
		return fmt.Errorf("failed to write encrypted entry: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return out.Close()
}

// extractProtected decrypts every entry of the ZIP at archivePath into destPath.
// Entries are read to the end so that a wrong password surfaces as a
// decompression or checksum error.
func extractProtected(archivePath, destPath, password string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	if err := os.MkdirAll(destPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination: %w", err)
	}

	var names []string
	for _, f := range r.File {
		target, err := safeJoin(destPath, f.Name)
		if err != nil {
			return nil, err
		}

		if strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}

		if f.IsEncrypted() {
			f.SetPassword(password)
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open entry %s: %w", f.Name, err)
		}
		err = writeFile(target, rc, fileMode(f.Mode()))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}

		names = append(names, f.Name)
	}

	return names, nil
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
