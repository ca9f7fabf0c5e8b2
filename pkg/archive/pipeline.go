package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
)

// Options controls how a folder source is archived
type Options struct {
	// Exclude holds doublestar patterns, relative to the source folder, of entries to leave out
	Exclude []string
	// Out receives one progress line per archiving step when set
	Out io.Writer
}

// Result describes the archives written by Protect
type Result struct {
	// Protected is the path of the encrypted archive to upload
	Protected string
	// Unprotected is the path of the plain inner archive, empty for single files
	Unprotected string
	// Folder reports whether the source was a directory
	Folder bool
}

// Protect archives source into workDir and encrypts it with password.
// The intermediate plain archive of a folder is left in workDir for the caller to clean up.
func Protect(ctx context.Context, source, workDir, password string, opts Options) (*Result, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}

	info, err := CheckSource(source)
	if err != nil {
		return nil, err
	}

	base, err := BaseName(source)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Protected: filepath.Join(workDir, ProtectedName(base)),
		Folder:    info.IsDir(),
	}

	if !info.IsDir() {
		progress(opts.Out, "Encrypting file '%s' -> '%s'", source, result.Protected)
		if err := writeProtected(ctx, source, result.Protected, base, password); err != nil {
			return nil, fmt.Errorf("failed to create protected archive: %w", err)
		}
		return result, nil
	}

	result.Unprotected = filepath.Join(workDir, UnprotectedName(base))

	// Walk does not descend into a symlinked root
	root, err := filepath.EvalSymlinks(source)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", source, ErrSourceUnreadable, err)
	}

	progress(opts.Out, "Zipping folder '%s' -> '%s'", source, result.Unprotected)
	if err := writePlain(ctx, root, result.Unprotected, opts.Exclude); err != nil {
		return nil, fmt.Errorf("failed to create unprotected archive: %w", err)
	}

	progress(opts.Out, "Encrypting zip '%s' -> '%s'", result.Unprotected, result.Protected)
	if err := writeProtected(ctx, result.Unprotected, result.Protected, UnprotectedName(base), password); err != nil {
		return nil, fmt.Errorf("failed to create protected archive: %w", err)
	}

	return result, nil
}

// Unprotect decrypts the protected archive at archivePath with password and
// writes its contents into destination. The archive is first decrypted into
// stagingDir, so a wrong password leaves destination untouched. It reports
// whether the archive held a folder bundle.
func Unprotect(ctx context.Context, archivePath, stagingDir, destination, password string) (bool, error) {
	extracted := filepath.Join(stagingDir, filepath.Base(archivePath)+"_extracted")

	names, err := extractProtected(archivePath, extracted, password)
	if err != nil {
		if errors.Is(err, ErrUnsafePath) {
			return false, err
		}
		debugLog("Decryption of %s failed: %v", archivePath, err)
		return false, fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	var inner []string
	for _, name := range names {
		if IsUnprotectedName(filepath.Base(name)) {
			inner = append(inner, name)
		}
	}

	if len(inner) == 1 {
		innerPath, err := safeJoin(extracted, inner[0])
		if err != nil {
			return false, err
		}
		debugLog("Found folder bundle %s, extracting into %s", inner[0], destination)
		if err := extractPlain(innerPath, destination); err != nil {
			return true, fmt.Errorf("failed to extract folder bundle: %w", err)
		}
		return true, nil
	}

	debugLog("No folder bundle found, extracting %s into %s", archivePath, destination)
	if _, err := extractProtected(archivePath, destination, password); err != nil {
		return false, fmt.Errorf("failed to extract archive: %w", err)
	}
	return false, nil
}

func progress(w io.Writer, format string, v ...interface{}) {
	if w == nil {
		debugLog(format, v...)
		return
	}
	fmt.Fprintf(w, format+"\n", v...)
}
