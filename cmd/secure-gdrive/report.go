package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/logandonley/secure-gdrive/pkg/archive"
	"github.com/logandonley/secure-gdrive/pkg/auth"
	"github.com/logandonley/secure-gdrive/pkg/backup"
	"github.com/logandonley/secure-gdrive/pkg/storage"
)

// exitError ends the process with code once its message has been printed
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// describe returns the message shown to the user for err and the exit status.
// subject is the source path or remote identifier the operation was about.
// ok is false for errors without a dedicated message.
func describe(err error, subject string) (msg string, code int, ok bool) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Sprintf("File with ID %s was not found, application can only access files it created.", subject), 0, true
	case errors.Is(err, archive.ErrSourceNotFound):
		return fmt.Sprintf("%s is not a file nor a directory.", subject), 1, true
	case errors.Is(err, archive.ErrSourceUnreadable):
		return fmt.Sprintf("%s cannot be read.", subject), 1, true
	case errors.Is(err, storage.ErrExists):
		return fmt.Sprintf("A file named %s already exists, choose another name.", subject), 1, true
	case errors.Is(err, backup.ErrAmbiguousID):
		return fmt.Sprintf("More than one file has ID %s, terminating operation", subject), 1, true
	case errors.Is(err, archive.ErrInvalidPassword):
		return "Invalid password, terminating operation", 1, true
	case errors.Is(err, archive.ErrEmptyPassword):
		return "Password must not be empty.", 1, true
	case errors.Is(err, auth.ErrMissingCredentials):
		path := "credentials file"
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			path = pathErr.Path
		}
		return fmt.Sprintf("File %s does not exist.\nPlease create it according to the README document.", path), 1, true
	}
	return "", 1, false
}

// report prints the message for a classified error to w. Errors that map to
// exit status 0 are swallowed; other classified errors become an exitError
// so that main does not print them again.
func report(w io.Writer, err error, subject string) error {
	if err == nil {
		return nil
	}
	debugLog("Operation failed: %v", err)

	msg, code, ok := describe(err, subject)
	if !ok {
		return err
	}

	fmt.Fprintln(w, msg)
	if code == 0 {
		return nil
	}
	return &exitError{code: code, err: err}
}
