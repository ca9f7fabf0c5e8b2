package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// PromptPassword is the PASSWORD argument that asks for the password on the terminal
const PromptPassword = "-"

// readPassword is replaced in tests to avoid touching the terminal
var readPassword = term.ReadPassword

type passwordResult struct {
	pw  []byte
	err error
}

// ReadPassword prints prompt to w and reads a password from the terminal
// without echo. It gives up once ctx is done and puts the terminal back the
// way it found it.
func ReadPassword(ctx context.Context, w io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	state, _ := term.GetState(fd)

	fmt.Fprint(w, prompt)
	read := readPassword
	done := make(chan passwordResult, 1)
	go func() {
		pw, err := read(fd)
		done <- passwordResult{pw: pw, err: err}
	}()

	var res passwordResult
	select {
	case res = <-done:
	case <-ctx.Done():
		if state != nil {
			term.Restore(fd, state)
		}
		fmt.Fprintln(w)
		return "", ctx.Err()
	}

	fmt.Fprintln(w)
	if res.err != nil {
		return "", fmt.Errorf("failed to read password: %w", res.err)
	}
	if len(res.pw) == 0 {
		return "", errors.New("password must not be empty")
	}
	return string(res.pw), nil
}

// ResolvePassword returns arg unless it is PromptPassword, in which case the
// password is read from the terminal.
func ResolvePassword(ctx context.Context, w io.Writer, arg string) (string, error) {
	if arg != PromptPassword {
		return arg, nil
	}
	return ReadPassword(ctx, w, "Enter password: ")
}
