// Package workspace manages the per-operation temporary directories that hold
// intermediate archives. A workspace is owned by the operation that created it
// and must be removed when that operation ends, whatever the outcome.
package workspace

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
)

// maxSuffix bounds the random integer used to name a workspace
const maxSuffix = 1_000_000

// maxAttempts bounds how many suffixes are tried before giving up
const maxAttempts = 16

// Workspace is a temporary directory owned by a single operation
type Workspace struct {
	path string
}

// Create allocates a new workspace directory under root, named by a random integer
func Create(root string) (*Workspace, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}

	for i := 0; i < maxAttempts; i++ {
		path := filepath.Join(root, strconv.Itoa(rand.Intn(maxSuffix)))
		err := os.Mkdir(path, 0700)
		if err == nil {
			return &Workspace{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create workspace: %w", err)
		}
	}

	return nil, fmt.Errorf("failed to create workspace under %s: no free name after %d attempts", root, maxAttempts)
}

// Path returns the workspace directory
func (w *Workspace) Path() string {
	return w.path
}

// Join returns a path inside the workspace
func (w *Workspace) Join(elem ...string) string {
	return filepath.Join(append([]string{w.path}, elem...)...)
}

// Cleanup removes the workspace and everything in it. Calling it more than once is safe.
func (w *Workspace) Cleanup() error {
	if err := os.RemoveAll(w.path); err != nil {
		return fmt.Errorf("failed to remove workspace %s: %w", w.path, err)
	}
	return nil
}
