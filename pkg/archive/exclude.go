package archive

import (
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// isExcluded checks if a path matches any of the exclude patterns
func isExcluded(path string, excludePatterns []string) bool {
	if len(excludePatterns) == 0 {
		return false
	}

	// Convert path separators to forward slashes for consistent matching
	path = filepath.ToSlash(path)

	for _, pattern := range excludePatterns {
		pattern = filepath.ToSlash(pattern)

		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}

		// Also check if any parent directory matches
		dir := path
		for dir != "." && dir != "/" {
			dir = filepath.ToSlash(filepath.Dir(dir))
			matched, err := doublestar.Match(pattern, dir)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}
