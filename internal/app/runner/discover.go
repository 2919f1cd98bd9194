package runner

import (
	"fmt"
	"path/filepath"
	"sort"
)

// DiscoverTests globs every directory for *.py test files and returns the
// combined list in lexicographic order.
func DiscoverTests(dirs []string) ([]string, error) {
	var files []string
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*.py"))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", dir, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}
