package glossary

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"glossary-review/internal/domain"
)

// Output file names written next to the glossary.
const (
	OutputGlossary = "glossary_output.xlsx"
	OutputModified = "modified.xlsx"
)

// IsGlossaryFile reports whether name is a candidate input spreadsheet.
// Lock files and files this program writes are excluded.
func IsGlossaryFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".xlsx") &&
		!strings.HasPrefix(name, "~") &&
		!strings.Contains(lower, "glossary_output") &&
		!strings.Contains(lower, "modified")
}

// IsReferenceFile reports whether name is a candidate reference text.
func IsReferenceFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".txt")
}

// Discover finds the glossary spreadsheet and the reference text in dir.
func Discover(dir string) (glossaryPath, referencePath string, err error) {
	if strings.TrimSpace(dir) == "" {
		return "", "", fmt.Errorf("no task directory: %w", domain.ErrNoConfig)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", fmt.Errorf("task directory %s does not exist: %w", dir, domain.ErrNoConfig)
		}
		return "", "", err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		switch {
		case glossaryPath == "" && IsGlossaryFile(name):
			glossaryPath = filepath.Join(dir, name)
		case referencePath == "" && IsReferenceFile(name):
			referencePath = filepath.Join(dir, name)
		}
	}
	if glossaryPath == "" || referencePath == "" {
		return "", "", fmt.Errorf("missing .xlsx or .txt files in %s: %w", dir, domain.ErrNoConfig)
	}
	return glossaryPath, referencePath, nil
}
