package diagnostics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"glossary-review/internal/domain"
	"glossary-review/internal/glossary"
)

// Checker validates the task folder, providers and the results directory.
type Checker struct {
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		stat:       os.Stat,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(cfg domain.Config) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkProviders(cfg),
		c.checkTaskDir(cfg.LastTaskDirectory),
		c.checkResultsDir(cfg.ResultsDirectory()),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// CheckFolder reports whether path exists and holds at least one glossary spreadsheet.
func (c *Checker) CheckFolder(path string) domain.FolderCheck {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.FolderCheck{Error: "Path is empty"}
	}

	info, err := c.stat(path)
	if err != nil {
		if IsNotExist(err) {
			return domain.FolderCheck{Error: "Path does not exist"}
		}
		return domain.FolderCheck{Error: fmt.Sprintf("Cannot access path: %v", err)}
	}
	if !info.IsDir() {
		return domain.FolderCheck{Error: "Path is not a directory"}
	}

	entries, err := c.readDir(path)
	if err != nil {
		return domain.FolderCheck{Error: fmt.Sprintf("Cannot read directory: %v", err)}
	}
	for _, entry := range entries {
		if !entry.IsDir() && glossary.IsGlossaryFile(entry.Name()) {
			return domain.FolderCheck{Valid: true}
		}
	}
	return domain.FolderCheck{Error: "No .xlsx file found in folder"}
}

// checkProviders verifies at least one provider is enabled.
func (c *Checker) checkProviders(cfg domain.Config) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "providers",
		Name: "API providers",
	}

	enabled := len(cfg.EnabledProviders())
	if enabled == 0 {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "No enabled API providers configured."
		item.Hint = "Add a provider with base URL, API key and model in settings."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("%d of %d providers enabled", enabled, len(cfg.Providers))
	return item
}

// checkTaskDir verifies the saved task folder holds a glossary and a reference text.
func (c *Checker) checkTaskDir(dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "task_dir",
		Name: "Task folder",
	}

	check := c.CheckFolder(dir)
	if !check.Valid {
		item.Status = domain.DiagnosticStatusFail
		if strings.TrimSpace(dir) == "" {
			item.Message = "No task folder selected."
		} else {
			item.Message = fmt.Sprintf("%s: %s", check.Error, dir)
		}
		item.Hint = "Select a folder containing the glossary .xlsx and the reference .txt."
		return item
	}

	entries, err := c.readDir(dir)
	if err == nil {
		for _, entry := range entries {
			if !entry.IsDir() && glossary.IsReferenceFile(entry.Name()) {
				item.Status = domain.DiagnosticStatusPass
				item.Message = fmt.Sprintf("Task folder is valid: %s", dir)
				return item
			}
		}
	}

	item.Status = domain.DiagnosticStatusFail
	item.Message = fmt.Sprintf("No reference .txt file found in: %s", dir)
	item.Hint = "Place the source text next to the glossary spreadsheet."
	return item
}

// checkResultsDir validates results directory existence and write access.
func (c *Checker) checkResultsDir(dir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "results_dir",
		Name: "Results directory",
	}

	if strings.TrimSpace(dir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Results directory is empty."
		item.Hint = "Select a task folder or set a default directory."
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create results directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Results directory is not writable: %s", dir)
		item.Hint = "Choose a writable directory for review results."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		stat:       stat,
		readDir:    readDir,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

// IsNotExist reports whether error represents file-not-found.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
