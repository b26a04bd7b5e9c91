package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"glossary-review/internal/domain"
)

// ActiveFile is the result file a running job appends to.
const ActiveFile = "modified.json"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Store keeps judgments in JSON files inside the task directory.
type Store struct {
	dir func() string
	now func() time.Time

	mu     sync.Mutex
	active string
}

// NewStore creates a store whose listing directory is resolved on each call.
func NewStore(dir func() string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Activate points appends at dir/modified.json. Unless resuming, an existing
// file is archived under a timestamped name and a fresh one is started.
// When resuming, the existing records are returned.
func (s *Store) Activate(dir string, resume bool) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(dir, ActiveFile)
	var existing []Record
	if _, err := os.Stat(path); err == nil {
		if resume {
			records, err := readJSON(path)
			if err != nil {
				return nil, &domain.FatalError{Op: "read result file", Err: err}
			}
			existing = records
		} else {
			archived := filepath.Join(dir, fmt.Sprintf("modified-%s.json", s.now().Format("20060102-150405")))
			if err := os.Rename(path, archived); err != nil {
				return nil, &domain.FatalError{Op: "archive result file", Err: err}
			}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, &domain.FatalError{Op: "stat result file", Err: err}
	}

	s.active = path
	if existing == nil {
		if err := writeJSON(path, []Record{}); err != nil {
			return nil, &domain.FatalError{Op: "create result file", Err: err}
		}
	}
	return existing, nil
}

// ActivePath returns the file appends go to, or empty before Activate.
func (s *Store) ActivePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Append adds judgments to the active file. Earlier entries are never removed.
func (s *Store) Append(judgments []domain.Judgment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == "" {
		return &domain.FatalError{Op: "append results", Err: errors.New("no active result file")}
	}
	records, err := readJSON(s.active)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.FatalError{Op: "read result file", Err: err}
	}
	for _, j := range judgments {
		records = append(records, FromJudgment(j))
	}
	if err := writeJSON(s.active, records); err != nil {
		return &domain.FatalError{Op: "write result file", Err: err}
	}
	return nil
}

// Records returns everything in the active file.
func (s *Store) Records() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == "" {
		return nil, nil
	}
	return readJSON(s.active)
}

// List returns result files in the results directory: JSON record sets and
// spreadsheets whose name contains "modified".
func (s *Store) List() ([]string, error) {
	dir := s.dir()
	if dir == "" {
		return []string{}, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lower := strings.ToLower(name)
		switch {
		case strings.HasSuffix(lower, ".json"):
			names = append(names, name)
		case strings.HasSuffix(lower, ".xlsx") && strings.Contains(lower, "modified") && !strings.HasPrefix(name, "~"):
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the records of one result file.
func (s *Store) Read(name string) ([]Record, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("result file %s: %w", name, domain.ErrNotFound)
		}
		return nil, err
	}

	if strings.HasSuffix(strings.ToLower(name), ".xlsx") {
		return readXLSX(path)
	}
	return readJSON(path)
}

// Import copies an uploaded record set into the results directory and returns its stored name.
func (s *Store) Import(name string, data []byte) (string, error) {
	clean := SanitizeName(name)
	if clean == "" {
		return "", domain.NewValidationError("file", "no selected file")
	}
	if !strings.HasSuffix(strings.ToLower(clean), ".json") {
		return "", domain.NewValidationError("file", "Invalid file type. Only .json files allowed.")
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return "", domain.NewValidationError("file", "file is not a JSON list of records")
	}

	dir := s.dir()
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, clean), data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", clean, err)
	}
	return clean, nil
}

// SanitizeName reduces an uploaded file name to a safe base name.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = unsafeName.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, "._")
	if name == "" || name == "." {
		return ""
	}
	return name
}

func (s *Store) resolve(name string) (string, error) {
	if name == "" {
		return "", domain.NewValidationError("filename", "Filename required")
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", domain.NewValidationError("filename", "invalid file name")
	}
	return filepath.Join(s.dir(), name), nil
}

func readJSON(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// writeJSON replaces path atomically.
func writeJSON(path string, records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".modified-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// readXLSX maps the first sheet's header row onto record fields.
func readXLSX(path string) ([]Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []Record{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return []Record{}, nil
	}

	header := rows[0]
	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		obj := make(map[string]any, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(row) && row[i] != "" {
				obj[col] = row[i]
			} else {
				obj[col] = nil
			}
		}
		data, err := json.Marshal(obj)
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteXLSX writes records as a spreadsheet with a header row.
func WriteXLSX(path string, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := []any{"term", "original", "new", "action", "reason", "justification", "emoji", "round", "original_category", "suggested_category"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range records {
		row := []any{r.Term, r.Original, r.New, r.Action, r.Reason, r.Justification, r.Emoji, r.Round, r.OriginalCategory, r.SuggestedCategory}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
