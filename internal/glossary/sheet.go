package glossary

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"glossary-review/internal/domain"
)

// Sheet is a loaded glossary: the original spreadsheet rows plus the work items
// derived from them. Items[i] comes from Rows[i].
type Sheet struct {
	Path          string
	ReferencePath string
	Header        []string
	Rows          [][]string
	Items         []domain.WorkItem
}

// Loader reads a task directory into a Sheet.
type Loader struct{}

// NewLoader creates a glossary loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Check reports whether dir holds a glossary and a reference text.
func (l *Loader) Check(dir string) error {
	_, _, err := Discover(dir)
	return err
}

// Load discovers, reads and annotates the work items of dir.
func (l *Loader) Load(dir string) (*Sheet, error) {
	glossaryPath, referencePath, err := Discover(dir)
	if err != nil {
		return nil, err
	}

	sheet, err := ReadSheet(glossaryPath)
	if err != nil {
		return nil, err
	}
	sheet.ReferencePath = referencePath

	data, err := os.ReadFile(referencePath)
	if err != nil {
		return nil, fmt.Errorf("read reference %s: %w", filepath.Base(referencePath), err)
	}

	terms := make([]string, 0, len(sheet.Items))
	for _, item := range sheet.Items {
		terms = append(terms, item.Term)
	}
	ref := ParseReference(DecodeText(data), terms)
	for i := range sheet.Items {
		ctx, ok := ref[sheet.Items[i].Term]
		if !ok || ctx == "" {
			ctx = MissingContext(sheet.Items[i].Term)
		}
		sheet.Items[i].Context = ctx
	}
	return sheet, nil
}

// ReadSheet reads the first worksheet. Column 1 is the term, column 2 the
// translation; a header containing 次数, freq or count marks frequency and
// a header named info marks the category.
func ReadSheet(path string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open glossary %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.NewValidationError("glossary", "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read glossary rows: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) < 2 {
		return nil, domain.NewValidationError("glossary", "need at least two columns: term and translation")
	}

	header := rows[0]
	freqCol, infoCol := -1, -1
	for i, col := range header {
		lower := strings.ToLower(col)
		if freqCol < 0 && (strings.Contains(col, "次数") || strings.Contains(lower, "freq") || strings.Contains(lower, "count")) {
			freqCol = i
		}
		if infoCol < 0 && strings.TrimSpace(lower) == "info" {
			infoCol = i
		}
	}

	sheet := &Sheet{Path: path, Header: header}
	for _, row := range rows[1:] {
		term := strings.TrimSpace(cell(row, 0))
		if term == "" {
			continue
		}
		item := domain.WorkItem{
			Term:                term,
			OriginalTranslation: strings.TrimSpace(cell(row, 1)),
			Frequency:           1,
		}
		if freqCol >= 0 {
			if n, err := strconv.ParseFloat(strings.TrimSpace(cell(row, freqCol)), 64); err == nil {
				item.Frequency = int(n)
			}
		}
		if infoCol >= 0 {
			item.Category = strings.TrimSpace(cell(row, infoCol))
		}
		sheet.Rows = append(sheet.Rows, row)
		sheet.Items = append(sheet.Items, item)
	}
	return sheet, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
