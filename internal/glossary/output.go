package glossary

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"glossary-review/internal/results"
)

// Writer produces the final spreadsheets of a job.
type Writer struct{}

// NewWriter creates an output writer.
func NewWriter() *Writer {
	return &Writer{}
}

// WriteOutputs writes glossary_output.xlsx with each term's latest verdict
// applied, and modified.xlsx with every record.
func (w *Writer) WriteOutputs(dir string, sheet *Sheet, records []results.Record) ([]string, error) {
	outPath := filepath.Join(dir, OutputGlossary)
	if err := writeGlossary(outPath, sheet, Latest(records)); err != nil {
		return nil, fmt.Errorf("write %s: %w", OutputGlossary, err)
	}
	logPath := filepath.Join(dir, OutputModified)
	if err := results.WriteXLSX(logPath, records); err != nil {
		return []string{outPath}, fmt.Errorf("write %s: %w", OutputModified, err)
	}
	return []string{outPath, logPath}, nil
}

// Latest returns the highest-round record per term; later entries win ties.
func Latest(records []results.Record) map[string]results.Record {
	latest := make(map[string]results.Record, len(records))
	for _, r := range records {
		if prev, ok := latest[r.Term]; ok && prev.Round > r.Round {
			continue
		}
		latest[r.Term] = r
	}
	return latest
}

func writeGlossary(path string, sheet *Sheet, latest map[string]results.Record) error {
	f := excelize.NewFile()
	defer f.Close()
	name := f.GetSheetName(0)

	header := toRow(sheet.Header)
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}

	rowNum := 2
	for i, src := range sheet.Rows {
		row := append([]string(nil), src...)
		if rec, ok := latest[sheet.Items[i].Term]; ok {
			switch rec.Action {
			case results.ActionDelete:
				continue
			case results.ActionModify:
				for len(row) < 2 {
					row = append(row, "")
				}
				row[1] = rec.New
			}
		}
		cellName, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		values := toRow(row)
		if err := f.SetSheetRow(name, cellName, &values); err != nil {
			return err
		}
		rowNum++
	}

	if rowNum > 2 && len(sheet.Header) > 0 {
		last, err := excelize.CoordinatesToCellName(len(sheet.Header), rowNum-1)
		if err != nil {
			return err
		}
		if err := f.AutoFilter(name, "A1:"+last, nil); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func toRow(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
