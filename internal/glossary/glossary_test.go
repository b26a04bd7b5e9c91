package glossary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"

	"glossary-review/internal/domain"
	"glossary-review/internal/results"
)

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"~$lock.xlsx", "glossary_output.xlsx", "modified.xlsx", "terms.xlsx", "novel.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	g, r, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "terms.xlsx"), g)
	assert.Equal(t, filepath.Join(dir, "novel.txt"), r)
}

func TestDiscover_Missing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "terms.xlsx"), nil, 0o644))

	_, _, err := Discover(dir)
	assert.ErrorIs(t, err, domain.ErrNoConfig)

	_, _, err = Discover("")
	assert.ErrorIs(t, err, domain.ErrNoConfig)

	_, _, err = Discover(filepath.Join(dir, "nope"))
	assert.ErrorIs(t, err, domain.ErrNoConfig)
}

func TestDecodeText(t *testing.T) {
	assert.Equal(t, "a\nb\nc", DecodeText([]byte("a\r\nb\rc")))
	assert.Equal(t, "검", DecodeText(append([]byte{0xEF, 0xBB, 0xBF}, []byte("검")...)))

	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte("原文：검"))
	require.NoError(t, err)
	assert.Equal(t, "原文：검", DecodeText(utf16))

	euckr, err := korean.EUCKR.NewEncoder().Bytes([]byte("이해든은 말했다"))
	require.NoError(t, err)
	assert.Equal(t, "이해든은 말했다", DecodeText(euckr))
}

func TestParseReference_Blocks(t *testing.T) {
	content := "header\n原文：검\n그는 검을 들었다.※\n(他举起了剑。)\n原文：해든\n해든이 웃었다."
	ref := ParseReference(content, nil)
	assert.Equal(t, "그는 검을 들었다.\n(他举起了剑。)", ref["검"])
	assert.Equal(t, "해든이 웃었다.", ref["해든"])
}

func TestParseReference_LineSearch(t *testing.T) {
	content := "line0\nline1\n검이 빛났다\nline3\nline4\n검 again"
	ref := ParseReference(content, []string{"검", "없음", " "})
	assert.Equal(t, "line1\n검이 빛났다\nline3", ref["검"])
	_, found := ref["없음"]
	assert.False(t, found)
}

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "terms.xlsx"), [][]any{
		{"原文", "译文", "出现次数", "info"},
		{"검", "剑", 7, "物品"},
		{"해든", "海灯", "2", "男性角色"},
		{"", "skip", 1, ""},
		{"없음", "无", nil, ""},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "novel.txt"), []byte("해든이 검을 들었다.\n"), 0o644))

	sheet, err := NewLoader().Load(dir)
	require.NoError(t, err)
	require.Len(t, sheet.Items, 3)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, domain.WorkItem{Term: "검", OriginalTranslation: "剑", Context: "해든이 검을 들었다.", Frequency: 7, Category: "物品"}, sheet.Items[0])
	assert.Equal(t, 2, sheet.Items[1].Frequency)
	assert.Equal(t, "男性角色", sheet.Items[1].Category)
	assert.Equal(t, 1, sheet.Items[2].Frequency)
	assert.Equal(t, MissingContext("없음"), sheet.Items[2].Context)
}

func TestWriteOutputsAppliesLatestVerdict(t *testing.T) {
	dir := t.TempDir()
	sheet := &Sheet{
		Header: []string{"原文", "译文", "info"},
		Rows:   [][]string{{"a", "甲", "x"}, {"b", "乙", "y"}, {"c", "丙"}},
		Items:  []domain.WorkItem{{Term: "a"}, {Term: "b"}, {Term: "c"}},
	}
	records := []results.Record{
		{Term: "a", Action: results.ActionModify, New: "A1", Round: 1},
		{Term: "a", Action: results.ActionKeep, New: "甲", Round: 2},
		{Term: "b", Action: results.ActionDelete, New: results.DeletedMarker, Round: 1},
		{Term: "c", Action: results.ActionModify, New: "C", Round: 1},
	}

	paths, err := NewWriter().WriteOutputs(dir, sheet, records)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	f, err := excelize.OpenFile(filepath.Join(dir, OutputGlossary))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a", "甲", "x"}, rows[1])
	assert.Equal(t, []string{"c", "C"}, rows[2])

	assert.FileExists(t, filepath.Join(dir, OutputModified))
}
