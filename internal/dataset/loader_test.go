package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

const sampleCSV = "품번,품명,생산수량\nA1,커버,\"1,200\"\n\n B2 ,브라켓,\n"

func TestParse_CSV(t *testing.T) {
	for name, input := range map[string]string{
		"plain": sampleCSV,
		"bom":   "\ufeff" + sampleCSV,
	} {
		t.Run(name, func(t *testing.T) {
			recs, err := Parse("upload.csv", strings.NewReader(input))
			require.NoError(t, err)
			require.Len(t, recs, 2)
			assert.Equal(t, []string{"품번", "품명", "생산수량"}, recs[0].Keys())

			v, _ := recs[0].Get("생산수량")
			assert.Equal(t, "1,200", v)
			code, _ := recs[1].Get("품번")
			assert.Equal(t, "B2", code)
			qty, ok := recs[1].Get("생산수량")
			assert.True(t, ok)
			assert.Nil(t, qty, "empty cells are absent values")
		})
	}
}

func TestParse_EUCKR(t *testing.T) {
	encoded, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), []byte(sampleCSV))
	require.NoError(t, err)

	recs, err := Parse("upload.CSV", bytes.NewReader(encoded))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	name, _ := recs[0].Get("품명")
	assert.Equal(t, "커버", name)
}

func TestParse_XLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"설비명", "시간가동율"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"IM-01", 87.5}))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "availability.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	recs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, recs, 1, "leading blank row is skipped")
	v, _ := recs[0].Get("시간가동율")
	assert.Equal(t, "87.5", v)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("upload.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Parse("upload.csv", strings.NewReader("\n\n"))
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	recs, err := Parse("upload.csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	s := Summarize(recs)
	assert.Equal(t, 2, s.Rows)
	require.Len(t, s.Columns, 3)
	assert.Equal(t, ColumnSummary{Name: "생산수량", Filled: 1, Numeric: 1, Fill: 0.5}, s.Columns[2])
	assert.Equal(t, ColumnSummary{Name: "품번", Filled: 2, Numeric: 0, Fill: 1}, s.Columns[0])

	assert.Equal(t, Summary{}, Summarize(nil))
}
