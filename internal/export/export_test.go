package export

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		0:         "0",
		200:       "200",
		92.5:      "92.5",
		82.123456: "82.12",
		1.005001:  "1.01",
		-3.333:    "-3.33",
		-0.001:    "0",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatNumber(in), "input %v", in)
	}
	assert.Equal(t, "0", FormatNumber(math.Inf(1)))
	assert.Equal(t, "0", FormatNumber(math.NaN()))
}

func TestWriteCSV_BOMAndQuoting(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, Table{
		Header: []string{"품명", "금액"},
		Rows:   [][]string{{"Bracket, L", "1500"}, {"Cover", "20.5"}},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\ufeff품명,금액\n"))
	assert.Contains(t, out, "\"Bracket, L\",1500\n")
	assert.Contains(t, out, "Cover,20.5\n")

	back, err := ParseCSV(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, []string{"품명", "금액"}, back.Header)
	assert.Equal(t, "Bracket, L", back.Rows[0][0])
}

func TestParseCSV_Empty(t *testing.T) {
	tbl, err := ParseCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, tbl.Header)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	err := WriteXLSX(&buf, Table{
		Title:  "OEE/설비별",
		Header: []string{"설비", "OEE"},
		Rows:   [][]string{{"IM-01", "92.5"}},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Equal(t, []string{"OEE_설비별"}, sheets)
	rows, err := f.GetRows(sheets[0])
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"설비", "OEE"}, {"IM-01", "92.5"}}, rows)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Sheet1", sheetName("  "))
	assert.Len(t, []rune(sheetName(strings.Repeat("가", 40))), 31)
}
