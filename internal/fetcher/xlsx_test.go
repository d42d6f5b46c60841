package fetcher

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestReadXLSXBinary_Basic(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{
		"edges": {
			{"source", "target", "raw_support_value"},
			{"A", "B", "0.8"},
			{"B", "C", "0.4"},
		},
	})

	rows, err := ReadXLSXBinary(data, XLSXOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"source", "target", "raw_support_value"}, rows[0])
	assert.Equal(t, []string{"B", "C", "0.4"}, rows[2])
}

func TestReadXLSXBinary_SkipsBlankRows(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"source", "target"},
			{"", ""},
			{"A", "B"},
		},
	})

	rows, err := ReadXLSXBinary(data, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"source", "target"}, {"A", "B"}}, rows)
}

func TestReadXLSXBinary_SheetSelection(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{
		"only": {{"x"}},
	})

	_, err := ReadXLSXBinary(data, XLSXOptions{SheetName: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = ReadXLSXBinary(data, XLSXOptions{SheetIndex: 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSXBinary_Garbage(t *testing.T) {
	_, err := ReadXLSXBinary([]byte("not a workbook"), XLSXOptions{})
	require.Error(t, err)
}
