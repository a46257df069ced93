package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.csv")
	headers := []string{"first_name", "last_name", "email"}
	rows := [][]string{
		{"John", "Doe", "john@example.com"},
		{"Jane", "Smith", ""},
	}

	require.NoError(t, writeCSV(path, headers, rows))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, headers, records[0])
	assert.Equal(t, rows[0], records[1])
	assert.Equal(t, rows[1], records[2])
}

func TestWriteExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.xlsx")
	headers := []string{"first_name", "last_name"}
	rows := [][]string{{"John", "Doe"}}

	require.NoError(t, writeExcel(path, "Contacts", headers, rows))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	// The default sheet is replaced by the named one
	assert.Equal(t, []string{"Contacts"}, f.GetSheetList())

	got, err := f.GetRows("Contacts")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, headers, got[0])
	assert.Equal(t, rows[0], got[1])
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Contacts", sheetName("contacts"))
	assert.Equal(t, "Leads", sheetName("leads"))
	assert.Equal(t, "Data", sheetName(""))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "", formatTime(nil))

	ts := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-01T10:30:00Z", formatTime(&ts))
}
