package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "practices.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadPractices(t *testing.T) {
	t.Parallel()
	path := writeCSV(t, "id,name,website,extra\n1,Main Street Dental,mainstreet.example.com,x\n2, Smile Co ,https://smile.example.com/,y\n")

	rows, err := ReadPractices(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, PracticeRow{ID: "1", Name: "Main Street Dental", Website: "mainstreet.example.com"}, rows[0])
	require.Equal(t, "Smile Co", rows[1].Name)
}

func TestReadPracticesToleratesBOMAndCase(t *testing.T) {
	t.Parallel()
	path := writeCSV(t, "\ufeffID,Name,Website\n1,A,a.example.com\n")

	rows, err := ReadPractices(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "a.example.com", rows[0].Website)
}

func TestReadPracticesMissingColumn(t *testing.T) {
	t.Parallel()
	path := writeCSV(t, "id,name\n1,A\n")

	_, err := ReadPractices(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "website")
}

func TestReadPracticesMissingFile(t *testing.T) {
	t.Parallel()
	_, err := ReadPractices(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}
