package raspiaprs

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	var f, err = os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records, readErr = csv.NewReader(f).ReadAll()
	require.NoError(t, readErr)
	return records
}

func TestTransmitLogSingleFile(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "tx.csv")

	var tlog, err = OpenTransmitLog(false, path, quietLogger())
	require.NoError(t, err)

	var when = time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	tlog.ObserveTransmit(Transmission{Kind: KindStatus, Line: "N0CALL>APP642:>a, b", Time: when})
	tlog.ObserveTransmit(Transmission{Kind: KindPosition, Line: "N0CALL>APP642:/x", Time: when, Err: errors.New("broken pipe")})
	tlog.Close()

	assert.Equal(t, [][]string{
		{"utime", "isotime", "kind", "ok", "error", "packet"},
		{"1709647620", "2024-03-05T14:07:00Z", "status", "true", "", "N0CALL>APP642:>a, b"},
		{"1709647620", "2024-03-05T14:07:00Z", "position", "false", "broken pipe", "N0CALL>APP642:/x"},
	}, readCSV(t, path))

	// Reopening appends without a second header.
	tlog, err = OpenTransmitLog(false, path, quietLogger())
	require.NoError(t, err)
	tlog.ObserveTransmit(Transmission{Kind: KindStatus, Line: "again", Time: when})
	tlog.Close()

	assert.Len(t, readCSV(t, path), 4)
}

func TestTransmitLogDailyNames(t *testing.T) {
	var dir = filepath.Join(t.TempDir(), "logs")

	var tlog, err = OpenTransmitLog(true, dir, quietLogger())
	require.NoError(t, err)
	defer tlog.Close()

	var day1 = time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC)
	tlog.ObserveTransmit(Transmission{Kind: KindStatus, Line: "one", Time: day1})
	tlog.ObserveTransmit(Transmission{Kind: KindStatus, Line: "two", Time: day1.Add(2 * time.Minute)})

	assert.Len(t, readCSV(t, filepath.Join(dir, "2024-03-05.log")), 2)
	assert.Len(t, readCSV(t, filepath.Join(dir, "2024-03-06.log")), 2)
}

func TestTransmitLogDirIsAFile(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var _, err = OpenTransmitLog(true, path, quietLogger())
	assert.Error(t, err)
}
