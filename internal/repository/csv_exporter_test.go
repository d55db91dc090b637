package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResult().Records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"SPY", "2025-03-10", "110.00", "bull", "long call (outright)", "$110 (ATM)", "short (15-30d)",
		"breakout", "", "1", "true", "-", "50.0", "2.00",
	}, rows[1])
	assert.Equal(t, "wait", rows[2][4])
	assert.Equal(t, "false", rows[2][10])
}

func TestCSVFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "scan.csv")
	sink := NewCSVFileSink(path)

	require.NoError(t, sink.Deliver(context.Background(), sampleResult()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
