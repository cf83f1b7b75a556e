package payload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRangesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ranges.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileRangeSourceDispensesInOrder(t *testing.T) {
	t.Parallel()

	path := writeRangesFile(t, `[
		{"eventRangeID":"r1","startEvent":1,"lastEvent":1},
		{"eventRangeID":"r2","startEvent":2,"lastEvent":2},
		{"eventRangeID":"r3","startEvent":3,"lastEvent":3}
	]`)

	source, err := NewFileRangeSource(path, nil)
	require.NoError(t, err)
	require.Equal(t, 3, source.Remaining())

	first, err := source.NextRanges(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "r1", first[0].RangeID)
	assert.Equal(t, "r2", first[1].RangeID)

	// Asking for more than remains returns what is left, then empty.
	second, err := source.NextRanges(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "r3", second[0].RangeID)

	third, err := source.NextRanges(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, third)
	assert.Zero(t, source.Remaining())
}

func TestFileRangeSourceZeroRequest(t *testing.T) {
	t.Parallel()

	path := writeRangesFile(t, `[{"eventRangeID":"r1","startEvent":1,"lastEvent":1}]`)
	source, err := NewFileRangeSource(path, nil)
	require.NoError(t, err)

	got, err := source.NextRanges(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, source.Remaining())
}

func TestFileRangeSourceRejectsBadFile(t *testing.T) {
	t.Parallel()

	_, err := NewFileRangeSource(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.Error(t, err)

	path := writeRangesFile(t, `{"not":"an array"}`)
	_, err = NewFileRangeSource(path, nil)
	require.Error(t, err)
}
