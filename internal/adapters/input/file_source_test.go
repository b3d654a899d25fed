package input

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectLines(t *testing.T, src *FileLineSource) ([]string, []error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lineChan, errChan := src.Start(ctx)

	var lines []string
	for line := range lineChan {
		lines = append(lines, line)
	}
	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	require.NoError(t, ctx.Err(), "source did not reach end of file")
	return lines, errs
}

func TestFileLineSourceReadsToEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log")
	content := "first|line\r\nsecond|line\n\nlast line without newline"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	src := NewFileLineSource(path, 0)
	require.NoError(t, src.Open())

	lines, errs := collectLines(t, src)

	assert.Empty(t, errs)
	assert.Equal(t, []string{"first|line", "second|line", "", "last line without newline"}, lines)
	assert.NoError(t, src.Stop())
}

func TestFileLineSourceEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.log")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	lines, errs := collectLines(t, NewFileLineSource(path, 10))

	assert.Empty(t, lines)
	assert.Empty(t, errs)
}

func TestFileLineSourceMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.log")
	src := NewFileLineSource(path, 10)

	assert.Error(t, src.Open())

	lines, errs := collectLines(t, src)
	assert.Empty(t, lines)
	assert.Len(t, errs, 1)
}

func TestFileLineSourceStopBeforeStart(t *testing.T) {
	src := NewFileLineSource("unused", 10)
	assert.NoError(t, src.Stop())
}
