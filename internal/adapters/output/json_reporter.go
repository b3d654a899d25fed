package output

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/xoelrdgz/logtally/internal/domain"
)

// JSONReporter writes each flagged address as one JSON object per line.
type JSONReporter struct {
	bufWriter *bufio.Writer
	file      *os.File // nil for stdout
	encoder   *json.Encoder
	mu        sync.Mutex
}

type JSONReporterConfig struct {
	FilePath string // Output file path (empty for stdout)
	Pretty   bool
}

// NewJSONReporter opens the destination. Files are appended to, so several
// runs can share one output file.
//
// File Permissions: 0600 (owner read/write only)
func NewJSONReporter(config JSONReporterConfig) (*JSONReporter, error) {
	var writer io.Writer = os.Stdout
	var file *os.File

	if config.FilePath != "" {
		var err error
		file, err = os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, err
		}
		writer = file
	}

	return newJSONReporter(writer, file, config.Pretty), nil
}

// NewJSONReporterWriter writes to an arbitrary writer. Close does not close w.
func NewJSONReporterWriter(w io.Writer) *JSONReporter {
	return newJSONReporter(w, nil, false)
}

func newJSONReporter(w io.Writer, file *os.File, pretty bool) *JSONReporter {
	const bufferSize = 64 * 1024
	bufWriter := bufio.NewWriterSize(w, bufferSize)

	r := &JSONReporter{
		bufWriter: bufWriter,
		file:      file,
		encoder:   json.NewEncoder(bufWriter),
	}
	if pretty {
		r.encoder.SetIndent("", "  ")
	}
	return r
}

func (r *JSONReporter) Report(ctx context.Context, flag *domain.FlagEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.encoder.Encode(flag)
}

func (r *JSONReporter) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.flushLocked()
}

func (r *JSONReporter) flushLocked() error {
	if err := r.bufWriter.Flush(); err != nil {
		return err
	}
	if r.file != nil {
		return r.file.Sync()
	}
	return nil
}

func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.flushLocked(); err != nil {
		return err
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
