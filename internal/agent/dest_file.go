package agent

import (
	"bufio"
	"fmt"
	"os"

	"github.com/observix/observix/internal/wire"
)

// fileDestination appends one line per event to a local file, opened once
// and kept open for the pipeline's lifetime. Grounded on
// observix_agent/destinations/file.py.
type fileDestination struct {
	file   *os.File
	writer *bufio.Writer
}

func newFileDestination(opts map[string]any) (*fileDestination, error) {
	path := optString(opts, "path", "")
	if path == "" {
		return nil, fmt.Errorf("file destination requires options.path")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, wire.WrapError(wire.CodeBindFailure, fmt.Sprintf("open %s", path), err)
	}
	return &fileDestination{file: f, writer: bufio.NewWriter(f)}, nil
}

func (d *fileDestination) send(events []wire.Event) error {
	for _, e := range events {
		if _, err := d.writer.WriteString(e.Raw + "\n"); err != nil {
			return wire.WrapError(wire.CodeSendError, "file write", err)
		}
	}
	return d.writer.Flush()
}

func (d *fileDestination) close() error {
	if d.writer != nil {
		d.writer.Flush()
	}
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}
