package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/observix/observix/internal/wire"
)

// fileTailSource polls a file for growth and emits one Event per appended
// line. Grounded on observix_agent/sources/file_tail.py: seeks to the end
// unless from_start is set, and reseeks to 0 if the file shrinks (rotation
// via truncate).
type fileTailSource struct {
	path      string
	fromStart bool
	file      *os.File
	reader    *bufio.Reader
	offset    int64
}

func newFileTailSource(opts map[string]any) (*fileTailSource, error) {
	path := optString(opts, "path", "")
	if path == "" {
		return nil, fmt.Errorf("file_tail source requires options.path")
	}
	return &fileTailSource{path: path, fromStart: optBool(opts, "from_start", false)}, nil
}

func (s *fileTailSource) run(ctx context.Context, q *boundedQueue, stats *PipelineStats) error {
	f, err := os.Open(s.path)
	if err != nil {
		return wire.NewError(wire.CodeBindFailure, fmt.Sprintf("open %s: %v", s.path, err))
	}
	s.file = f

	if !s.fromStart {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return wire.NewError(wire.CodeBindFailure, fmt.Sprintf("seek %s: %v", s.path, err))
		}
	}
	s.offset, _ = f.Seek(0, io.SeekCurrent)
	s.reader = bufio.NewReader(f)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.readAvailable(q, stats)
		}
	}
}

func (s *fileTailSource) readAvailable(q *boundedQueue, stats *PipelineStats) {
	info, err := os.Stat(s.path)
	if err == nil && info.Size() < s.offset {
		// File was rotated/truncated underneath us; restart from the top.
		s.file.Seek(0, io.SeekStart)
		s.reader = bufio.NewReader(s.file)
		s.offset = 0
	}

	for {
		line, err := s.reader.ReadString('\n')
		if line != "" {
			trimmed := trimNewline(line)
			if trimmed != "" {
				evt := wire.NewEvent(trimmed, time.Now())
				evt.Meta["source"] = "file_tail"
				evt.Meta["path"] = s.path
				stats.addRecv(1)
				if !q.push(evt) {
					stats.addDroppedQueueFull(1)
				}
			}
			s.offset += int64(len(line))
		}
		if err != nil {
			// EOF or a partial line at the tail; retried on next tick.
			return
		}
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func (s *fileTailSource) close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
