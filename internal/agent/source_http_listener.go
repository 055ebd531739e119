package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/observix/observix/internal/wire"
)

// httpListenerSource binds an HTTP server accepting one Event per POST
// body. Grounded on observix_agent/sources/http_listener.py. Responds 202 on
// accept, 503 when the pipeline's queue is full (queue_full never crosses
// into the caller's address space as an error, per spec, but the HTTP
// contract still needs an honest status code for its own client).
type httpListenerSource struct {
	host string
	port int
	path string
	srv  *http.Server
}

func newHTTPListenerSource(opts map[string]any) (*httpListenerSource, error) {
	port := optInt(opts, "port", 0)
	if port == 0 {
		return nil, fmt.Errorf("http_listener source requires options.port")
	}
	return &httpListenerSource{
		host: optString(opts, "host", "0.0.0.0"),
		port: port,
		path: optString(opts, "path", "/ingest"),
	}, nil
}

func (s *httpListenerSource) run(ctx context.Context, q *boundedQueue, stats *PipelineStats) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "read failed", http.StatusBadRequest)
			return
		}
		raw := strings.TrimSpace(string(body))
		if raw == "" {
			http.Error(w, "empty body", http.StatusBadRequest)
			return
		}

		evt := wire.NewEvent(raw, time.Now())
		evt.SourceAddr = r.RemoteAddr
		evt.Meta["source"] = "http_listener"

		stats.addRecv(1)
		if !q.push(evt) {
			stats.addDroppedQueueFull(1)
			http.Error(w, "queue full", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	s.srv = &http.Server{Addr: fmt.Sprintf("%s:%d", s.host, s.port), Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return wire.NewError(wire.CodeBindFailure, fmt.Sprintf("bind %s:%d: %v", s.host, s.port, err))
	}
}

func (s *httpListenerSource) close() error {
	if s.srv != nil {
		return s.srv.Close()
	}
	return nil
}
