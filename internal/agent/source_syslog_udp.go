package agent

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/observix/observix/internal/wire"
)

// syslogUDPSource binds a UDP socket and turns each datagram into one Event.
// Grounded on observix_agent/sources/syslog_udp.py: a short read deadline
// keeps the receive loop cooperative with shutdown, and a full queue drops
// the newest datagram rather than blocking the receive loop.
type syslogUDPSource struct {
	host string
	port int
	conn *net.UDPConn
}

func newSyslogUDPSource(opts map[string]any) (*syslogUDPSource, error) {
	host := optString(opts, "host", "0.0.0.0")
	port := optInt(opts, "port", 0)
	if port == 0 {
		return nil, fmt.Errorf("syslog_udp source requires options.port")
	}
	return &syslogUDPSource{host: host, port: port}, nil
}

func (s *syslogUDPSource) run(ctx context.Context, q *boundedQueue, stats *PipelineStats) error {
	addr := &net.UDPAddr{IP: net.ParseIP(s.host), Port: s.port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return wire.NewError(wire.CodeBindFailure, fmt.Sprintf("bind %s:%d: %v", s.host, s.port, err))
	}
	s.conn = conn

	buf := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			// Socket closed during shutdown.
			return nil
		}
		if n == 0 {
			continue
		}

		raw := strings.TrimSpace(string(buf[:n]))
		if raw == "" {
			continue
		}
		evt := wire.NewEvent(raw, time.Now())
		evt.SourceAddr = addr.String()
		evt.Meta["source"] = "syslog_udp"

		stats.addRecv(1)
		if !q.push(evt) {
			stats.addDroppedQueueFull(1)
		}
	}
}

func (s *syslogUDPSource) close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
