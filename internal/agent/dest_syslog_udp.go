package agent

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/observix/observix/internal/wire"
)

// syslogUDPDestination reframes each Event as an RFC3164-ish line and sends
// it as its own datagram. Grounded on observix_agent/destinations/syslog_udp.py:
// the PRI is fixed at <14> (user.info), the timestamp uses the classic
// "Jan _2 15:04:05" layout, and the hostname falls back from the event's
// recorded source host to os.Hostname() to "localhost".
type syslogUDPDestination struct {
	appName string
	conn    *net.UDPConn
}

func newSyslogUDPDestination(opts map[string]any) (*syslogUDPDestination, error) {
	host := optString(opts, "host", "127.0.0.1")
	port := optInt(opts, "port", 0)
	if port == 0 {
		return nil, fmt.Errorf("syslog_udp destination requires options.port")
	}
	addr := &net.UDPAddr{IP: net.ParseIP(host), Port: port}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, wire.WrapError(wire.CodeBindFailure, fmt.Sprintf("dial %s:%d", host, port), err)
	}
	return &syslogUDPDestination{appName: optString(opts, "app_name", "observix"), conn: conn}, nil
}

func (d *syslogUDPDestination) send(events []wire.Event) error {
	for _, e := range events {
		line := formatSyslogLine(d.appName, e)
		if _, err := d.conn.Write([]byte(line)); err != nil {
			return wire.WrapError(wire.CodeSendError, "syslog_udp write", err)
		}
	}
	return nil
}

func formatSyslogLine(appName string, e wire.Event) string {
	ts := e.Ts
	if ts.IsZero() {
		ts = time.Now()
	}
	host := syslogHostname(e)
	return fmt.Sprintf("<14>%s %s %s: %s", ts.Format("Jan _2 15:04:05"), host, appName, e.Raw)
}

func syslogHostname(e wire.Event) string {
	if e.SourceAddr != "" {
		if h, _, err := net.SplitHostPort(e.SourceAddr); err == nil && h != "" {
			return h
		}
		return e.SourceAddr
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "localhost"
}

func (d *syslogUDPDestination) close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}
