package agent

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/observix/observix/internal/wire"
)

func TestFormatSyslogLineUsesSourceHostWhenAvailable(t *testing.T) {
	e := wire.NewEvent("disk full", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	e.SourceAddr = "10.0.0.5:5514"

	line := formatSyslogLine("myapp", e)
	if !strings.HasPrefix(line, "<14>") {
		t.Fatalf("expected PRI <14> prefix, got %q", line)
	}
	if !strings.Contains(line, "10.0.0.5") {
		t.Fatalf("expected source host in line, got %q", line)
	}
	if !strings.Contains(line, "myapp: disk full") {
		t.Fatalf("expected app name and raw message, got %q", line)
	}
}

func TestFormatSyslogLineFallsBackToLocalHostname(t *testing.T) {
	e := wire.NewEvent("hi", time.Now())
	line := formatSyslogLine("app", e)
	if !strings.Contains(line, "app: hi") {
		t.Fatalf("expected formatted line, got %q", line)
	}
	want, err := os.Hostname()
	if err != nil || want == "" {
		want = "localhost"
	}
	if !strings.Contains(line, " "+want+" app: hi") {
		t.Fatalf("expected local hostname %q in line, got %q", want, line)
	}
}
