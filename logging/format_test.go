package logging

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	if got := Truncate("  "); got != "<empty>" {
		t.Fatalf("Truncate(blank) = %q", got)
	}
	if got := Truncate("line1\nline2"); got != "line1 line2" {
		t.Fatalf("Truncate(multiline) = %q", got)
	}
	long := strings.Repeat("x", clipLimit+10)
	if got := Truncate(long); len(got) != clipLimit+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("Truncate(long) = %d chars", len(got))
	}
}

func TestFormatHTTPPayload_DecodesJSON(t *testing.T) {
	if got := FormatHTTPPayload([]byte(`"{\"error\":\"nope\"}"`)); !strings.Contains(got, `"error":"nope"`) {
		t.Fatalf("FormatHTTPPayload(quoted JSON) = %q", got)
	}
	if got := FormatHTTPPayload(nil); got != "<empty>" {
		t.Fatalf("FormatHTTPPayload(nil) = %q", got)
	}
	if got := FormatHTTPPayload([]byte("plain text")); got != "plain text" {
		t.Fatalf("FormatHTTPPayload(text) = %q", got)
	}
}

func TestFormatEventLine(t *testing.T) {
	event := Event{
		Time:    time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC),
		Level:   slog.LevelWarn,
		Message: "request rejected",
		Fields:  map[string]any{"status": "502 Bad Gateway", "attempt": 2},
	}
	line := FormatEventLine(event)
	if !strings.HasPrefix(line, "10:30:00 [WARN] request rejected") {
		t.Fatalf("line = %q", line)
	}
	if !strings.Contains(line, "attempt=2") || !strings.Contains(line, "status=502 Bad Gateway") {
		t.Fatalf("line = %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("line must end with newline")
	}
}
