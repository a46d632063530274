package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestShouldRedactKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{key: "csrf_token", want: true},
		{key: "X-CSRF-Token", want: true},
		{key: "Cookie", want: true},
		{key: "authorization", want: true},
		{key: "jwt_secret", want: true},
		{key: "redis_password", want: true},
		{key: "category", want: false},
		{key: "key", want: false},
		{key: "retry_after", want: false},
		{key: "request_id", want: false},
	}

	for _, tt := range tests {
		if got := shouldRedactKey(tt.key); got != tt.want {
			t.Fatalf("expected shouldRedactKey(%q)=%v, got %v", tt.key, tt.want, got)
		}
	}
}

func TestRedactAttrGroups(t *testing.T) {
	attr := slog.Group("request", slog.String("csrf_token", "abc"), slog.String("path", "/login"))
	redacted := redactAttr(attr)

	group := redacted.Value.Group()
	if len(group) != 2 {
		t.Fatalf("expected 2 group attrs, got %d", len(group))
	}
	if group[0].Value.String() != redactedValue {
		t.Fatalf("expected csrf_token to be redacted, got %q", group[0].Value.String())
	}
	if group[1].Value.String() != "/login" {
		t.Fatalf("expected path to stay, got %q", group[1].Value.String())
	}
}

func TestLoggerRedactsRecordAndWithAttrs(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := newLogger(&buf, "guard", "debug").With("jwt_secret", "s3cr3t")
	logger.Info("issued", "csrf_token", "tok", "category", "login")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json log line: %v (%s)", err, buf.String())
	}
	if line["csrf_token"] != redactedValue || line["jwt_secret"] != redactedValue {
		t.Fatalf("expected sensitive attrs redacted, got %v", line)
	}
	if line["category"] != "login" || line["service"] != "guard" {
		t.Fatalf("expected plain attrs kept, got %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("DEBUG") != slog.LevelDebug || parseLevel("warning") != slog.LevelWarn || parseLevel("") != slog.LevelInfo {
		t.Fatalf("unexpected level parsing")
	}
}
