package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestWithContextAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug", true)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithAccountID(ctx, "acc-1")
	WithContext(ctx).Info("claim")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-1"`) || !strings.Contains(out, `"account_id":"acc-1"`) {
		t.Fatalf("expected ids in log line, got %s", out)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "verbose", false)
	Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug must be filtered at default level, got %q", buf.String())
	}
}
