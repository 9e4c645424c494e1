package security

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newCapturedLogger(r *Redactor) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewRedactingHandler(inner, r)), &buf
}

func TestRedactingHandler_Message(t *testing.T) {
	t.Parallel()
	r := NewRedactor()
	r.AddLiteral("hunter2")
	logger, buf := newCapturedLogger(r)

	logger.Info("auth with hunter2 failed")
	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("secret in message survived: %s", buf.String())
	}
}

func TestRedactingHandler_Attrs(t *testing.T) {
	t.Parallel()
	r := NewRedactor()
	r.AddLiteral("hunter2")
	logger, buf := newCapturedLogger(r)

	logger.Info("request", "url", "https://example.com?key=hunter2", "status", 500)
	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("secret in attr survived: %s", out)
	}
	if !strings.Contains(out, "status=500") {
		t.Errorf("non-secret attrs mangled: %s", out)
	}
}

func TestRedactingHandler_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()
	r := NewRedactor()
	r.AddLiteral("hunter2")
	logger, buf := newCapturedLogger(r)

	logger.With("token", "hunter2").WithGroup("req").Info("sent", "auth", "Bearer hunter2")
	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("secret survived With/WithGroup path: %s", out)
	}
}

func TestRedactingHandler_ErrorValue(t *testing.T) {
	t.Parallel()
	r := NewRedactor()
	r.AddLiteral("hunter2")
	logger, buf := newCapturedLogger(r)

	logger.Error("call failed", "error", errors.New("401 for key hunter2"))
	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("secret inside error value survived: %s", buf.String())
	}
}
