package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "test-app", nil)

	log.Debug(context.Background(), "should not appear")
	log.Info(context.Background(), "should not appear either")
	log.Warn(context.Background(), "this should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("debug/info records leaked through a warn-level logger: %s", out)
	}
	if !strings.Contains(out, "this should appear") {
		t.Fatalf("expected warn record in output: %s", out)
	}
}

func TestWithAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "test-app", nil)

	scoped := log.With("venue", "binance")
	scoped.Info(context.Background(), "connected")

	if !strings.Contains(buf.String(), "venue=binance") {
		t.Fatalf("expected scoped field in output: %s", buf.String())
	}
}

func TestDiscardProducesNoOutput(t *testing.T) {
	log := Discard()
	log.Error(context.Background(), "this should go nowhere")
}
