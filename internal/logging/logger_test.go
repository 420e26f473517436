package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Tiliavir/watch-drift/internal/logging"
)

func TestLoggerHonorsLogLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := logging.New("info", logging.WithWriter(buf))
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.Debug("debug message")
	if buf.Len() != 0 {
		t.Fatalf("expected no output for debug message at info level")
	}

	logger.Info("info message")
	if !strings.Contains(buf.String(), "info message") {
		t.Fatalf("expected output for info message, got %q", buf.String())
	}
}

func TestLoggerJSONWith(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := logging.New("debug", logging.WithWriter(buf), logging.WithJSON())
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	logger.With("watch", "seamaster").Warn("measurement failed", logging.AttachError(errors.New("no sync"))...)

	var entry struct {
		Level string `json:"level"`
		Msg   string `json:"msg"`
		Watch string `json:"watch"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("failed to unmarshal log entry: %v", err)
	}
	if entry.Level != "WARN" || entry.Watch != "seamaster" || entry.Error != "no sync" {
		t.Errorf("entry = %+v", entry)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := logging.New("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *logging.Logger
	l.Info("ignored")
	l.With("k", "v").Error("ignored")
}
