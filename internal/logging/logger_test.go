package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriterTagsServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewWithWriter(&buf, "debug"), "settlement")
	logger.Debug("claimed tasks")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if entry["service"] != "nanolink-api" {
		t.Fatalf("expected service tag, got %v", entry["service"])
	}
	if entry["component"] != "settlement" {
		t.Fatalf("expected component tag, got %v", entry["component"])
	}
	if entry["msg"] != "claimed tasks" {
		t.Fatalf("unexpected message %v", entry["msg"])
	}
}

func TestNewWithWriterInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "loud")
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line should be filtered at info, got %q", buf.String())
	}
	logger.Info("shown")
	if buf.Len() == 0 {
		t.Fatal("info line missing")
	}
}

func TestComponentNilLogger(t *testing.T) {
	if Component(nil, "x") == nil {
		t.Fatal("expected a usable logger")
	}
}
