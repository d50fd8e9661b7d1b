package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

// TestSetup_WritesJSON はログがJSON形式で出力されることを検証する。
func TestSetup_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := Setup(&buf)

	log.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}

// TestSetup_DebugSuppressedByDefault はデフォルトレベルでDebugログが出力されないことを検証する。
func TestSetup_DebugSuppressedByDefault(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	var buf bytes.Buffer
	log := Setup(&buf)

	log.Debug("should not appear")
	if buf.Len() != 0 {
		t.Errorf("debug log was written: %s", buf.String())
	}
}

// TestSetup_DebugEnabledByEnv はLOG_LEVEL=debugでDebugログが出力されることを検証する。
func TestSetup_DebugEnabledByEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")

	var buf bytes.Buffer
	log := Setup(&buf)

	log.Debug("should appear")
	if buf.Len() == 0 {
		t.Error("debug log was not written with LOG_LEVEL=debug")
	}
}
