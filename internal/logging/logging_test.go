package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"WARN", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"nonsense", logrus.InfoLevel},
		{"", logrus.InfoLevel},
	}
	for _, tt := range tests {
		if got := NewLogger(tt.level, "text").GetLevel(); got != tt.want {
			t.Errorf("NewLogger(%q) level = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestReportErrorWritesStructuredFields(t *testing.T) {
	logger := NewLogger("info", "json")
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	ReportError(logger.WithField("plan_id", 7), "notify", errors.New("boom"))

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal log line: %v (%s)", err, buf.String())
	}
	if line["error_type"] != "notify" || line["error"] != "boom" {
		t.Errorf("unexpected fields: %v", line)
	}
	if line["plan_id"] != float64(7) {
		t.Errorf("plan_id = %v, want 7", line["plan_id"])
	}
}

func TestInitSentryWithoutDSN(t *testing.T) {
	flush, err := InitSentry("", "test")
	if err != nil {
		t.Fatalf("InitSentry: %v", err)
	}
	flush()
}
