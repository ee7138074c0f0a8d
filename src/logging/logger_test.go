package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	saved := baseLogger
	baseLogger = log.New(&buf, "", 0)
	t.Cleanup(func() { baseLogger = saved })
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel("warn")
	defer SetLevel("info")

	Debugf("hidden debug")
	Infof("hidden info")
	Warnf("shown warn")
	Errorf("shown error")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("filtered levels leaked: %s", out)
	}
	if !strings.Contains(out, "[WARN] shown warn") || !strings.Contains(out, "[ERROR] shown error") {
		t.Fatalf("expected warn and error lines, got: %s", out)
	}
}

func TestInfofNoDoubleFormattingWithPercent(t *testing.T) {
	buf := capture(t)
	SetLevel("info")

	// Already-formatted message with a literal % must pass through untouched.
	msg := "utilization 87.5% of capacity"
	Infof(msg)

	out := buf.String()
	if !strings.Contains(out, "87.5% of capacity") {
		t.Fatalf("log output missing percent segment: %s", out)
	}
	if strings.Contains(out, "(MISSING)") {
		t.Fatalf("log output shows fmt artifact: %s", out)
	}
}

func TestSetLevelUnknownIgnored(t *testing.T) {
	SetLevel("info")
	SetLevel("bogus")
	if getLevel() != LevelInfo {
		t.Fatalf("unknown level name should be ignored, got %v", getLevel())
	}
}
