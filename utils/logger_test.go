package utils

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerTo(&out, &errOut)

	l.Info("collected %d listings", 7)
	l.Warn("slow page")
	l.Error("boom: %v", "cause")

	stdout := out.String()
	if !strings.Contains(stdout, "INFO") || !strings.Contains(stdout, "collected 7 listings") {
		t.Errorf("stdout missing info line: %q", stdout)
	}
	if !strings.Contains(stdout, "WARN") || !strings.Contains(stdout, "slow page") {
		t.Errorf("stdout missing warn line: %q", stdout)
	}
	if strings.Contains(stdout, "ERROR") {
		t.Errorf("error line leaked to stdout: %q", stdout)
	}
	if got := errOut.String(); !strings.Contains(got, "boom: cause") {
		t.Errorf("stderr missing error line: %q", got)
	}
}

func TestLoggerDebugGate(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerTo(&out, &errOut)

	l.Debug("visible")
	l.SetDebug(false)
	l.Debug("suppressed")

	stdout := out.String()
	if !strings.Contains(stdout, "visible") {
		t.Errorf("debug line missing while gate open: %q", stdout)
	}
	if strings.Contains(stdout, "suppressed") {
		t.Errorf("debug line written while gate closed: %q", stdout)
	}
}
