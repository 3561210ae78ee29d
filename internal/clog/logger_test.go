package clog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerLevelFiltering(t *testing.T) {
	tests := []struct {
		name     string
		minLevel Level
		logAt    Level
		want     bool
	}{
		{"debug at info level suppressed", LevelInfo, LevelDebug, false},
		{"info at info level logged", LevelInfo, LevelInfo, true},
		{"warn at info level logged", LevelInfo, LevelWarn, true},
		{"info at error level suppressed", LevelError, LevelInfo, false},
		{"debug at debug level logged", LevelDebug, LevelDebug, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewLogger()
			l.SetFileOutput(&buf)
			l.SetErrOutput(nil)
			l.SetLevel(tt.minLevel)

			l.log(tt.logAt, "hello %s", "world")

			got := buf.Len() > 0
			if got != tt.want {
				t.Errorf("logged = %v, want %v (output %q)", got, tt.want, buf.String())
			}
		})
	}
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger()
	l.SetFileOutput(&buf)
	l.SetErrOutput(nil)

	l.Info("executing %q", "echo hi")

	line := buf.String()
	if !strings.Contains(line, "[INFO]") {
		t.Errorf("log line missing level: %q", line)
	}
	if !strings.Contains(line, `executing "echo hi"`) {
		t.Errorf("log line missing message: %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Errorf("log line missing trailing newline: %q", line)
	}
}

func TestLoggerDaemonModeSuppressesStderr(t *testing.T) {
	var file, errOut bytes.Buffer
	l := NewLogger()
	l.SetFileOutput(&file)
	l.SetErrOutput(&errOut)
	l.SetDaemonMode(true)

	l.Error("something failed")

	if file.Len() == 0 {
		t.Error("file output should receive error in daemon mode")
	}
	if errOut.Len() != 0 {
		t.Errorf("stderr should be empty in daemon mode, got %q", errOut.String())
	}
}

func TestLoggerWarnGoesToStderrInCLIMode(t *testing.T) {
	var errOut bytes.Buffer
	l := NewLogger()
	l.SetFileOutput(nil)
	l.SetErrOutput(&errOut)

	l.Info("quiet")
	if errOut.Len() != 0 {
		t.Errorf("info should not reach stderr, got %q", errOut.String())
	}

	l.Warn("loud")
	if !strings.Contains(errOut.String(), "[WARN] loud") {
		t.Errorf("warn missing from stderr: %q", errOut.String())
	}
}

func TestOpenLogFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "warden.log")

	f, err := OpenLogFile(path)
	if err != nil {
		t.Fatalf("OpenLogFile() error = %v", err)
	}
	defer f.Close()

	if _, err := f.WriteString("entry\n"); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "entry\n" {
		t.Errorf("file contents = %q, want %q", data, "entry\n")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warning", LevelWarn},
		{"err", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
