package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/fatih/color"
)

// captureOutput redirects the standard logger for the duration of a test and
// returns the buffer receiving its output.
func captureOutput(t *testing.T) *bytes.Buffer {
	// Disable colorization so that output can be compared directly.
	noColor := color.NoColor
	color.NoColor = true

	// Redirect the standard logger.
	buffer := &bytes.Buffer{}
	output := log.Writer()
	flags := log.Flags()
	log.SetOutput(buffer)
	log.SetFlags(0)

	// Restore everything once the test completes.
	t.Cleanup(func() {
		color.NoColor = noColor
		log.SetOutput(output)
		log.SetFlags(flags)
	})

	// Done.
	return buffer
}

// TestNilLogger tests that a nil logger can be used without panicking.
func TestNilLogger(t *testing.T) {
	var logger *Logger
	if logger.Sublogger("child") != nil {
		t.Error("sublogger of nil logger is non-nil")
	}
	if logger.Level() != LevelDisabled {
		t.Error("nil logger reports non-disabled level")
	}
	logger.Errorf("error %d", 1)
	logger.Warnf("warn %d", 1)
	logger.Infof("info %d", 1)
	logger.Debugf("debug %d", 1)
	logger.Tracef("trace %d", 1)
	if _, err := logger.Writer().Write([]byte("discarded\n")); err != nil {
		t.Error("nil logger writer failed:", err)
	}
}

// TestSubloggerPrefix tests that sublogger prefixes nest and that levels are
// inherited.
func TestSubloggerPrefix(t *testing.T) {
	buffer := captureOutput(t)

	// Create a nested logger and log through it.
	logger := NewLogger(LevelDebug).Sublogger("monitoring").Sublogger("/tmp")
	if logger.Level() != LevelDebug {
		t.Error("sublogger did not inherit level")
	}
	logger.Debugf("probing %s", "directory")

	// Verify the output.
	if output := buffer.String(); output != "[monitoring./tmp] probing directory\n" {
		t.Errorf("unexpected log output: %q", output)
	}
}

// TestLevelFiltering tests that messages above the logger's level are dropped.
func TestLevelFiltering(t *testing.T) {
	buffer := captureOutput(t)

	// Log at every level through a warning-level logger.
	logger := NewLogger(LevelWarn)
	logger.Errorf("first")
	logger.Warnf("second")
	logger.Infof("third")
	logger.Debugf("fourth")
	logger.Tracef("fifth")

	// Verify that only errors and warnings were emitted.
	lines := strings.Split(strings.TrimSpace(buffer.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("unexpected number of log lines: %d", len(lines))
	}
	if lines[0] != "Error: first" {
		t.Errorf("unexpected error line: %q", lines[0])
	}
	if lines[1] != "Warning: second" {
		t.Errorf("unexpected warning line: %q", lines[1])
	}
}

// TestWriterLineSplitting tests that the line-splitting writer buffers partial
// lines and strips carriage returns.
func TestWriterLineSplitting(t *testing.T) {
	// Create a writer that records lines.
	var lines []string
	w := &writer{callback: func(s string) {
		lines = append(lines, s)
	}}

	// Perform fragmented writes.
	w.Write([]byte("first li"))
	w.Write([]byte("ne\r\nsecond line\nthi"))
	w.Write([]byte("rd"))

	// Verify the complete lines.
	if len(lines) != 2 || lines[0] != "first line" || lines[1] != "second line" {
		t.Errorf("unexpected lines: %q", lines)
	}

	// Verify the leftover fragment.
	if string(w.buffer) != "third" {
		t.Errorf("unexpected leftover fragment: %q", w.buffer)
	}
}
