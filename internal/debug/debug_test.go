package debug

import (
	"bytes"
	"strings"
	"testing"
)

// capture swaps the package writers and flags for the duration of a test.
func capture(t *testing.T, debugOn, quiet bool) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	oldEnabled, oldVerbose, oldQuiet := enabled, verboseMode, quietMode
	oldErr, oldOut := stderr, stdout
	t.Cleanup(func() {
		enabled, verboseMode, quietMode = oldEnabled, oldVerbose, oldQuiet
		stderr, stdout = oldErr, oldOut
	})

	var errBuf, outBuf bytes.Buffer
	stderr, stdout = &errBuf, &outBuf
	enabled, verboseMode, quietMode = debugOn, false, quiet
	return &errBuf, &outBuf
}

func TestLogf(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		want    string
	}{
		{"outputs when enabled", true, "test message: hello\n"},
		{"no output when disabled", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errBuf, _ := capture(t, tt.enabled, false)
			Logf("test message: %s\n", "hello")
			if got := errBuf.String(); got != tt.want {
				t.Errorf("Logf() output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSetVerbose(t *testing.T) {
	errBuf, _ := capture(t, false, false)

	if Enabled() {
		t.Fatal("Enabled() = true before SetVerbose")
	}
	SetVerbose(true)
	if !Enabled() {
		t.Fatal("Enabled() = false after SetVerbose(true)")
	}
	Logf("verbose %d\n", 1)
	if got := errBuf.String(); got != "verbose 1\n" {
		t.Errorf("Logf() output = %q, want %q", got, "verbose 1\n")
	}
}

func TestQuietSuppressesNormalOutput(t *testing.T) {
	_, outBuf := capture(t, false, true)

	if !IsQuiet() {
		t.Fatal("IsQuiet() = false, want true")
	}
	PrintNormal("hidden %s\n", "text")
	PrintlnNormal("hidden")
	if outBuf.Len() != 0 {
		t.Errorf("quiet mode printed %q", outBuf.String())
	}

	SetQuiet(false)
	PrintNormal("shown %s\n", "text")
	PrintlnNormal("line")
	if got := outBuf.String(); got != "shown text\nline\n" {
		t.Errorf("output = %q", got)
	}
}

func TestTimed(t *testing.T) {
	errBuf, _ := capture(t, true, false)
	Timed("extract")()
	if !strings.Contains(errBuf.String(), "[debug] extract took") {
		t.Errorf("Timed() output = %q", errBuf.String())
	}

	errBuf.Reset()
	enabled = false
	Timed("extract")()
	if errBuf.Len() != 0 {
		t.Errorf("Timed() wrote %q while disabled", errBuf.String())
	}
}
