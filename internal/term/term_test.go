package term

import (
	"bytes"
	"testing"
)

func TestPrintfRespectsQuiet(t *testing.T) {
	defer Reset()

	var out bytes.Buffer
	SetOutput(&out)

	Printf("visible %d\n", 1)
	if out.String() != "visible 1\n" {
		t.Errorf("output = %q, want %q", out.String(), "visible 1\n")
	}

	out.Reset()
	SetQuiet(true)
	Printf("hidden\n")
	if out.Len() != 0 {
		t.Errorf("quiet output = %q, want empty", out.String())
	}
}

func TestWarnAndErrorIgnoreQuiet(t *testing.T) {
	defer Reset()

	var errOut bytes.Buffer
	SetErrOutput(&errOut)
	SetQuiet(true)

	Warn("disk almost full")
	Error("cannot reach daemon")

	got := errOut.String()
	want := "Warning: disk almost full\nError: cannot reach daemon\n"
	if got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}
}

func TestStdoutReturnsDiscardWhenQuiet(t *testing.T) {
	defer Reset()

	var out bytes.Buffer
	SetOutput(&out)
	SetQuiet(true)

	w := Stdout()
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("quiet Stdout() wrote through: %q", out.String())
	}
}
