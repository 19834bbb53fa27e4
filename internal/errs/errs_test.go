package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestEncodingErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("exit status 1")
	err := fmt.Errorf("render: %w", &EncodingError{Op: "render", ExitCode: 1, Stderr: "a\nb\nInvalid data\n", Err: cause})

	if !errors.Is(err, ErrEncoding) {
		t.Fatal("expected errors.Is(err, ErrEncoding)")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected the cause to be reachable")
	}

	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatal("expected errors.As to find *EncodingError")
	}
	if encErr.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", encErr.ExitCode)
	}
	if !strings.Contains(err.Error(), "Invalid data") {
		t.Errorf("stderr tail missing from message: %q", err.Error())
	}
}

func TestHelpersWrapSentinels(t *testing.T) {
	if err := Validation("segment", "max chars %d", 0); !errors.Is(err, ErrValidation) {
		t.Errorf("Validation() does not wrap ErrValidation: %v", err)
	}
	err := NotFound("render", "/tmp/missing.png")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("NotFound() does not wrap ErrNotFound: %v", err)
	}
	if !strings.Contains(err.Error(), "/tmp/missing.png") {
		t.Errorf("path missing from %q", err.Error())
	}
}

func TestTailLines(t *testing.T) {
	in := "1\n2\n3\n4\n"
	if got := tailLines(in, 2); got != "3\n4" {
		t.Errorf("tailLines = %q", got)
	}
}
