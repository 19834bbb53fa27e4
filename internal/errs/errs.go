package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed or missing required input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a referenced document or media file that is absent.
	ErrNotFound = errors.New("not found")
	// ErrEncoding marks a failed or unlaunchable encoder subprocess.
	ErrEncoding = errors.New("encoding error")
	// ErrPartialData marks a backing resource that exists but holds nothing usable.
	ErrPartialData = errors.New("partial data")
)

// EncodingError carries the encoder diagnostics for a failed invocation.
type EncodingError struct {
	Op       string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *EncodingError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: encoder exited with code %d", e.Op, e.ExitCode)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if tail := tailLines(e.Stderr, 8); tail != "" {
		fmt.Fprintf(&b, "\n%s", tail)
	}
	return b.String()
}

func (e *EncodingError) Unwrap() error { return e.Err }

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// Validation returns an error wrapping ErrValidation for op.
func Validation(op, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", op, ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound returns an error wrapping ErrNotFound for op and the missing path.
func NotFound(op, path string) error {
	return fmt.Errorf("%s: %w: %s", op, ErrNotFound, path)
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
