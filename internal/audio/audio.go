// Package audio probes and prepares the narration track.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ivlev/topic2video/internal/errs"
)

// Prober reports the duration of a media file in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFprobe shells out to ffprobe.
type FFprobe struct {
	Binary string
}

func (p FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	bin := p.Binary
	if bin == "" {
		bin = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return 0, &errs.EncodingError{Op: "probe", ExitCode: code, Stderr: string(out), Err: err}
	}
	return ParseDuration(string(out))
}

// ParseDuration reads ffprobe's bare format=duration output.
func ParseDuration(out string) (float64, error) {
	s := strings.TrimSpace(out)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("probe: %w: unexpected duration %q", errs.ErrPartialData, s)
	}
	return d, nil
}

// SuggestSceneDuration splits total narration time evenly across n scenes.
func SuggestSceneDuration(totalSeconds float64, n int) (float64, error) {
	if n <= 0 {
		return 0, errs.Validation("suggest duration", "scene count must be positive, got %d", n)
	}
	if totalSeconds <= 0 {
		return 0, errs.Validation("suggest duration", "narration duration must be positive, got %g", totalSeconds)
	}
	return totalSeconds / float64(n), nil
}
