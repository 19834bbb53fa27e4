package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/ivlev/topic2video/internal/errs"
	"github.com/ivlev/topic2video/internal/video"
)

type SilenceOptions struct {
	ThresholdDB float64
	MinSilence  float64
}

// Filter is the silenceremove expression that drops every silent stretch.
func (o SilenceOptions) Filter() string {
	threshold, minSilence := o.ThresholdDB, o.MinSilence
	if threshold == 0 {
		threshold = -44
	}
	if minSilence <= 0 {
		minSilence = 0.6
	}
	return fmt.Sprintf("silenceremove=stop_periods=-1:stop_duration=%s:stop_threshold=%sdB",
		strconv.FormatFloat(minSilence, 'f', -1, 64), strconv.FormatFloat(threshold, 'f', -1, 64))
}

type Trimmed struct {
	Path    string  `json:"path"`
	Seconds float64 `json:"seconds"`
}

// TrimSilence writes a copy of in without silences to out and probes the
// resulting duration.
func TrimSilence(ctx context.Context, enc video.Encoder, prober Prober, in, out string, opts SilenceOptions) (Trimmed, error) {
	if in == "" {
		return Trimmed{}, errs.Validation("trim silence", "audio path is required")
	}
	if fi, err := os.Stat(in); err != nil || fi.IsDir() {
		return Trimmed{}, errs.NotFound("trim silence", in)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return Trimmed{}, fmt.Errorf("trim silence: %w", err)
	}

	args := []string{"-y", "-i", in, "-af", opts.Filter(), out}
	if _, err := enc.Encode(ctx, video.Job{Op: "trim silence", Args: args}); err != nil {
		return Trimmed{}, err
	}

	seconds, err := prober.Duration(ctx, out)
	if err != nil {
		return Trimmed{}, fmt.Errorf("trim silence: %w", err)
	}
	log.Info().Str("input", in).Str("output", out).Float64("seconds", seconds).Msg("silence removed")
	return Trimmed{Path: out, Seconds: seconds}, nil
}
