// Package timeline assigns caption timestamps to segmented narration.
package timeline

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ivlev/topic2video/internal/errs"
	"github.com/ivlev/topic2video/internal/segment"
)

const (
	DefaultMaxChars = 400
	DefaultStep     = 40.0
)

type Block struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Timeline struct {
	Blocks       []Block `json:"blocks"`
	TotalSeconds float64 `json:"totalSeconds"`
	Step         float64 `json:"step"`
	MaxChars     int     `json:"maxChars"`
	// TargetSeconds is zero for fixed-mode timelines.
	TargetSeconds float64 `json:"targetSeconds,omitempty"`
}

type Options struct {
	MaxChars int
	Step     float64
	// ExactTarget makes BuildForDuration divide the target evenly across
	// the blocks actually produced instead of using Step.
	ExactTarget bool
}

func (o Options) withDefaults() Options {
	if o.MaxChars <= 0 {
		o.MaxChars = DefaultMaxChars
	}
	if o.Step <= 0 {
		o.Step = DefaultStep
	}
	return o
}

// Drift is how far the total runtime lands from the requested target.
func (t *Timeline) Drift() float64 {
	if t.TargetSeconds == 0 {
		return 0
	}
	return t.TotalSeconds - t.TargetSeconds
}

func (t *Timeline) Texts() []string {
	out := make([]string, len(t.Blocks))
	for i, b := range t.Blocks {
		out[i] = b.Text
	}
	return out
}

// BuildFixed segments text with opts.MaxChars and gives every block opts.Step seconds.
func BuildFixed(text string, opts Options) (*Timeline, error) {
	opts = opts.withDefaults()
	chunks, err := segment.Split(text, opts.MaxChars)
	if err != nil {
		return nil, err
	}
	return FromChunks(chunks, opts.Step, opts.MaxChars), nil
}

// BuildForDuration derives the character budget from targetSeconds:
// ceil(target/step) blocks share the text evenly. The resulting block count
// can differ from the estimate; see Options.ExactTarget.
func BuildForDuration(text string, targetSeconds float64, opts Options) (*Timeline, error) {
	opts = opts.withDefaults()
	if targetSeconds <= 0 || math.IsNaN(targetSeconds) || math.IsInf(targetSeconds, 0) {
		return nil, errs.Validation("timeline", "target duration must be positive, got %g", targetSeconds)
	}
	total := utf8.RuneCountInString(strings.TrimSpace(text))
	if total == 0 {
		return nil, errs.Validation("timeline", "narration text is empty")
	}

	estimated := int(math.Ceil(targetSeconds / opts.Step))
	maxChars := int(math.Ceil(float64(total) / float64(estimated)))
	if maxChars < 1 {
		maxChars = 1
	}

	chunks, err := segment.Split(text, maxChars)
	if err != nil {
		return nil, err
	}

	step := opts.Step
	if opts.ExactTarget {
		step = targetSeconds / float64(len(chunks))
	}
	tl := FromChunks(chunks, step, maxChars)
	tl.TargetSeconds = targetSeconds
	if opts.ExactTarget {
		tl.TotalSeconds = targetSeconds
	}
	return tl, nil
}

// FromChunks lays chunks end to end, step seconds each.
func FromChunks(chunks []string, step float64, maxChars int) *Timeline {
	tl := &Timeline{
		Blocks:   make([]Block, len(chunks)),
		Step:     step,
		MaxChars: maxChars,
	}
	for i, text := range chunks {
		tl.Blocks[i] = Block{
			Index: i,
			Start: float64(i) * step,
			End:   float64(i+1) * step,
			Text:  text,
		}
	}
	tl.TotalSeconds = float64(len(chunks)) * step
	return tl
}
