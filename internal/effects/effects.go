package effects

import (
	"math"
	"strings"

	"github.com/ivlev/topic2video/internal/renderer"
	"github.com/ivlev/topic2video/internal/scenes"
)

// Arg is one filter option. An empty Key renders the value positionally.
type Arg struct {
	Key   string
	Value string
}

// Stage is a single named filter with its options.
type Stage struct {
	Filter string
	Args   []Arg
}

func (s Stage) String() string {
	if len(s.Args) == 0 {
		return s.Filter
	}
	parts := make([]string, len(s.Args))
	for i, a := range s.Args {
		if a.Key == "" {
			parts[i] = a.Value
		} else {
			parts[i] = a.Key + "=" + a.Value
		}
	}
	return s.Filter + "=" + strings.Join(parts, ":")
}

// Chain is an ordered filter chain applied to one input stream.
type Chain []Stage

func (c Chain) String() string {
	parts := make([]string, len(c))
	for i, s := range c {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// Params describe the target output for one scene.
type Params struct {
	Width    int
	Height   int
	FPS      int
	Duration float64
}

// Frames is the exact number of frames the scene occupies, never less than one.
func (p Params) Frames() int {
	n := int(math.Floor(p.Duration*float64(p.FPS) + 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

func pos(v string) Arg     { return Arg{Value: v} }
func kv(k, v string) Arg   { return Arg{Key: k, Value: v} }
func num(v float64) string { return renderer.Num(v) }

// Base is the fixed prefix of every scene chain: fit, pad, normalize the
// frame rate and cut to exactly Frames() frames from a zero origin.
func Base(p Params) Chain {
	w, h := num(float64(p.Width)), num(float64(p.Height))
	return Chain{
		{Filter: "scale", Args: []Arg{pos(w), pos(h), kv("force_original_aspect_ratio", "decrease")}},
		{Filter: "pad", Args: []Arg{pos(w), pos(h), pos("(ow-iw)/2"), pos("(oh-ih)/2")}},
		{Filter: "fps", Args: []Arg{pos(num(float64(p.FPS)))}},
		{Filter: "trim", Args: []Arg{kv("end_frame", num(float64(p.Frames())))}},
		{Filter: "setpts", Args: []Arg{pos("PTS-STARTPTS")}},
	}
}

// Build returns the full chain for a scene, or nil when the scene has
// neither an effect nor an animation. Animation stages come before the
// effect stage.
func Build(sc scenes.Scene, width, height, fps int) Chain {
	if sc.Plain() {
		return nil
	}
	p := Params{Width: width, Height: height, FPS: fps, Duration: sc.Duration}
	chain := Base(p)
	if a := ForAnimation(sc.Animation); a != nil {
		chain = append(chain, a.Stages(p)...)
	}
	if e := For(sc.Effect); e != nil {
		chain = append(chain, e.Stages(p)...)
	}
	return chain
}

// IsPlain reports whether no scene needs per-scene filtering.
func IsPlain(list []scenes.Scene) bool {
	for _, sc := range list {
		if !sc.Plain() {
			return false
		}
	}
	return true
}
