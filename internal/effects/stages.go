package effects

import (
	"fmt"
	"math"

	"github.com/ivlev/topic2video/internal/renderer"
	"github.com/ivlev/topic2video/internal/scenes"
)

// Effect contributes the stages that follow frame truncation.
type Effect interface {
	Stages(p Params) []Stage
}

// For returns the Effect for e, or nil for none and unknown values.
func For(e scenes.Effect) Effect {
	switch e {
	case scenes.EffectFade:
		return FadeEffect{}
	case scenes.EffectBlur:
		return BlurEffect{}
	case scenes.EffectBrightness:
		return BrightnessEffect{}
	case scenes.EffectSepia:
		return SepiaEffect{}
	}
	return nil
}

// ForAnimation returns the camera motion for a, or nil when it is static.
func ForAnimation(a scenes.Animation) Effect {
	if a == "" || a == scenes.AnimationNone || !a.Valid() {
		return nil
	}
	return AnimationEffect{Animation: a}
}

// FadeEffect fades in over min(0.5, d/4) and, for clips longer than a
// second, fades out over the final half second.
type FadeEffect struct{}

func (FadeEffect) Stages(p Params) []Stage {
	in := math.Min(0.5, p.Duration/4)
	stages := []Stage{{Filter: "fade", Args: []Arg{kv("t", "in"), kv("st", "0"), kv("d", num(in))}}}
	if p.Duration > 1 {
		stages = append(stages, Stage{Filter: "fade", Args: []Arg{kv("t", "out"), kv("st", num(p.Duration-0.5)), kv("d", "0.5")}})
	}
	return stages
}

type BlurEffect struct{}

func (BlurEffect) Stages(Params) []Stage {
	return []Stage{{Filter: "boxblur", Args: []Arg{pos("5"), pos("1")}}}
}

type BrightnessEffect struct{}

func (BrightnessEffect) Stages(Params) []Stage {
	return []Stage{{Filter: "eq", Args: []Arg{kv("brightness", "0.1")}}}
}

type SepiaEffect struct{}

var sepiaMatrix = []Arg{
	kv("rr", "0.393"), kv("rg", "0.769"), kv("rb", "0.189"),
	kv("gr", "0.349"), kv("gg", "0.686"), kv("gb", "0.168"),
	kv("br", "0.272"), kv("bg", "0.534"), kv("bb", "0.131"),
}

func (SepiaEffect) Stages(Params) []Stage {
	args := make([]Arg, len(sepiaMatrix))
	copy(args, sepiaMatrix)
	return []Stage{{Filter: "colorchannelmixer", Args: args}}
}

// AnimationEffect moves the camera with zoompan. It emits exactly one
// output frame per input frame, so the truncated frame count holds.
type AnimationEffect struct {
	Animation scenes.Animation
}

func (e AnimationEffect) Stages(p Params) []Stage {
	zp, ok := renderer.GenerateZoomPan(renderer.Motion(e.Animation, p.Duration), p.Frames(), p.FPS)
	if !ok {
		return nil
	}
	return []Stage{{Filter: "zoompan", Args: []Arg{
		kv("z", quote(zp.Zoom)),
		kv("x", quote(zp.X)),
		kv("y", quote(zp.Y)),
		kv("d", "1"),
		kv("s", fmt.Sprintf("%dx%d", p.Width, p.Height)),
		kv("fps", num(float64(p.FPS))),
	}}}
}

func quote(expr string) string {
	return "'" + expr + "'"
}
