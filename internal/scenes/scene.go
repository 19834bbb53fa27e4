// Package scenes holds the ordered scene list that drives the final video.
package scenes

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ivlev/topic2video/internal/errs"
)

type Effect string

const (
	EffectNone       Effect = "none"
	EffectFade       Effect = "fade"
	EffectBlur       Effect = "blur"
	EffectBrightness Effect = "brightness"
	EffectSepia      Effect = "sepia"
)

func (e Effect) Valid() bool {
	switch e {
	case EffectNone, EffectFade, EffectBlur, EffectBrightness, EffectSepia:
		return true
	}
	return false
}

type Animation string

const (
	AnimationNone     Animation = "none"
	AnimationZoomIn   Animation = "zoom-in"
	AnimationZoomOut  Animation = "zoom-out"
	AnimationPanLeft  Animation = "pan-left"
	AnimationPanRight Animation = "pan-right"
	AnimationPanUp    Animation = "pan-up"
	AnimationPanDown  Animation = "pan-down"
)

func (a Animation) Valid() bool {
	switch a {
	case AnimationNone, AnimationZoomIn, AnimationZoomOut,
		AnimationPanLeft, AnimationPanRight, AnimationPanUp, AnimationPanDown:
		return true
	}
	return false
}

type Scene struct {
	Index     int       `json:"index" bson:"index"`
	Prompt    string    `json:"prompt" bson:"prompt"`
	Duration  float64   `json:"duration" bson:"duration"`
	FramePath string    `json:"framePath" bson:"framePath"`
	Effect    Effect    `json:"effect" bson:"effect"`
	Animation Animation `json:"animation" bson:"animation"`
}

// Plain reports whether the scene needs no per-scene filtering.
func (s Scene) Plain() bool {
	return (s.Effect == "" || s.Effect == EffectNone) &&
		(s.Animation == "" || s.Animation == AnimationNone)
}

// UnmarshalJSON accepts duration as a number or a numeric string.
func (s *Scene) UnmarshalJSON(data []byte) error {
	type plain Scene
	aux := struct {
		*plain
		Duration any `json:"duration"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch d := aux.Duration.(type) {
	case nil:
		s.Duration = 0
	case float64:
		s.Duration = d
	case string:
		v, err := strconv.ParseFloat(strings.TrimSpace(d), 64)
		if err != nil {
			v = 0
		}
		s.Duration = v
	default:
		return fmt.Errorf("scene duration: unsupported JSON type %T", d)
	}
	return nil
}

// Document is the persisted scene metadata.
type Document struct {
	Width       int       `json:"width" bson:"width"`
	Height      int       `json:"height" bson:"height"`
	FPS         int       `json:"fps" bson:"fps"`
	FramesDir   string    `json:"framesDir" bson:"framesDir"`
	GeneratedAt time.Time `json:"generatedAt" bson:"generatedAt"`
	Scenes      []Scene   `json:"scenes" bson:"scenes"`
}

func (d *Document) TotalDuration() float64 {
	var total float64
	for _, s := range d.Scenes {
		total += s.Duration
	}
	return total
}

// Defaults fill in anything a stored document leaves out.
type Defaults struct {
	Width     int
	Height    int
	FPS       int
	FramesDir string
	Duration  float64
}

// Normalize re-derives every index from position and applies defaults for
// missing duration, effect and animation. Unknown enum values are rejected.
func Normalize(doc *Document, d Defaults) error {
	if doc.Width <= 0 {
		doc.Width = d.Width
	}
	if doc.Height <= 0 {
		doc.Height = d.Height
	}
	if doc.FPS <= 0 {
		doc.FPS = d.FPS
	}
	if doc.FramesDir == "" {
		doc.FramesDir = d.FramesDir
	}
	if doc.Scenes == nil {
		doc.Scenes = []Scene{}
	}
	dur := d.Duration
	if dur <= 0 {
		dur = 4
	}
	for i := range doc.Scenes {
		s := &doc.Scenes[i]
		s.Index = i
		if s.Duration <= 0 || math.IsNaN(s.Duration) || math.IsInf(s.Duration, 0) {
			s.Duration = dur
		}
		if s.Effect == "" {
			s.Effect = EffectNone
		}
		if s.Animation == "" {
			s.Animation = AnimationNone
		}
		if !s.Effect.Valid() {
			return errs.Validation("scenes", "scene %d: unknown effect %q", i, s.Effect)
		}
		if !s.Animation.Valid() {
			return errs.Validation("scenes", "scene %d: unknown animation %q", i, s.Animation)
		}
	}
	return nil
}

// Move returns a copy of list with the scene at from placed at to.
func Move(list []Scene, from, to int) ([]Scene, error) {
	if from < 0 || from >= len(list) {
		return nil, fmt.Errorf("move scene: %w: index %d of %d", errs.ErrNotFound, from, len(list))
	}
	if to < 0 || to >= len(list) {
		return nil, errs.Validation("move scene", "target index %d out of range [0,%d)", to, len(list))
	}
	out := make([]Scene, 0, len(list))
	moved := list[from]
	for i, s := range list {
		if i != from {
			out = append(out, s)
		}
	}
	out = append(out[:to], append([]Scene{moved}, out[to:]...)...)
	for i := range out {
		out[i].Index = i
	}
	return out, nil
}

// Redistribute gives every scene an equal share of totalSeconds, rounded to
// the millisecond.
func Redistribute(list []Scene, totalSeconds float64) ([]Scene, error) {
	if len(list) == 0 {
		return nil, errs.Validation("redistribute", "no scenes to redistribute")
	}
	if totalSeconds <= 0 {
		return nil, errs.Validation("redistribute", "total duration must be positive, got %g", totalSeconds)
	}
	each := math.Round(totalSeconds/float64(len(list))*1000) / 1000
	out := make([]Scene, len(list))
	copy(out, list)
	for i := range out {
		out[i].Duration = each
	}
	return out, nil
}
