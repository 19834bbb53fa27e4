package renderer

import (
	"fmt"
	"math"
	"strconv"
)

// ZoomPan holds the zoompan expressions for one scene. All expressions are
// in terms of the output frame number "on".
type ZoomPan struct {
	Zoom string
	X    string
	Y    string
}

// GenerateZoomPan builds piecewise linear zoompan expressions for keyframes
// over a clip of frames frames. Keyframe times beyond the clip are clamped
// to its last frame.
func GenerateZoomPan(keyframes []Keyframe, frames, fps int) (ZoomPan, bool) {
	if len(keyframes) == 0 || frames <= 0 || fps <= 0 {
		return ZoomPan{}, false
	}

	at := make([]int, len(keyframes))
	for i, kf := range keyframes {
		f := int(math.Floor(kf.Time*float64(fps) + 1e-9))
		if f > frames-1 {
			f = frames - 1
		}
		if f < 0 {
			f = 0
		}
		at[i] = f
	}

	zoom := buildExpression(at, keyframes, func(k Keyframe) float64 { return k.Zoom })
	fx := buildExpression(at, keyframes, func(k Keyframe) float64 { return k.FocusX })
	fy := buildExpression(at, keyframes, func(k Keyframe) float64 { return k.FocusY })

	return ZoomPan{
		Zoom: zoom,
		// The focus expressions place the crop window inside the room left
		// over at the current zoom: 0 is the left/top edge, 1 the right/bottom.
		X: fmt.Sprintf("(iw-iw/zoom)*(%s)", fx),
		Y: fmt.Sprintf("(ih-ih/zoom)*(%s)", fy),
	}, true
}

// buildExpression nests one if(lte(on,end),...) per keyframe segment, with
// the last keyframe's value as the tail.
func buildExpression(at []int, keyframes []Keyframe, value func(Keyframe) float64) string {
	last := len(keyframes) - 1
	expr := Num(value(keyframes[last]))
	if constant(keyframes, value) {
		return expr
	}

	for i := last - 1; i >= 0; i-- {
		start, end := at[i], at[i+1]
		if end <= start {
			continue
		}
		v0, v1 := value(keyframes[i]), value(keyframes[i+1])
		segment := fmt.Sprintf("%s+(on-%d)/%d*(%s)", Num(v0), start, end-start, Num(v1-v0))
		expr = fmt.Sprintf("if(lte(on,%d),%s,%s)", end, segment, expr)
	}
	return expr
}

func constant(keyframes []Keyframe, value func(Keyframe) float64) bool {
	first := Num(value(keyframes[0]))
	for _, kf := range keyframes[1:] {
		if Num(value(kf)) != first {
			return false
		}
	}
	return true
}

// Num formats v rounded to six decimals without trailing zeros.
func Num(v float64) string {
	v = math.Round(v*1e6) / 1e6
	if v == 0 {
		v = 0 // normalizes -0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
