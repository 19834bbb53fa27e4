// Package renderer turns scene animations into camera keyframes and
// zoompan filter expressions.
package renderer

import "github.com/ivlev/topic2video/internal/scenes"

// PanZoom is the zoom level held while panning, and the peak of zoom-in/out.
const PanZoom = 1.2

// Keyframe is a camera state at Time seconds into the scene.
// FocusX and FocusY place the visible window within the free room at the
// current zoom, from 0 (left/top) to 1 (right/bottom).
type Keyframe struct {
	Time   float64
	Zoom   float64
	FocusX float64
	FocusY float64
}

// Motion returns the keyframes for anim over a scene of duration seconds,
// or nil when the animation does not move the camera.
func Motion(anim scenes.Animation, duration float64) []Keyframe {
	if duration <= 0 {
		return nil
	}
	from := Keyframe{Time: 0, Zoom: PanZoom, FocusX: 0.5, FocusY: 0.5}
	to := Keyframe{Time: duration, Zoom: PanZoom, FocusX: 0.5, FocusY: 0.5}

	switch anim {
	case scenes.AnimationZoomIn:
		from.Zoom = 1
	case scenes.AnimationZoomOut:
		to.Zoom = 1
	case scenes.AnimationPanLeft:
		from.FocusX, to.FocusX = 1, 0
	case scenes.AnimationPanRight:
		from.FocusX, to.FocusX = 0, 1
	case scenes.AnimationPanUp:
		from.FocusY, to.FocusY = 1, 0
	case scenes.AnimationPanDown:
		from.FocusY, to.FocusY = 0, 1
	default:
		return nil
	}
	return []Keyframe{from, to}
}
