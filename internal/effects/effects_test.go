package effects

import (
	"reflect"
	"strings"
	"testing"

	"github.com/ivlev/topic2video/internal/scenes"
)

func TestBuildPlainSceneIsNil(t *testing.T) {
	sc := scenes.Scene{Duration: 4, Effect: scenes.EffectNone, Animation: scenes.AnimationNone}
	if c := Build(sc, 1920, 1080, 30); c != nil {
		t.Errorf("expected nil chain, got %s", c)
	}
}

func TestBuildFade(t *testing.T) {
	sc := scenes.Scene{Duration: 5, Effect: scenes.EffectFade, Animation: scenes.AnimationNone}
	got := Build(sc, 1920, 1080, 30).String()
	want := "scale=1920:1080:force_original_aspect_ratio=decrease," +
		"pad=1920:1080:(ow-iw)/2:(oh-ih)/2," +
		"fps=30," +
		"trim=end_frame=150," +
		"setpts=PTS-STARTPTS," +
		"fade=t=in:st=0:d=0.5," +
		"fade=t=out:st=4.5:d=0.5"
	if got != want {
		t.Errorf("chain =\n%s\nwant\n%s", got, want)
	}
}

func TestFadeShortClip(t *testing.T) {
	stages := FadeEffect{}.Stages(Params{Width: 640, Height: 360, FPS: 25, Duration: 1})
	if len(stages) != 1 {
		t.Fatalf("got %d stages, want fade-in only", len(stages))
	}
	if got := stages[0].String(); got != "fade=t=in:st=0:d=0.25" {
		t.Errorf("fade-in = %s", got)
	}
}

func TestEffectStages(t *testing.T) {
	tests := []struct {
		effect scenes.Effect
		want   string
	}{
		{scenes.EffectBlur, "boxblur=5:1"},
		{scenes.EffectBrightness, "eq=brightness=0.1"},
		{scenes.EffectSepia, "colorchannelmixer=rr=0.393:rg=0.769:rb=0.189:gr=0.349:gg=0.686:gb=0.168:br=0.272:bg=0.534:bb=0.131"},
	}
	for _, tt := range tests {
		t.Run(string(tt.effect), func(t *testing.T) {
			chain := Build(scenes.Scene{Duration: 3, Effect: tt.effect}, 1280, 720, 24)
			if len(chain) != 6 {
				t.Fatalf("got %d stages, want base + 1", len(chain))
			}
			if got := chain[5].String(); got != tt.want {
				t.Errorf("effect stage = %s, want %s", got, tt.want)
			}
			if got := chain[3].String(); got != "trim=end_frame=72" {
				t.Errorf("trim = %s, want trim=end_frame=72", got)
			}
		})
	}
}

func TestBuildAnimationBeforeEffect(t *testing.T) {
	sc := scenes.Scene{Duration: 2, Effect: scenes.EffectBlur, Animation: scenes.AnimationZoomOut}
	chain := Build(sc, 1920, 1080, 30)
	if len(chain) != 7 {
		t.Fatalf("got %d stages: %s", len(chain), chain)
	}
	if chain[5].Filter != "zoompan" || chain[6].Filter != "boxblur" {
		t.Errorf("order = %s, %s", chain[5].Filter, chain[6].Filter)
	}
	zp := chain[5].String()
	for _, part := range []string{
		"z='if(lte(on,59),1.2+(on-0)/59*(-0.2),1)'",
		"x='(iw-iw/zoom)*(0.5)'",
		":d=1:s=1920x1080:fps=30",
	} {
		if !strings.Contains(zp, part) {
			t.Errorf("zoompan %s missing %s", zp, part)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	sc := scenes.Scene{Duration: 4.1, Effect: scenes.EffectSepia, Animation: scenes.AnimationPanRight}
	a := Build(sc, 1920, 1080, 30)
	b := Build(sc, 1920, 1080, 30)
	if !reflect.DeepEqual(a, b) {
		t.Error("Build is not deterministic")
	}
	if got := a[3].String(); got != "trim=end_frame=123" {
		t.Errorf("trim = %s, want trim=end_frame=123", got)
	}
}

func TestFramesNeverZero(t *testing.T) {
	if n := (Params{FPS: 30, Duration: 0.01}).Frames(); n != 1 {
		t.Errorf("Frames = %d, want 1", n)
	}
}

func TestIsPlain(t *testing.T) {
	plain := []scenes.Scene{{Effect: scenes.EffectNone}, {Animation: scenes.AnimationNone}, {}}
	if !IsPlain(plain) {
		t.Error("all-none scenes reported as not plain")
	}
	mixed := append(plain, scenes.Scene{Animation: scenes.AnimationPanDown})
	if IsPlain(mixed) {
		t.Error("animated scene reported as plain")
	}
}
