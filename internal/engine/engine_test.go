package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivlev/topic2video/internal/errs"
	"github.com/ivlev/topic2video/internal/scenes"
	"github.com/ivlev/topic2video/internal/video"
)

type fakeEncoder struct {
	jobs []video.Job
	res  video.Result
	err  error
}

func (f *fakeEncoder) Encode(_ context.Context, job video.Job) (video.Result, error) {
	f.jobs = append(f.jobs, job)
	return f.res, f.err
}

type fixture struct {
	dir    string
	audio  string
	frames []string
	opts   Options
}

func newFixture(t *testing.T, n int) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:   dir,
		audio: filepath.Join(dir, "narration.mp3"),
		opts: Options{
			Width:          1920,
			Height:         1080,
			FPS:            30,
			ConcatListPath: filepath.Join(dir, "output", "concat.txt"),
			DefaultOutput:  filepath.Join(dir, "output", "final.mp4"),
		},
	}
	if err := os.WriteFile(f.audio, []byte("mp3"), 0644); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		p := filepath.Join(dir, "frames", "frame-"+string(rune('a'+i))+".png")
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("png"), 0644); err != nil {
			t.Fatal(err)
		}
		f.frames = append(f.frames, p)
	}
	return f
}

func (f fixture) scenes(durations ...float64) []scenes.Scene {
	out := make([]scenes.Scene, len(durations))
	for i, d := range durations {
		out[i] = scenes.Scene{Index: i, Duration: d, FramePath: f.frames[i], Effect: scenes.EffectNone, Animation: scenes.AnimationNone}
	}
	return out
}

func TestSelectStrategy(t *testing.T) {
	plain := []scenes.Scene{{Effect: scenes.EffectNone}, {Animation: scenes.AnimationNone}}
	if got := SelectStrategy(plain); got != StrategyConcat {
		t.Errorf("plain scenes -> %s, want concat", got)
	}
	withEffect := append([]scenes.Scene{}, plain...)
	withEffect[1].Effect = scenes.EffectBlur
	if got := SelectStrategy(withEffect); got != StrategyFilterGraph {
		t.Errorf("effect scene -> %s, want filtergraph", got)
	}
	withAnim := append([]scenes.Scene{}, plain...)
	withAnim[0].Animation = scenes.AnimationZoomIn
	if got := SelectStrategy(withAnim); got != StrategyFilterGraph {
		t.Errorf("animated scene -> %s, want filtergraph", got)
	}
}

func TestRenderConcatStrategy(t *testing.T) {
	f := newFixture(t, 3)
	enc := &fakeEncoder{}
	c := NewCompositor(enc, f.opts)

	out, err := c.Render(context.Background(), Request{AudioPath: f.audio, Scenes: f.scenes(4, 2.5, 6)})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != f.opts.DefaultOutput {
		t.Errorf("output = %s, want %s", out, f.opts.DefaultOutput)
	}

	data, err := os.ReadFile(f.opts.ConcatListPath)
	if err != nil {
		t.Fatalf("concat list not written: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := []string{
		"file '" + f.frames[0] + "'", "duration 4",
		"file '" + f.frames[1] + "'", "duration 2.5",
		"file '" + f.frames[2] + "'", "duration 6",
		"file '" + f.frames[2] + "'",
	}
	if len(lines) != len(want) {
		t.Fatalf("concat list:\n%s", data)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}

	if len(enc.jobs) != 1 {
		t.Fatalf("encoder called %d times", len(enc.jobs))
	}
	args := strings.Join(enc.jobs[0].Args, " ")
	for _, part := range []string{
		"-f concat -safe 0 -i " + f.opts.ConcatListPath,
		"-i " + f.audio,
		"-c:v libx264",
		"-pix_fmt yuv420p",
		"-r 30",
		"-c:a aac",
		"-shortest " + f.opts.DefaultOutput,
	} {
		if !strings.Contains(args, part) {
			t.Errorf("args missing %q: %s", part, args)
		}
	}
	if strings.Contains(args, "-filter_complex") {
		t.Error("concat strategy must not use a filter graph")
	}
	if enc.jobs[0].Duration != 12.5 {
		t.Errorf("job duration = %g, want 12.5", enc.jobs[0].Duration)
	}
}

func TestRenderFilterGraphStrategy(t *testing.T) {
	f := newFixture(t, 2)
	enc := &fakeEncoder{}
	c := NewCompositor(enc, f.opts)

	list := f.scenes(5, 2)
	list[0].Effect = scenes.EffectFade
	custom := filepath.Join(f.dir, "custom", "out.mp4")

	out, err := c.Render(context.Background(), Request{AudioPath: f.audio, Scenes: list, OutputPath: custom})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != custom {
		t.Errorf("output = %s, want %s", out, custom)
	}
	if _, err := os.Stat(f.opts.ConcatListPath); !os.IsNotExist(err) {
		t.Error("filter-graph strategy wrote a concat list")
	}

	args := enc.jobs[0].Args
	joined := strings.Join(args, " ")
	for _, part := range []string{
		"-loop 1 -framerate 1 -t 5 -i " + f.frames[0],
		"-loop 1 -framerate 1 -t 2 -i " + f.frames[1],
		"-i " + f.audio,
		"-map [vout] -map 2:a",
		"-shortest " + custom,
	} {
		if !strings.Contains(joined, part) {
			t.Errorf("args missing %q: %s", part, joined)
		}
	}

	var graph string
	for i, a := range args {
		if a == "-filter_complex" {
			graph = args[i+1]
		}
	}
	if !strings.HasPrefix(graph, "[0:v]scale=1920:1080:force_original_aspect_ratio=decrease,") {
		t.Errorf("graph = %s", graph)
	}
	for _, part := range []string{
		"trim=end_frame=150,setpts=PTS-STARTPTS,fade=t=in:st=0:d=0.5,fade=t=out:st=4.5:d=0.5[v0];",
		"[1:v]scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080:(ow-iw)/2:(oh-ih)/2,fps=30,trim=end_frame=60,setpts=PTS-STARTPTS[v1];",
		"[v0][v1]concat=n=2:v=1:a=0[vout]",
	} {
		if !strings.Contains(graph, part) {
			t.Errorf("graph missing %q:\n%s", part, graph)
		}
	}
}

func TestRenderValidation(t *testing.T) {
	f := newFixture(t, 1)
	c := NewCompositor(&fakeEncoder{}, f.opts)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
	}{
		{"no audio", Request{Scenes: f.scenes(4)}},
		{"no scenes", Request{AudioPath: f.audio}},
		{"no frame", Request{AudioPath: f.audio, Scenes: []scenes.Scene{{Duration: 4}}}},
		{"bad duration", Request{AudioPath: f.audio, Scenes: []scenes.Scene{{Duration: 0, FramePath: f.frames[0]}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Render(ctx, tt.req); !errors.Is(err, errs.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRenderMissingFrame(t *testing.T) {
	f := newFixture(t, 2)
	enc := &fakeEncoder{}
	c := NewCompositor(enc, f.opts)

	list := f.scenes(4, 4)
	list[1].FramePath = filepath.Join(f.dir, "frames", "gone.png")
	_, err := c.Render(context.Background(), Request{AudioPath: f.audio, Scenes: list})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "gone.png") {
		t.Errorf("error does not name the file: %v", err)
	}
	if len(enc.jobs) != 0 {
		t.Error("encoder ran despite missing input")
	}
}

func TestRenderEncoderFailure(t *testing.T) {
	f := newFixture(t, 1)
	encErr := &errs.EncodingError{Op: "render", ExitCode: 1, Stderr: "Conversion failed!"}
	c := NewCompositor(&fakeEncoder{res: video.Result{ExitCode: 1}, err: encErr}, f.opts)

	_, err := c.Render(context.Background(), Request{AudioPath: f.audio, Scenes: f.scenes(4)})
	if !errors.Is(err, errs.ErrEncoding) {
		t.Errorf("expected ErrEncoding, got %v", err)
	}
}

func TestBuildConcatListQuotes(t *testing.T) {
	list, err := BuildConcatList([]scenes.Scene{{FramePath: "/tmp/it's.png", Duration: 3}})
	if err != nil {
		t.Fatal(err)
	}
	want := "file '/tmp/it'\\''s.png'\nduration 3\nfile '/tmp/it'\\''s.png'\n"
	if list != want {
		t.Errorf("list = %q, want %q", list, want)
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	f := newFixture(t, 2)
	c := NewCompositor(&fakeEncoder{}, f.opts)
	list := f.scenes(3, 3)
	list[1].Animation = scenes.AnimationPanLeft

	a, err := c.Plan(Request{AudioPath: f.audio, Scenes: list})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := c.Plan(Request{AudioPath: f.audio, Scenes: list})
	if strings.Join(a.Args, "\x00") != strings.Join(b.Args, "\x00") {
		t.Error("Plan is not deterministic")
	}
	if a.Strategy != StrategyFilterGraph {
		t.Errorf("strategy = %s", a.Strategy)
	}
}
