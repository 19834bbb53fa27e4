package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivlev/topic2video/internal/config"
	"github.com/ivlev/topic2video/internal/errs"
	"github.com/ivlev/topic2video/internal/scenes"
	"github.com/ivlev/topic2video/internal/video"
)

// fakeEncoder touches the output file (the last argument) like ffmpeg would.
type fakeEncoder struct {
	jobs []video.Job
}

func (f *fakeEncoder) Encode(_ context.Context, job video.Job) (video.Result, error) {
	f.jobs = append(f.jobs, job)
	out := job.Args[len(job.Args)-1]
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return video.Result{}, err
	}
	return video.Result{}, os.WriteFile(out, []byte("media"), 0644)
}

type fakeProber map[string]float64

func (p fakeProber) Duration(_ context.Context, path string) (float64, error) {
	return p[filepath.Base(path)], nil
}

func newTestApp(t *testing.T) (*App, *fakeEncoder) {
	t.Helper()
	cfg := config.Default(filepath.Join(t.TempDir(), "output"))
	cfg.Encoder.Threads = 2
	cfg.Import.DownloadDirs = nil

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { a.Close(context.Background()) })

	enc := &fakeEncoder{}
	a.Encoder = enc
	a.Prober = fakeProber{"voice.mp3": 130, "audio_sem_silencio.mp3": 120}
	return a, enc
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildCaptions(t *testing.T) {
	a, _ := newTestApp(t)

	tl, err := a.BuildCaptions("First sentence here. Second one follows.", 0)
	if err != nil {
		t.Fatalf("BuildCaptions failed: %v", err)
	}
	if len(tl.Blocks) != 1 || tl.TotalSeconds != 40 {
		t.Errorf("timeline = %d blocks, %gs", len(tl.Blocks), tl.TotalSeconds)
	}

	info, err := a.CaptionInfo()
	if err != nil || !info.Available || info.BlockCount != 1 {
		t.Fatalf("CaptionInfo = %+v, %v", info, err)
	}
	if script, _ := a.Workspace.LoadScript(); !strings.HasPrefix(script, "First sentence") {
		t.Errorf("script not saved: %q", script)
	}

	if _, err := a.EditCaption(0, "Edited."); err != nil {
		t.Fatal(err)
	}
	if info, _ := a.CaptionInfo(); info.Blocks[0].Text != "Edited." {
		t.Errorf("edit lost: %+v", info.Blocks[0])
	}
	if _, err := a.BuildCaptions("   ", 0); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("blank text: %v", err)
	}
}

func TestTrimAudioAndResolve(t *testing.T) {
	a, enc := newTestApp(t)

	if _, err := a.ResolveAudio(""); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("no audio yet: %v", err)
	}

	writeFile(t, filepath.Join(a.Config.Paths.UploadsDir, "voice.mp3"))
	info, err := a.TrimAudio(context.Background(), "")
	if err != nil {
		t.Fatalf("TrimAudio failed: %v", err)
	}
	if info.OriginalSeconds != 130 || info.TrimmedSeconds != 120 || info.Trimmed != a.Config.Paths.TrimmedAudio {
		t.Errorf("info = %+v", info)
	}
	if len(enc.jobs) != 1 || enc.jobs[0].Op != "trim silence" {
		t.Errorf("jobs = %+v", enc.jobs)
	}

	got, err := a.ResolveAudio("")
	if err != nil {
		t.Fatal(err)
	}
	if got != a.Config.Paths.TrimmedAudio {
		t.Errorf("ResolveAudio = %s, want trimmed track", got)
	}
	if got, _ := a.ResolveAudio("explicit.wav"); got != "explicit.wav" {
		t.Errorf("explicit path ignored: %s", got)
	}

	if _, err := a.TrimAudio(context.Background(), filepath.Join(a.Config.Paths.UploadsDir, "nope.mp3")); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("missing input: %v", err)
	}
}

func TestRedistributeUsesNarrationOnRecord(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	if err := a.Store.Save(ctx, &scenes.Document{Scenes: []scenes.Scene{{Prompt: "a"}, {Prompt: "b"}, {Prompt: "c"}}}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.RedistributeScenes(ctx, 0); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("no audio on record: %v", err)
	}

	writeFile(t, filepath.Join(a.Config.Paths.UploadsDir, "voice.mp3"))
	if _, err := a.TrimAudio(ctx, ""); err != nil {
		t.Fatal(err)
	}
	doc, err := a.RedistributeScenes(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range doc.Scenes {
		if s.Duration != 40 {
			t.Errorf("scene %d duration = %g, want 40", s.Index, s.Duration)
		}
	}
}

func TestRequestImagesSeedsScenes(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	req, ack, err := a.RequestImages(ctx, []string{"a harbor at dawn", "", "a market at noon"})
	if err != nil {
		t.Fatalf("RequestImages failed: %v", err)
	}
	if !ack.Accepted || ack.RequestID != req.ID {
		t.Errorf("ack = %+v", ack)
	}
	if req.Expected() != 4 {
		t.Errorf("expected images = %d, want 4", req.Expected())
	}

	prompts, err := a.Workspace.LoadPrompts()
	if err != nil || len(prompts) != 2 {
		t.Errorf("prompts = %v, %v", prompts, err)
	}
	doc, err := a.Store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Scenes) != 2 || doc.Scenes[1].Prompt != "a market at noon" {
		t.Errorf("scenes = %+v", doc.Scenes)
	}
}

func TestRender(t *testing.T) {
	a, enc := newTestApp(t)
	ctx := context.Background()

	frame := filepath.Join(a.Config.Paths.FramesDir, "frame-001.png")
	writeFile(t, frame)
	narration := filepath.Join(a.Config.Paths.UploadsDir, "voice.mp3")
	writeFile(t, narration)
	if err := a.Store.Save(ctx, &scenes.Document{Scenes: []scenes.Scene{{Prompt: "a", FramePath: frame, Duration: 3}}}); err != nil {
		t.Fatal(err)
	}

	out, err := a.Render(ctx, "", "")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if out != a.Config.Paths.DefaultOutput {
		t.Errorf("output = %s", out)
	}
	args := strings.Join(enc.jobs[len(enc.jobs)-1].Args, " ")
	if !strings.Contains(args, "-f concat") || !strings.Contains(args, "-i "+narration) || !strings.Contains(args, "-threads 2") {
		t.Errorf("args = %s", args)
	}
}
