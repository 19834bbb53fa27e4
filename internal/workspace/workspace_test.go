package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/ivlev/topic2video/internal/config"
	"github.com/ivlev/topic2video/internal/errs"
)

func newWorkspace(t *testing.T) *Workspace {
	t.Helper()
	return New(config.Default(filepath.Join(t.TempDir(), "output")).Paths)
}

func TestScriptRoundTrip(t *testing.T) {
	w := newWorkspace(t)

	if text, err := w.LoadScript(); err != nil || text != "" {
		t.Fatalf("empty workspace: %q, %v", text, err)
	}
	if _, err := w.ScriptProvider().Script(context.Background(), "any"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("missing script: %v", err)
	}

	if err := w.SaveScript("  Hello world.\n"); err != nil {
		t.Fatal(err)
	}
	text, err := w.ScriptProvider().Script(context.Background(), "greetings")
	if err != nil {
		t.Fatal(err)
	}
	if text != "Hello world." {
		t.Errorf("Script = %q", text)
	}

	if err := w.SaveScript(" \n"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.ScriptProvider().Script(context.Background(), ""); !errors.Is(err, errs.ErrPartialData) {
		t.Errorf("blank script: %v", err)
	}
}

func TestPromptsRoundTrip(t *testing.T) {
	w := newWorkspace(t)

	got, err := w.LoadPrompts()
	if err != nil || len(got) != 0 || got == nil {
		t.Fatalf("empty workspace: %v, %v", got, err)
	}

	want := []string{"a misty forest", "a lighthouse at dusk"}
	if err := w.SavePrompts(want); err != nil {
		t.Fatal(err)
	}
	got, err = w.LoadPrompts()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, want) {
		t.Errorf("LoadPrompts = %v", got)
	}

	if err := os.WriteFile(w.Paths.Prompts, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := w.LoadPrompts(); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("corrupt prompts: %v", err)
	}
}

func TestClean(t *testing.T) {
	w := newWorkspace(t)
	p := w.Paths
	for _, dir := range []string{p.FramesDir, p.UploadsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range []string{p.Script, p.Captions, p.Metadata, filepath.Join(p.FramesDir, "frame-001.png"), filepath.Join(p.UploadsDir, "voice.mp3")} {
		if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	keep := filepath.Join(p.OutputDir, "notes.md")
	if err := os.WriteFile(keep, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	report, err := w.Clean()
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if len(report.DeletedFiles) != 3 || len(report.CleanedDirs) != 2 {
		t.Errorf("report = %+v", report)
	}
	for _, dir := range []string{p.FramesDir, p.UploadsDir} {
		if entries, _ := os.ReadDir(dir); len(entries) != 0 {
			t.Errorf("%s not emptied", dir)
		}
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("unrelated file removed")
	}

	if _, err := w.Clean(); err != nil {
		t.Errorf("second Clean: %v", err)
	}
}
