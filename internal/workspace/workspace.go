// Package workspace manages the draft artifacts of a video project: the
// narration script, the image prompts and everything generated from them.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ivlev/topic2video/internal/config"
	"github.com/ivlev/topic2video/internal/errs"
)

// ScriptProvider supplies the narration text for a topic.
type ScriptProvider interface {
	Script(ctx context.Context, topic string) (string, error)
}

// FileScriptProvider serves the script saved in the workspace, whatever the
// topic.
type FileScriptProvider struct {
	Path string
}

func (p FileScriptProvider) Script(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", errs.NotFound("load script", p.Path)
	}
	if err != nil {
		return "", fmt.Errorf("load script: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("load script %s: %w: empty", p.Path, errs.ErrPartialData)
	}
	return text, nil
}

type Workspace struct {
	Paths config.Paths
}

func New(p config.Paths) *Workspace {
	return &Workspace{Paths: p}
}

func (w *Workspace) ScriptProvider() ScriptProvider {
	return FileScriptProvider{Path: w.Paths.Script}
}

func (w *Workspace) SaveScript(text string) error {
	return writeFile(w.Paths.Script, []byte(text))
}

// LoadScript returns "" when no script was saved yet.
func (w *Workspace) LoadScript() (string, error) {
	data, err := os.ReadFile(w.Paths.Script)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load script: %w", err)
	}
	return string(data), nil
}

func (w *Workspace) SavePrompts(prompts []string) error {
	if prompts == nil {
		prompts = []string{}
	}
	data, err := json.MarshalIndent(prompts, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(w.Paths.Prompts, data)
}

// LoadPrompts returns an empty list when no prompts were saved yet.
func (w *Workspace) LoadPrompts() ([]string, error) {
	data, err := os.ReadFile(w.Paths.Prompts)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	var prompts []string
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("load prompts %s: %w: %v", w.Paths.Prompts, errs.ErrValidation, err)
	}
	return prompts, nil
}

// CleanReport lists what Clean removed.
type CleanReport struct {
	DeletedFiles []string `json:"deletedFiles"`
	CleanedDirs  []string `json:"cleanedDirs"`
}

// Clean deletes the draft files and empties the frames and uploads
// directories. Missing files are not an error.
func (w *Workspace) Clean() (CleanReport, error) {
	p := w.Paths
	var report CleanReport
	var problems []error

	for _, f := range []string{p.Script, p.Captions, p.Prompts, p.Metadata, p.TrimmedAudio, p.DefaultOutput, p.AudioInfo, p.ConcatList} {
		if f == "" {
			continue
		}
		err := os.Remove(f)
		switch {
		case err == nil:
			report.DeletedFiles = append(report.DeletedFiles, filepath.Base(f))
		case errors.Is(err, fs.ErrNotExist):
		default:
			problems = append(problems, err)
		}
	}

	for _, dir := range []string{p.FramesDir, p.UploadsDir} {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			problems = append(problems, err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				problems = append(problems, err)
			}
		}
		report.CleanedDirs = append(report.CleanedDirs, filepath.Base(dir))
		log.Debug().Str("dir", dir).Int("files", len(entries)).Msg("draft dir cleaned")
	}

	log.Info().Int("files", len(report.DeletedFiles)).Int("dirs", len(report.CleanedDirs)).Msg("draft cleaned")
	if len(problems) > 0 {
		return report, fmt.Errorf("clean draft: %w", errors.Join(problems...))
	}
	return report, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
