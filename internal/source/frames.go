package source

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/ivlev/topic2video/internal/scenes"
)

// FrameName is the canonical file name of the i-th (zero-based) frame.
func FrameName(i int, ext string) string {
	return fmt.Sprintf("frame-%03d%s", i+1, ext)
}

// frameStage collects a new frame set in a sibling directory of the frames
// directory. Commit swaps it in with renames, so a failed import leaves the
// current frames alone.
type frameStage struct {
	dir    string
	target string
}

func newFrameStage(framesDir string) (*frameStage, error) {
	parent := filepath.Dir(framesDir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("stage frames: %w", err)
	}
	dir, err := os.MkdirTemp(parent, ".frames-staging-")
	if err != nil {
		return nil, fmt.Errorf("stage frames: %w", err)
	}
	if err := os.Chmod(dir, 0755); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("stage frames: %w", err)
	}
	return &frameStage{dir: dir, target: framesDir}, nil
}

// Path is where a frame is written while staging.
func (s *frameStage) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Final is where the frame lives after Commit.
func (s *frameStage) Final(name string) string {
	return filepath.Join(s.target, name)
}

// Discard drops the staged frames. It is a no-op after Commit.
func (s *frameStage) Discard() {
	if s.dir != "" {
		os.RemoveAll(s.dir)
	}
}

func (s *frameStage) Commit() error {
	backup := ""
	if _, err := os.Stat(s.target); err == nil {
		backup = s.dir + ".old"
		if err := os.Rename(s.target, backup); err != nil {
			return fmt.Errorf("commit frames: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("commit frames: %w", err)
	}

	if err := os.Rename(s.dir, s.target); err != nil {
		if backup != "" {
			if rerr := os.Rename(backup, s.target); rerr != nil {
				log.Error().Err(rerr).Str("backup", backup).Msg("cannot restore previous frames")
			}
		}
		return fmt.Errorf("commit frames: %w", err)
	}
	s.dir = ""
	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			log.Warn().Err(err).Str("path", backup).Msg("cannot remove previous frames")
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// rebuildScenes points the document at a new frame list. Scenes at the same
// position keep their prompt, duration, effect and animation; new positions
// take their prompt from labels.
func rebuildScenes(doc *scenes.Document, framesDir string, frames, labels []string) {
	list := make([]scenes.Scene, len(frames))
	for i, frame := range frames {
		s := scenes.Scene{Index: i, FramePath: frame}
		if i < len(doc.Scenes) {
			old := doc.Scenes[i]
			s.Prompt = old.Prompt
			s.Duration = old.Duration
			s.Effect = old.Effect
			s.Animation = old.Animation
		}
		if s.Prompt == "" {
			if i < len(labels) && labels[i] != "" {
				s.Prompt = labels[i]
			} else {
				s.Prompt = fmt.Sprintf("Frame %d", i+1)
			}
		}
		list[i] = s
	}
	doc.Scenes = list
	doc.FramesDir = framesDir
}
