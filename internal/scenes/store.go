package scenes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/ivlev/topic2video/internal/errs"
)

// Store persists the scene document. Writes replace the whole document;
// concurrent writers are last-writer-wins.
type Store interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	UpdateOne(ctx context.Context, index int, p Patch) (*Document, error)
	DeleteOne(ctx context.Context, index int) (*Document, error)
}

// Patch is a partial scene update. Nil fields are left untouched.
type Patch struct {
	Prompt    *string    `json:"prompt,omitempty"`
	Duration  *float64   `json:"duration,omitempty"`
	FramePath *string    `json:"framePath,omitempty"`
	Effect    *Effect    `json:"effect,omitempty"`
	Animation *Animation `json:"animation,omitempty"`
	// MoveTo reorders the scene to a new position.
	MoveTo *int `json:"moveTo,omitempty"`
}

func (p Patch) apply(list []Scene, index int) ([]Scene, error) {
	if index < 0 || index >= len(list) {
		return nil, fmt.Errorf("update scene: %w: index %d of %d", errs.ErrNotFound, index, len(list))
	}
	s := &list[index]
	if p.Prompt != nil {
		s.Prompt = *p.Prompt
	}
	if p.Duration != nil {
		if *p.Duration <= 0 {
			return nil, errs.Validation("update scene", "duration must be positive, got %g", *p.Duration)
		}
		s.Duration = *p.Duration
	}
	if p.FramePath != nil {
		s.FramePath = *p.FramePath
	}
	if p.Effect != nil {
		if !p.Effect.Valid() {
			return nil, errs.Validation("update scene", "unknown effect %q", *p.Effect)
		}
		s.Effect = *p.Effect
	}
	if p.Animation != nil {
		if !p.Animation.Valid() {
			return nil, errs.Validation("update scene", "unknown animation %q", *p.Animation)
		}
		s.Animation = *p.Animation
	}
	if p.MoveTo != nil {
		return Move(list, index, *p.MoveTo)
	}
	return list, nil
}

func updateOne(ctx context.Context, s Store, index int, p Patch) (*Document, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	list, err := p.apply(doc.Scenes, index)
	if err != nil {
		return nil, err
	}
	doc.Scenes = list
	if err := s.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func deleteOne(ctx context.Context, s Store, index int) (*Document, error) {
	doc, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(doc.Scenes) {
		return nil, fmt.Errorf("delete scene: %w: index %d of %d", errs.ErrNotFound, index, len(doc.Scenes))
	}
	removed := doc.Scenes[index]
	if err := removeFrame(doc.FramesDir, removed.FramePath); err != nil {
		return nil, err
	}
	doc.Scenes = append(doc.Scenes[:index:index], doc.Scenes[index+1:]...)
	if err := s.Save(ctx, doc); err != nil {
		return nil, err
	}
	log.Info().Int("index", index).Str("frame", removed.FramePath).Msg("scene deleted")
	return doc, nil
}

// removeFrame deletes framesDir/basename(framePath). A missing file is fine.
func removeFrame(framesDir, framePath string) error {
	if framePath == "" {
		return nil
	}
	path := filepath.Join(framesDir, filepath.Base(framePath))
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete frame %s: %w", path, err)
	}
	return nil
}
