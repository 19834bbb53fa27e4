package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/topic2video/internal/errs"
	"github.com/ivlev/topic2video/internal/scenes"
	"github.com/ivlev/topic2video/internal/system"
)

// Candidate is a recently downloaded image waiting to be imported.
type Candidate struct {
	Path    string
	ModTime time.Time
}

// ImportResult describes one import run.
type ImportResult struct {
	Imported  int      `json:"imported"`
	Frames    []string `json:"frames"`
	Originals []string `json:"downloadedFiles"`
	// Partial is set when fewer images than expected were found.
	Partial bool `json:"partial"`
}

// Importer moves externally generated images into the frames directory.
type Importer struct {
	Dirs            []string
	FramesDir       string
	MaxAge          time.Duration
	PollInterval    time.Duration
	WaitTimeout     time.Duration
	ImagesPerPrompt int
	Store           scenes.Store

	now func() time.Time
}

func NewImporter(dirs []string, framesDir string, store scenes.Store) *Importer {
	return &Importer{
		Dirs:            dirs,
		FramesDir:       framesDir,
		MaxAge:          30 * time.Minute,
		PollInterval:    2 * time.Second,
		WaitTimeout:     90 * time.Second,
		ImagesPerPrompt: 2,
		Store:           store,
		now:             time.Now,
	}
}

// Discover lists recent, fully written images across all download
// directories, newest first. Missing directories are skipped.
func (im *Importer) Discover(ctx context.Context) ([]Candidate, error) {
	cutoff := im.now().Add(-im.MaxAge)

	var found []Candidate
	for _, dir := range im.Dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Warn().Err(err).Str("dir", dir).Msg("cannot read download dir")
			}
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !system.HasExtension(e.Name(), system.ImageExtensions) {
				continue
			}
			info, err := e.Info()
			if err != nil || info.ModTime().Before(cutoff) {
				continue
			}
			found = append(found, Candidate{Path: filepath.Join(dir, e.Name()), ModTime: info.ModTime()})
		}
	}

	valid := make([]bool, len(found))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, c := range found {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			valid[i] = validImage(c.Path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := found[:0]
	for i, c := range found {
		if valid[i] {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })
	return out, nil
}

// Wait polls until at least expected images are available or WaitTimeout
// elapses. On timeout it returns whatever was found without an error.
func (im *Importer) Wait(ctx context.Context, expected int) ([]Candidate, error) {
	deadline := time.NewTimer(im.WaitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(im.PollInterval)
	defer ticker.Stop()

	for {
		found, err := im.Discover(ctx)
		if err != nil {
			return nil, err
		}
		if len(found) >= expected {
			return found, nil
		}
		log.Info().Int("found", len(found)).Int("expected", expected).Msg("waiting for downloads")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			found, err := im.Discover(ctx)
			if err != nil {
				return nil, err
			}
			log.Warn().Int("found", len(found)).Int("expected", expected).Msg("download wait timed out")
			return found, nil
		case <-ticker.C:
		}
	}
}

// Import waits (when wait is set and scenes exist) for prompts x
// ImagesPerPrompt images, then replaces the frames directory contents with
// them in generation order and rewrites the scene document.
func (im *Importer) Import(ctx context.Context, wait bool) (*ImportResult, error) {
	doc, err := im.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	prompts := len(doc.Scenes)
	per := max(im.ImagesPerPrompt, 1)
	expected := prompts * per

	var found []Candidate
	if wait && prompts > 0 {
		found, err = im.Wait(ctx, expected)
	} else {
		found, err = im.Discover(ctx)
	}
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("import images: %w: no recent images in %s", errs.ErrPartialData, strings.Join(im.Dirs, ", "))
	}

	switch {
	case prompts > 0 && len(found) >= expected:
		found = found[:expected]
	case prompts > 0 && len(found) > prompts:
		found = found[:prompts]
	}
	// Oldest first follows the order the prompts were generated in.
	slices.Reverse(found)

	stage, err := newFrameStage(im.FramesDir)
	if err != nil {
		return nil, err
	}
	defer stage.Discard()

	res := &ImportResult{Partial: prompts > 0 && len(found) < expected}
	for i, c := range found {
		ext := strings.ToLower(filepath.Ext(c.Path))
		if ext == "" {
			ext = ".jpg"
		}
		name := FrameName(i, ext)
		if err := copyFile(c.Path, stage.Path(name)); err != nil {
			return nil, fmt.Errorf("import images: copy %s: %w", c.Path, err)
		}
		res.Frames = append(res.Frames, stage.Final(name))
		res.Originals = append(res.Originals, filepath.Base(c.Path))
		log.Debug().Str("from", c.Path).Str("to", name).Msg("frame staged")
	}
	if err := stage.Commit(); err != nil {
		return nil, err
	}
	res.Imported = len(res.Frames)

	// Originals go only once the new frames are in place.
	for _, c := range found {
		if err := os.Remove(c.Path); err != nil {
			log.Warn().Err(err).Str("path", c.Path).Msg("cannot remove original download")
		}
	}

	leftovers, err := im.Discover(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range leftovers {
		if err := os.Remove(c.Path); err != nil {
			log.Warn().Err(err).Str("path", c.Path).Msg("cannot remove unused download")
		}
	}

	rebuildScenes(doc, im.FramesDir, res.Frames, res.Originals)
	if err := im.Store.Save(ctx, doc); err != nil {
		return nil, err
	}
	log.Info().Int("imported", res.Imported).Int("removed", len(leftovers)).Bool("partial", res.Partial).Msg("images imported")
	return res, nil
}
