package source

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/topic2video/internal/errs"
	"github.com/ivlev/topic2video/internal/scenes"
)

// Source is an ordered set of pages that can be rendered to scene frames.
type Source interface {
	PageCount() int
	RenderPage(index int, dpi int) (image.Image, error)
	Close() error
}

// FitzPDFSource renders the pages of a PDF storyboard.
type FitzPDFSource struct {
	doc  *fitz.Document
	path string
}

func NewFitzPDFSource(path string) (*FitzPDFSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errs.NotFound("open pdf", path)
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w: %v", path, errs.ErrValidation, err)
	}
	return &FitzPDFSource{doc: doc, path: path}, nil
}

func (f *FitzPDFSource) PageCount() int {
	return f.doc.NumPage()
}

// RenderPage opens its own document handle so pages can render in parallel.
func (f *FitzPDFSource) RenderPage(index int, dpi int) (image.Image, error) {
	workerDoc, err := fitz.New(f.path)
	if err != nil {
		return nil, err
	}
	defer workerDoc.Close()
	return workerDoc.ImageDPI(index, float64(dpi))
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}

// ExportFrames renders every page of src into framesDir as frame-NNN.png
// and returns the written paths in page order.
func ExportFrames(ctx context.Context, src Source, framesDir string, dpi int) ([]string, error) {
	n := src.PageCount()
	if n == 0 {
		return nil, fmt.Errorf("export frames: %w: source has no pages", errs.ErrPartialData)
	}
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return nil, fmt.Errorf("export frames: %w", err)
	}

	paths := make([]string, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := src.RenderPage(i, dpi)
			if err != nil {
				return fmt.Errorf("render page %d: %w", i+1, err)
			}
			path := filepath.Join(framesDir, FrameName(i, ".png"))
			if err := writePNG(path, img); err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Info().Int("pages", n).Str("dir", framesDir).Msg("frames exported")
	return paths, nil
}

// ImportSource replaces the frames of the scene document with the pages of
// src, keeping per-index prompt, duration, effect and animation.
func ImportSource(ctx context.Context, store scenes.Store, src Source, framesDir string, dpi int) (*scenes.Document, error) {
	doc, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	stage, err := newFrameStage(framesDir)
	if err != nil {
		return nil, err
	}
	defer stage.Discard()

	staged, err := ExportFrames(ctx, src, stage.dir, dpi)
	if err != nil {
		return nil, err
	}
	frames := make([]string, len(staged))
	labels := make([]string, len(staged))
	for i, p := range staged {
		frames[i] = stage.Final(filepath.Base(p))
		labels[i] = fmt.Sprintf("Page %d", i+1)
	}
	if err := stage.Commit(); err != nil {
		return nil, err
	}
	rebuildScenes(doc, framesDir, frames, labels)
	if err := store.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("write frame %s: %w", path, err)
	}
	return f.Close()
}
