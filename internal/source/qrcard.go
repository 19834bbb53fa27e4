package source

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"

	"github.com/ivlev/topic2video/internal/errs"
	"github.com/ivlev/topic2video/internal/scenes"
	"github.com/ivlev/topic2video/internal/system"
)

// QRCard is a closing frame with a centered QR code linking to URL.
type QRCard struct {
	URL        string
	Width      int
	Height     int
	Background color.Color
	Foreground color.Color
}

func (c QRCard) colors() (color.Color, color.Color) {
	bg, fg := c.Background, c.Foreground
	if bg == nil {
		bg = color.White
	}
	if fg == nil {
		fg = color.Black
	}
	return bg, fg
}

// render draws the card on a pooled canvas. The caller returns it with
// system.PutImage.
func (c QRCard) render() (*image.RGBA, error) {
	if c.URL == "" {
		return nil, errs.Validation("qr card", "url is required")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return nil, errs.Validation("qr card", "invalid size %dx%d", c.Width, c.Height)
	}
	bg, fg := c.colors()

	q, err := qrcode.New(c.URL, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qr card: %w: %v", errs.ErrValidation, err)
	}
	q.BackgroundColor = bg
	q.ForegroundColor = fg
	code := q.Image(256)

	canvas := system.GetImage(image.Rect(0, 0, c.Width, c.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	side := min(c.Width, c.Height) / 2
	x0 := (c.Width - side) / 2
	y0 := (c.Height - side) / 2
	draw.CatmullRom.Scale(canvas, image.Rect(x0, y0, x0+side, y0+side), code, code.Bounds(), draw.Over, nil)
	return canvas, nil
}

// WriteFile renders the card as a PNG at path.
func (c QRCard) WriteFile(path string) error {
	canvas, err := c.render()
	if err != nil {
		return err
	}
	defer system.PutImage(canvas)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("qr card: %w", err)
	}
	return writePNG(path, canvas)
}

// AddQRScene renders card into framesDir and appends it as the last scene.
func AddQRScene(ctx context.Context, store scenes.Store, card QRCard, framesDir string, duration float64) (*scenes.Document, error) {
	doc, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if card.Width <= 0 || card.Height <= 0 {
		card.Width, card.Height = doc.Width, doc.Height
	}
	path := filepath.Join(framesDir, FrameName(len(doc.Scenes), "-qr.png"))
	if err := card.WriteFile(path); err != nil {
		return nil, err
	}

	doc.Scenes = append(doc.Scenes, scenes.Scene{
		Prompt:    "QR: " + card.URL,
		Duration:  duration,
		FramePath: path,
		Effect:    scenes.EffectFade,
	})
	if err := store.Save(ctx, doc); err != nil {
		return nil, err
	}
	log.Info().Str("url", card.URL).Str("frame", path).Msg("qr end card added")
	return doc, nil
}
