package scenes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ivlev/topic2video/internal/errs"
)

// FileStore keeps the scene document as a JSON file.
type FileStore struct {
	Path     string
	Defaults Defaults

	now func() time.Time
}

func NewFileStore(path string, d Defaults) *FileStore {
	return &FileStore{Path: path, Defaults: d, now: time.Now}
}

// Load returns an empty document when the file does not exist.
func (s *FileStore) Load(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := &Document{}
	data, err := os.ReadFile(s.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("load scenes %s: %w", s.Path, err)
	default:
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("load scenes %s: %w: %v", s.Path, errs.ErrValidation, err)
		}
	}
	if err := Normalize(doc, s.Defaults); err != nil {
		return nil, fmt.Errorf("load scenes %s: %w", s.Path, err)
	}
	return doc, nil
}

// Save rewrites the whole document.
func (s *FileStore) Save(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := Normalize(doc, s.Defaults); err != nil {
		return err
	}
	doc.GeneratedAt = s.now().UTC()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("save scenes: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return fmt.Errorf("save scenes: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("save scenes %s: %w", s.Path, err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("save scenes %s: %w", s.Path, err)
	}
	return nil
}

func (s *FileStore) UpdateOne(ctx context.Context, index int, p Patch) (*Document, error) {
	return updateOne(ctx, s, index, p)
}

// DeleteOne removes the scene and its frame file.
func (s *FileStore) DeleteOne(ctx context.Context, index int) (*Document, error) {
	return deleteOne(ctx, s, index)
}
