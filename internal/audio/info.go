package audio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Info records the narration track before and after silence trimming.
type Info struct {
	Original        string    `json:"original,omitempty"`
	Trimmed         string    `json:"trimmed,omitempty"`
	OriginalSeconds float64   `json:"originalSeconds"`
	TrimmedSeconds  float64   `json:"trimmedSeconds"`
	Timestamp       time.Time `json:"timestamp"`
}

// Best returns the trimmed track when there is one, else the original.
func (i *Info) Best() (string, float64) {
	if i.Trimmed != "" {
		return i.Trimmed, i.TrimmedSeconds
	}
	return i.Original, i.OriginalSeconds
}

func SaveInfo(path string, info Info) error {
	if info.Timestamp.IsZero() {
		info.Timestamp = time.Now().UTC()
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("save audio info: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("save audio info: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("save audio info %s: %w", path, err)
	}
	return nil
}

// LoadInfo returns nil without error when no record exists yet.
func LoadInfo(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load audio info %s: %w", path, err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("load audio info %s: %w", path, err)
	}
	return &info, nil
}
