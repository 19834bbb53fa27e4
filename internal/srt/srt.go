// Package srt reads and writes SubRip caption files.
package srt

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ivlev/topic2video/internal/errs"
	"github.com/ivlev/topic2video/internal/timeline"
)

var (
	indexLine  = regexp.MustCompile(`^\d+$`)
	timingLine = regexp.MustCompile(`^(\d{2,}:\d{2}:\d{2},\d{3})\s*-->\s*(\d{2,}:\d{2}:\d{2},\d{3})`)
	stampParts = regexp.MustCompile(`^(\d{2,}):(\d{2}):(\d{2}),(\d{3})$`)
)

// Document is the decoded form of a caption file.
type Document struct {
	Blocks       []timeline.Block `json:"blocks"`
	BlockCount   int              `json:"blockCount"`
	TotalSeconds float64          `json:"totalSeconds"`
}

// Info describes a caption file on disk. Available is false when the file
// does not exist or holds no usable blocks.
type Info struct {
	Available bool `json:"available"`
	Document
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm, truncating to whole milliseconds.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	// The epsilon absorbs float error such as 0.29*1000 = 289.99999...
	ms := int64(math.Floor(seconds*1000 + 1e-6))
	h := ms / 3_600_000
	m := ms % 3_600_000 / 60_000
	s := ms % 60_000 / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

func ParseTimestamp(stamp string) (float64, error) {
	m := stampParts.FindStringSubmatch(strings.TrimSpace(stamp))
	if m == nil {
		return 0, errs.Validation("srt", "malformed timestamp %q", stamp)
	}
	var v [4]int
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, errs.Validation("srt", "malformed timestamp %q", stamp)
		}
		v[i] = n
	}
	return float64(v[0]*3600+v[1]*60+v[2]) + float64(v[3])/1000, nil
}

// Encode renders blocks with 1-based indices, separated by a blank line.
func Encode(blocks []timeline.Block) string {
	var b strings.Builder
	for i, blk := range blocks {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, FormatTimestamp(blk.Start), FormatTimestamp(blk.End), blk.Text)
	}
	return b.String()
}

// Decode parses caption text. The total duration is taken from the last
// end timestamp found. Text without any timing line yields ErrPartialData.
func Decode(text string) (*Document, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) > 0 {
		lines[0] = strings.TrimPrefix(lines[0], "\uFEFF")
	}

	doc := &Document{}
	var (
		cur     *timeline.Block
		body    []string
		lastEnd = -1.0
	)
	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.Join(body, "\n")
		cur.Index = len(doc.Blocks)
		doc.Blocks = append(doc.Blocks, *cur)
		cur, body = nil, nil
	}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if m := timingLine.FindStringSubmatch(line); m != nil {
			start, err1 := ParseTimestamp(m[1])
			end, err2 := ParseTimestamp(m[2])
			if err1 != nil || err2 != nil {
				continue
			}
			lastEnd = end
			flush()
			cur = &timeline.Block{Start: start, End: end}
			continue
		}
		if cur == nil {
			continue
		}
		if line == "" {
			flush()
			continue
		}
		// An index line directly followed by a timing line opens the next block.
		if indexLine.MatchString(line) && i+1 < len(lines) && timingLine.MatchString(strings.TrimSpace(lines[i+1])) {
			flush()
			continue
		}
		body = append(body, line)
	}
	flush()

	if lastEnd < 0 {
		return nil, fmt.Errorf("srt decode: %w: no timestamp pairs found", errs.ErrPartialData)
	}
	doc.BlockCount = len(doc.Blocks)
	doc.TotalSeconds = lastEnd
	return doc, nil
}

// ReadFile decodes the caption file at path. A missing file is not an
// error: it returns an Info with Available false.
func ReadFile(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Info{}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("read captions %s: %w", path, err)
	}
	doc, err := Decode(string(data))
	if err != nil {
		return Info{}, fmt.Errorf("read captions %s: %w", path, err)
	}
	return Info{Available: true, Document: *doc}, nil
}

func WriteFile(path string, blocks []timeline.Block) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("write captions %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(Encode(blocks)), 0644); err != nil {
		return fmt.Errorf("write captions %s: %w", path, err)
	}
	return nil
}

// EditText returns a copy of blocks with the text of block index replaced.
// Timing is left untouched.
func EditText(blocks []timeline.Block, index int, text string) ([]timeline.Block, error) {
	if index < 0 || index >= len(blocks) {
		return nil, fmt.Errorf("srt edit: %w: block %d of %d", errs.ErrNotFound, index, len(blocks))
	}
	text = collapseLines(text)
	if text == "" {
		return nil, errs.Validation("srt edit", "caption text for block %d is empty", index)
	}
	out := make([]timeline.Block, len(blocks))
	copy(out, blocks)
	out[index].Text = text
	return out, nil
}

// collapseLines trims every line and drops blank ones. A blank line ends a
// block, so it cannot appear inside caption text.
func collapseLines(text string) string {
	var kept []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// EditFile applies EditText to the caption file at path and rewrites it.
func EditFile(path string, index int, text string) (Info, error) {
	info, err := ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	if !info.Available {
		return Info{}, errs.NotFound("srt edit", path)
	}
	blocks, err := EditText(info.Blocks, index, text)
	if err != nil {
		return Info{}, err
	}
	if err := WriteFile(path, blocks); err != nil {
		return Info{}, err
	}
	info.Blocks = blocks
	return info, nil
}
