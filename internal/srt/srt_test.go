package srt

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivlev/topic2video/internal/errs"
	"github.com/ivlev/topic2video/internal/timeline"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{65.25, "00:01:05,250"},
		{90, "00:01:30,000"},
		{0.29, "00:00:00,290"},
		{3599.9999, "00:59:59,999"},
		{3723.0456, "01:02:03,045"},
		{-4, "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.seconds); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %s, want %s", tt.seconds, got, tt.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("01:02:03,045")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-3723.045) > 1e-9 {
		t.Errorf("ParseTimestamp = %v, want 3723.045", got)
	}
	if _, err := ParseTimestamp("1:2:3.4"); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestEncodeBlock(t *testing.T) {
	out := Encode([]timeline.Block{{Index: 0, Start: 65.25, End: 90.0, Text: "Hi"}})
	want := "1\n00:01:05,250 --> 00:01:30,000\nHi\n\n"
	if out != want {
		t.Errorf("Encode() = %q, want %q", out, want)
	}
}

func TestRoundTrip(t *testing.T) {
	tl, err := timeline.BuildFixed("First line here. Second one. Third and last.", timeline.Options{MaxChars: 18})
	if err != nil {
		t.Fatal(err)
	}

	doc, err := Decode(Encode(tl.Blocks))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if doc.BlockCount != len(tl.Blocks) {
		t.Errorf("BlockCount = %d, want %d", doc.BlockCount, len(tl.Blocks))
	}
	if want := float64(len(tl.Blocks)) * 40; doc.TotalSeconds != want {
		t.Errorf("TotalSeconds = %g, want %g", doc.TotalSeconds, want)
	}
	for i, b := range doc.Blocks {
		if b != tl.Blocks[i] {
			t.Errorf("block %d = %+v, want %+v", i, b, tl.Blocks[i])
		}
	}
}

func TestDecodeTolerant(t *testing.T) {
	in := "\uFEFF1\r\n00:00:00,000 --> 00:00:40,000\r\nLine one\r\ncontinues\r\n\r\n" +
		"2\r\n00:00:40,000 --> 00:01:20,500\r\n2024\r\n"
	doc, err := Decode(in)
	if err != nil {
		t.Fatal(err)
	}
	if doc.BlockCount != 2 {
		t.Fatalf("BlockCount = %d, want 2", doc.BlockCount)
	}
	if doc.Blocks[0].Text != "Line one\ncontinues" {
		t.Errorf("multi-line text = %q", doc.Blocks[0].Text)
	}
	if doc.Blocks[1].Text != "2024" {
		t.Errorf("numeric text = %q", doc.Blocks[1].Text)
	}
	if doc.TotalSeconds != 80.5 {
		t.Errorf("TotalSeconds = %g, want 80.5", doc.TotalSeconds)
	}
}

func TestDecodePartialData(t *testing.T) {
	for _, in := range []string{"", "\n\n", "just some words\n"} {
		if _, err := Decode(in); !errors.Is(err, errs.ErrPartialData) {
			t.Errorf("Decode(%q): expected ErrPartialData, got %v", in, err)
		}
	}
}

func TestReadFileMissing(t *testing.T) {
	info, err := ReadFile(filepath.Join(t.TempDir(), "legendas.srt"))
	if err != nil {
		t.Fatalf("missing file must not fail: %v", err)
	}
	if info.Available {
		t.Error("missing file reported as available")
	}
}

func TestReadFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legendas.srt")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	info, err := ReadFile(path)
	if !errors.Is(err, errs.ErrPartialData) {
		t.Errorf("expected ErrPartialData, got %v", err)
	}
	if info.Available {
		t.Error("empty file reported as available")
	}
}

func TestEditFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "legendas.srt")
	blocks := []timeline.Block{
		{Index: 0, Start: 0, End: 40, Text: "old one"},
		{Index: 1, Start: 40, End: 80, Text: "old two"},
	}
	if err := WriteFile(path, blocks); err != nil {
		t.Fatal(err)
	}

	info, err := EditFile(path, 1, "  new two ")
	if err != nil {
		t.Fatalf("EditFile failed: %v", err)
	}
	if info.Blocks[1].Text != "new two" || info.Blocks[1].Start != 40 {
		t.Errorf("edited block = %+v", info.Blocks[1])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "00:00:40,000 --> 00:01:20,000\nnew two\n") {
		t.Errorf("file not rewritten:\n%s", data)
	}
	if blocks[1].Text != "old two" {
		t.Error("EditText mutated its input")
	}

	if _, err := EditFile(path, 5, "x"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("out of range: expected ErrNotFound, got %v", err)
	}
	if _, err := EditFile(path, 0, " "); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("blank text: expected ErrValidation, got %v", err)
	}
}

func TestEditFileKeepsMultilineText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legendas.srt")
	blocks := []timeline.Block{
		{Index: 0, Start: 0, End: 40, Text: "one"},
		{Index: 1, Start: 40, End: 80, Text: "two"},
	}
	if err := WriteFile(path, blocks); err != nil {
		t.Fatal(err)
	}
	if _, err := EditFile(path, 0, "first\n\n  second\r\n"); err != nil {
		t.Fatalf("EditFile failed: %v", err)
	}

	info, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.BlockCount != 2 {
		t.Fatalf("block count = %d, want 2", info.BlockCount)
	}
	if info.Blocks[0].Text != "first\nsecond" {
		t.Errorf("block 0 text = %q", info.Blocks[0].Text)
	}
	if info.Blocks[1].Text != "two" {
		t.Errorf("block 1 text = %q", info.Blocks[1].Text)
	}
}
