// Package segment splits narration text into caption-sized chunks.
package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ivlev/topic2video/internal/errs"
)

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n+`)

// Split breaks text into ordered chunks of at most maxChars runes.
// Paragraphs are processed independently, so a chunk never spans a blank
// line. Sentences are packed greedily; a sentence longer than the budget is
// cut at the last whitespace at or before it. A single token with no
// whitespace is kept whole and may exceed maxChars.
func Split(text string, maxChars int) ([]string, error) {
	if maxChars <= 0 {
		return nil, errs.Validation("segment", "max chars per block must be positive, got %d", maxChars)
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, errs.Validation("segment", "narration text is empty")
	}

	var chunks []string
	for _, para := range Paragraphs(text) {
		chunks = appendParagraph(chunks, para, maxChars)
	}
	return chunks, nil
}

// Paragraphs returns the non-empty blank-line separated paragraphs of text
// with inner whitespace collapsed to single spaces.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Sentences splits a paragraph after '.', '!' or '?' followed by whitespace.
func Sentences(para string) []string {
	var (
		out   []string
		start int
		prev  rune
	)
	for i, r := range para {
		if unicode.IsSpace(r) && isTerminal(prev) {
			if s := strings.TrimSpace(para[start:i]); s != "" {
				out = append(out, s)
			}
			start = i
		}
		prev = r
	}
	if s := strings.TrimSpace(para[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func appendParagraph(chunks []string, para string, maxChars int) []string {
	current := ""
	for _, sentence := range Sentences(para) {
		if current != "" && length(current)+length(sentence)+1 <= maxChars {
			current += " " + sentence
			continue
		}
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
		if length(sentence) <= maxChars {
			current = sentence
			continue
		}
		pieces := forceSplit(sentence, maxChars)
		chunks = append(chunks, pieces[:len(pieces)-1]...)
		current = pieces[len(pieces)-1]
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// forceSplit cuts s into pieces of at most maxChars runes on whitespace.
// The last piece is the remainder that fits.
func forceSplit(s string, maxChars int) []string {
	var pieces []string
	rest := []rune(s)
	for len(rest) > maxChars {
		cut := lastSpace(rest, maxChars)
		if cut <= 0 {
			// No whitespace inside the budget: keep the token whole.
			cut = firstSpace(rest, maxChars)
			if cut < 0 {
				break
			}
		}
		pieces = append(pieces, strings.TrimSpace(string(rest[:cut])))
		rest = []rune(strings.TrimLeftFunc(string(rest[cut:]), unicode.IsSpace))
	}
	if len(rest) > 0 {
		pieces = append(pieces, string(rest))
	}
	return pieces
}

func lastSpace(r []rune, at int) int {
	if at >= len(r) {
		at = len(r) - 1
	}
	for i := at; i >= 0; i-- {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}
	return -1
}

func firstSpace(r []rune, from int) int {
	for i := from; i < len(r); i++ {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}
	return -1
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
