// Package textsplit cuts documents into overlapping chunks for embedding.
package textsplit

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Splitter cuts text into chunks.
type Splitter interface {
	Split(text string) []string
}

// Encoding is the tiktoken encoding used by TokenSplitter.
const Encoding = "cl100k_base"

// TokenSplitter splits on token boundaries so that chunks respect the
// embedding model's context size.
type TokenSplitter struct {
	enc     *tiktoken.Tiktoken
	size    int
	overlap int
}

// NewTokenSplitter creates a splitter emitting chunks of at most size tokens,
// each sharing overlap tokens with the previous one. Loading the encoding may
// need network access on first use.
func NewTokenSplitter(size, overlap int) (*TokenSplitter, error) {
	size, overlap = normalize(size, overlap)
	enc, err := tiktoken.GetEncoding(Encoding)
	if err != nil {
		return nil, fmt.Errorf("textsplit: load %s: %w", Encoding, err)
	}
	return &TokenSplitter{enc: enc, size: size, overlap: overlap}, nil
}

// Split returns the chunks of text. Blank input yields no chunks.
func (s *TokenSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	tokens := s.enc.Encode(text, nil, nil)
	var chunks []string
	for _, w := range windows(len(tokens), s.size, s.overlap) {
		if c := strings.TrimSpace(s.enc.Decode(tokens[w[0]:w[1]])); c != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// RuneSplitter splits on rune counts. It needs no encoding data and serves
// as the offline fallback.
type RuneSplitter struct {
	size    int
	overlap int
}

// NewRuneSplitter creates a splitter emitting chunks of at most size runes.
func NewRuneSplitter(size, overlap int) *RuneSplitter {
	size, overlap = normalize(size, overlap)
	return &RuneSplitter{size: size, overlap: overlap}
}

// Split returns the chunks of text. Blank input yields no chunks.
func (s *RuneSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	var chunks []string
	for _, w := range windows(len(runes), s.size, s.overlap) {
		if c := strings.TrimSpace(string(runes[w[0]:w[1]])); c != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// New returns a TokenSplitter, or a RuneSplitter when the encoding cannot
// be loaded.
func New(size, overlap int) Splitter {
	if s, err := NewTokenSplitter(size, overlap); err == nil {
		return s
	}
	return NewRuneSplitter(size, overlap)
}

// DefaultSize is the chunk size used when none is given.
const DefaultSize = 512

// normalize applies DefaultSize to a missing size. An overlap only applies
// to an explicit size; otherwise, or when it is negative or not smaller than
// size, it becomes zero.
func normalize(size, overlap int) (int, int) {
	if size < 1 {
		return DefaultSize, 0
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return size, overlap
}

// windows returns [start, end) pairs covering n items.
func windows(n, size, overlap int) [][2]int {
	var out [][2]int
	step := size - overlap
	for start := 0; start < n; start += step {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
		if end == n {
			break
		}
	}
	return out
}

// ForName returns the splitter selected by a configuration value: "rune"
// for a RuneSplitter, anything else for New.
func ForName(name string, size, overlap int) Splitter {
	if strings.EqualFold(name, "rune") {
		return NewRuneSplitter(size, overlap)
	}
	return New(size, overlap)
}
