// Package chunker splits section text into bounded, overlapping,
// position-mapped chunks for individual model calls.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/scholium/extract-cli/internal/model"
)

// Config bounds chunk size and overlap. BoundaryWindow is how far back
// from the size limit the chunker will search for a soft split point.
type Config struct {
	MaxChars       int
	OverlapChars   int
	BoundaryWindow int
}

// DefaultConfig returns chunking limits suitable for section-sized prompts.
func DefaultConfig() Config {
	return Config{
		MaxChars:       6000,
		OverlapChars:   200,
		BoundaryWindow: 400,
	}
}

// Chunker produces deterministic chunk sequences from section text.
type Chunker struct {
	cfg Config
}

// New validates the config and returns a Chunker. Overlap must be
// non-negative and strictly smaller than the max chunk size.
func New(cfg Config) (*Chunker, error) {
	if cfg.MaxChars <= 0 {
		return nil, eris.New("chunker: max chars must be positive")
	}
	if cfg.OverlapChars < 0 || cfg.OverlapChars >= cfg.MaxChars {
		return nil, eris.New("chunker: overlap must satisfy 0 <= overlap < max chars")
	}
	if cfg.BoundaryWindow < 0 {
		return nil, eris.New("chunker: boundary window must be non-negative")
	}
	return &Chunker{cfg: cfg}, nil
}

// softBoundaries are preferred split points, strongest first. The chunker
// cuts immediately after the boundary text.
var softBoundaries = []string{"\n\n", ". ", "! ", "? ", "\n"}

// Split divides text into ordered chunks. Text at or under the size limit
// yields exactly one chunk; empty text yields none. Consecutive chunks
// overlap by OverlapChars so that boundary-straddling sentences reach the
// model intact; concatenating the chunks minus their overlaps reproduces
// the input exactly.
func (c *Chunker) Split(text string) []model.Chunk {
	if text == "" {
		return nil
	}
	if len(text) <= c.cfg.MaxChars {
		return []model.Chunk{{Index: 0, Total: 1, Text: text, CharOffset: 0}}
	}

	var chunks []model.Chunk
	pos := 0
	for pos < len(text) {
		end := pos + c.cfg.MaxChars
		if end >= len(text) {
			end = len(text)
		} else {
			end = c.splitPoint(text, pos, end)
			if end <= pos {
				// The rune-aligned hard cut landed inside the first rune
				// of the chunk. Take the whole rune so the scan advances.
				_, size := utf8.DecodeRuneInString(text[pos:])
				end = pos + size
			}
		}

		chunks = append(chunks, model.Chunk{
			Index:      len(chunks),
			Text:       text[pos:end],
			CharOffset: pos,
		})

		if end == len(text) {
			break
		}
		next := backToRuneStart(text, end-c.cfg.OverlapChars)
		if next <= pos {
			// Overlap would stall the scan on a tiny chunk.
			next = end
		}
		pos = next
	}

	for i := range chunks {
		chunks[i].Total = len(chunks)
	}
	return chunks
}

// splitPoint picks the cut position for a chunk starting at pos with a
// hard limit at end. It prefers the latest soft boundary inside the
// tolerance window, then falls back to a rune-aligned hard cut.
func (c *Chunker) splitPoint(text string, pos, end int) int {
	windowStart := end - c.cfg.BoundaryWindow
	if windowStart < pos {
		windowStart = pos
	}
	window := text[windowStart:end]

	for _, boundary := range softBoundaries {
		if idx := strings.LastIndex(window, boundary); idx >= 0 {
			cut := windowStart + idx + len(boundary)
			if cut > pos {
				return cut
			}
		}
	}
	return backToRuneStart(text, end)
}

// backToRuneStart moves pos left until it sits on a UTF-8 rune boundary.
func backToRuneStart(text string, pos int) int {
	for pos > 0 && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}
