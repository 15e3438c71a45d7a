// Package validate confirms that extracted element text actually appears
// in the source section, exactly or near-exactly. Elements that fail all
// three passes are rejected and never published.
package validate

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/scholium/extract-cli/internal/model"
)

// Config tunes the fuzzy pass. FuzzyThreshold is the minimum similarity
// for a fuzzy match to count as verified.
type Config struct {
	FuzzyThreshold float64
}

// DefaultConfig returns the standard fuzzy threshold.
func DefaultConfig() Config {
	return Config{FuzzyThreshold: 0.9}
}

// Match is the outcome of validating one element against one section.
type Match struct {
	Status model.ValidationStatus
	Method string // "exact", "normalized", or "fuzzy"
	Offset int    // byte offset in the section text, -1 for fuzzy misses
	Page   int
	Score  float64 // similarity score, set for the fuzzy pass
}

// Validator runs the three escalating validation passes.
type Validator struct {
	cfg Config
}

// New returns a Validator; a zero or negative threshold falls back to the
// default.
func New(cfg Config) *Validator {
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = DefaultConfig().FuzzyThreshold
	}
	return &Validator{cfg: cfg}
}

// Validate locates text within the section. Pass 1 is an exact substring
// search; pass 2 collapses whitespace, rejoins hyphen-broken words, and
// applies Unicode NFKC before searching; pass 3 slides a window of
// comparable length across the section and scores similarity. Anything
// below the fuzzy threshold is rejected.
func (v *Validator) Validate(text string, section model.SourceSection) Match {
	if strings.TrimSpace(text) == "" {
		return Match{Status: model.StatusRejected, Offset: -1}
	}

	// Pass 1: exact.
	if idx := strings.Index(section.Text, text); idx >= 0 {
		return Match{
			Status: model.StatusVerified,
			Method: "exact",
			Offset: idx,
			Page:   section.PageAt(idx),
			Score:  1.0,
		}
	}

	// Pass 2: normalized.
	normTarget := normalizeText(text)
	normSection, offsets := normalizeWithOffsets(section.Text)
	if idx := strings.Index(normSection, normTarget); idx >= 0 && normTarget != "" {
		orig := offsets[idx]
		return Match{
			Status: model.StatusVerified,
			Method: "normalized",
			Offset: orig,
			Page:   section.PageAt(orig),
			Score:  1.0,
		}
	}

	// Pass 3: fuzzy sliding window.
	best, offset := v.bestWindowScore(normTarget, section)
	if best >= v.cfg.FuzzyThreshold {
		return Match{
			Status: model.StatusVerified,
			Method: "fuzzy",
			Offset: offset,
			Page:   section.PageAt(offset),
			Score:  best,
		}
	}

	return Match{Status: model.StatusRejected, Offset: -1, Score: best}
}

// bestWindowScore slides a word window the size of the target across the
// section and returns the best similarity and the window's byte offset.
func (v *Validator) bestWindowScore(normTarget string, section model.SourceSection) (float64, int) {
	targetWords := strings.Fields(normTarget)
	if len(targetWords) == 0 {
		return 0, -1
	}

	sectionWords, wordOffsets := fieldsWithOffsets(section.Text)
	if len(sectionWords) == 0 {
		return 0, -1
	}

	window := len(targetWords)
	if window > len(sectionWords) {
		window = len(sectionWords)
	}

	best := 0.0
	bestOffset := wordOffsets[0]
	for start := 0; start+window <= len(sectionWords); start++ {
		candidate := strings.Join(sectionWords[start:start+window], " ")
		score := Similarity(normTarget, candidate)
		if score > best {
			best = score
			bestOffset = wordOffsets[start]
		}
	}
	return best, bestOffset
}

// Similarity scores two strings in [0,1]. It takes the better of word-set
// Jaccard overlap, which tolerates reordering, and character edit-distance
// similarity with adjacent transpositions, which tolerates typos. The
// metric and threshold are a documented tunable policy, not a fixed
// distance formula.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}
	j := jaccardWords(a, b)
	e := editSimilarity(a, b)
	if j > e {
		return j
	}
	return e
}

// jaccardWords computes Jaccard similarity on word sets.
func jaccardWords(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA)
	for w := range setB {
		if !setA[w] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// editSimilarity is 1 minus the normalized optimal string alignment
// distance. Substitutions, insertions, deletions, and adjacent
// transpositions each cost one edit.
func editSimilarity(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev2 := make([]int, len(rb)+1)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d := prev[j] + 1
			if ins := cur[j-1] + 1; ins < d {
				d = ins
			}
			if sub := prev[j-1] + cost; sub < d {
				d = sub
			}
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				if tr := prev2[j-2] + 1; tr < d {
					d = tr
				}
			}
			cur[j] = d
		}
		prev2, prev, cur = prev, cur, prev2
	}

	dist := prev[len(rb)]
	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}
	return 1 - float64(dist)/float64(longer)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(s)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?()[]{}\"'")
		if w != "" {
			set[w] = true
		}
	}
	return set
}

// normalizeText applies NFKC, rejoins hyphen-broken words, and collapses
// whitespace runs to single spaces.
func normalizeText(s string) string {
	out, _ := normalize(s, false)
	return out
}

// normalizeWithOffsets normalizes s and returns, for every byte of the
// normalized output, the byte offset it came from in the original.
func normalizeWithOffsets(s string) (string, []int) {
	return normalize(s, true)
}

func normalize(s string, track bool) (string, []int) {
	var b strings.Builder
	var offsets []int
	pendingSpace := false
	wrote := false

	emit := func(r rune, origOffset int) {
		if pendingSpace && wrote {
			b.WriteByte(' ')
			if track {
				offsets = append(offsets, origOffset)
			}
		}
		pendingSpace = false
		n := b.Len()
		b.WriteString(norm.NFKC.String(string(r)))
		if track {
			for ; n < b.Len(); n++ {
				offsets = append(offsets, origOffset)
			}
		}
		wrote = true
	}

	runes := []rune(s)
	byteOffsets := runeByteOffsets(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		// Rejoin words broken across lines with a hyphen: "im-\nproved".
		if r == '-' && i+1 < len(runes) && isLineBreak(runes[i+1]) {
			j := i + 1
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			if j < len(runes) && unicode.IsLetter(runes[j]) {
				i = j - 1
				continue
			}
		}

		if unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		emit(r, byteOffsets[i])
	}

	return b.String(), offsets
}

func isLineBreak(r rune) bool {
	return r == '\n' || r == '\r'
}

// runeByteOffsets returns the byte offset of each rune in s.
func runeByteOffsets(s string) []int {
	offsets := make([]int, 0, len(s))
	for i := range s {
		offsets = append(offsets, i)
	}
	return offsets
}

// fieldsWithOffsets splits s into whitespace-separated words and records
// each word's byte offset.
func fieldsWithOffsets(s string) ([]string, []int) {
	var words []string
	var offsets []int
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, s[start:i])
				offsets = append(offsets, start)
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, s[start:])
		offsets = append(offsets, start)
	}
	return words, offsets
}
