// Package recovery repairs syntactically invalid structured output from
// the model. A strict parse is attempted first; on failure an ordered list
// of deterministic, side-effect-free repair strategies is applied
// cumulatively until one yields data matching the expected schema.
package recovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Candidate is one element object as emitted by the model, before
// verbatim validation.
type Candidate struct {
	ElementType  string  `json:"element_type"`
	Text         string  `json:"text"`
	EvidenceType string  `json:"evidence_type"`
	Confidence   float64 `json:"confidence"`
}

// Result reports the outcome of one recovery attempt. Confidence is 1.0
// for a strict parse and strictly decreasing with each additional
// strategy required. Diagnostics names every strategy tried and why it
// failed when Success is false.
type Result struct {
	Success     bool
	Elements    []Candidate
	Strategy    string
	Confidence  float64
	Diagnostics []string
}

// strategy transforms malformed payload text into a hopefully parseable
// form. Strategies must be idempotent and must not depend on any state
// outside their input. A lossless strategy only re-frames the payload
// without inventing or discarding content, so an empty array it surfaces
// is a deliberate no-elements reply rather than repair fallout.
type strategy struct {
	name       string
	confidence float64
	lossless   bool
	apply      func(string) string
}

// Engine runs the strict parse and the repair ladder. The same input
// always produces the same result.
type Engine struct {
	strategies []strategy
}

// NewEngine returns an Engine with the standard strategy order: markdown
// fence stripping, trailing-separator removal, bracket closing, control
// character escaping, largest-valid-subsequence extraction, and key/value
// fragment reconstruction.
func NewEngine() *Engine {
	return &Engine{
		strategies: []strategy{
			{name: "strip_markdown_fence", confidence: 0.9, lossless: true, apply: stripMarkdownFence},
			{name: "strip_trailing_separators", confidence: 0.8, apply: stripTrailingSeparators},
			{name: "close_brackets", confidence: 0.7, apply: closeBrackets},
			{name: "escape_control_chars", confidence: 0.6, apply: escapeControlChars},
			{name: "largest_valid_subsequence", confidence: 0.5, apply: largestValidSubsequence},
			{name: "reconstruct_fragments", confidence: 0.4, apply: reconstructFragments},
		},
	}
}

// Recover parses raw as a JSON array of element objects, repairing it if
// necessary. Strategies apply cumulatively in order; the first transform
// whose output parses and matches the schema wins. An empty array, bare
// or fenced, succeeds with zero elements.
func (e *Engine) Recover(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{
			Success:     false,
			Diagnostics: []string{"strict: empty payload"},
		}
	}

	elements, strictErr := parseCandidates(trimmed)
	if strictErr == nil || errors.Is(strictErr, errEmptyArray) {
		return Result{
			Success:    true,
			Elements:   elements,
			Strategy:   "strict",
			Confidence: 1.0,
		}
	}
	diagnostics := []string{fmt.Sprintf("strict: %v", strictErr)}

	working := trimmed
	for _, s := range e.strategies {
		working = s.apply(working)
		elements, err := parseCandidates(working)
		if err == nil || (s.lossless && errors.Is(err, errEmptyArray)) {
			return Result{
				Success:     true,
				Elements:    elements,
				Strategy:    s.name,
				Confidence:  s.confidence,
				Diagnostics: diagnostics,
			}
		}
		diagnostics = append(diagnostics, fmt.Sprintf("%s: %v", s.name, err))
	}

	return Result{Success: false, Diagnostics: diagnostics}
}

// errEmptyArray marks a well-formed array with no elements. The model
// emits one when a passage has nothing to extract, so strict parses and
// lossless strategies treat it as success; repair strategies that can
// drop content do not.
var errEmptyArray = errors.New("no elements in array")

// parseCandidates decodes text as a candidate array and checks the schema:
// at least one element, each with non-empty text and confidence in [0,1].
func parseCandidates(text string) ([]Candidate, error) {
	var elements []Candidate
	if err := json.Unmarshal([]byte(text), &elements); err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, errEmptyArray
	}
	for i, el := range elements {
		if strings.TrimSpace(el.Text) == "" {
			return nil, fmt.Errorf("element %d: empty text", i)
		}
		if el.Confidence < 0 || el.Confidence > 1 {
			return nil, fmt.Errorf("element %d: confidence %v outside [0,1]", i, el.Confidence)
		}
	}
	return elements, nil
}
