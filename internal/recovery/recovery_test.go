package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover_StrictParse(t *testing.T) {
	e := NewEngine()
	raw := `[{"element_type":"finding","text":"users completed tasks 23% faster","evidence_type":"quantitative","confidence":0.95}]`

	res := e.Recover(raw)
	require.True(t, res.Success)
	assert.Equal(t, "strict", res.Strategy)
	assert.Equal(t, 1.0, res.Confidence)
	require.Len(t, res.Elements, 1)
	assert.Equal(t, "finding", res.Elements[0].ElementType)
	assert.Equal(t, "users completed tasks 23% faster", res.Elements[0].Text)
	assert.Equal(t, 0.95, res.Elements[0].Confidence)
}

func TestRecover_Deterministic(t *testing.T) {
	e := NewEngine()
	raw := "```json\n[{\"element_type\":\"claim\",\"text\":\"caching halves latency\",\"confidence\":0.8},]\n```"

	first := e.Recover(raw)
	for i := 0; i < 5; i++ {
		again := e.Recover(raw)
		assert.Equal(t, first, again)
	}
}

func TestRecover_MarkdownFence(t *testing.T) {
	e := NewEngine()
	raw := "Here are the elements:\n```json\n[{\"element_type\":\"method\",\"text\":\"double-blind trial\",\"confidence\":0.9}]\n```"

	res := e.Recover(raw)
	require.True(t, res.Success)
	assert.Equal(t, "strip_markdown_fence", res.Strategy)
	assert.Less(t, res.Confidence, 1.0)
	require.Len(t, res.Elements, 1)
	assert.Equal(t, "double-blind trial", res.Elements[0].Text)
}

func TestRecover_TrailingCommas(t *testing.T) {
	e := NewEngine()
	raw := `[{"element_type":"claim","text":"X","confidence":0.7,},]`

	res := e.Recover(raw)
	require.True(t, res.Success)
	assert.Equal(t, "strip_trailing_separators", res.Strategy)
	assert.Less(t, res.Confidence, 1.0)
	require.Len(t, res.Elements, 1)
	assert.Equal(t, "X", res.Elements[0].Text)
}

func TestRecover_TruncatedArray(t *testing.T) {
	e := NewEngine()
	raw := `[{"element_type":"finding","text":"accuracy rose to 91%","confidence":0.85}, {"element_type":"claim","text":"method generalizes","confidence":0.6`

	res := e.Recover(raw)
	require.True(t, res.Success)
	assert.Equal(t, "close_brackets", res.Strategy)
	require.Len(t, res.Elements, 2)
	assert.Equal(t, "method generalizes", res.Elements[1].Text)
}

func TestRecover_RawControlCharacters(t *testing.T) {
	e := NewEngine()
	raw := "[{\"element_type\":\"finding\",\"text\":\"line one\nline two\",\"confidence\":0.8}]"

	res := e.Recover(raw)
	require.True(t, res.Success)
	assert.Equal(t, "escape_control_chars", res.Strategy)
	require.Len(t, res.Elements, 1)
	assert.Equal(t, "line one\nline two", res.Elements[0].Text)
}

func TestRecover_LargestValidSubsequence(t *testing.T) {
	e := NewEngine()
	// Second object is garbage that no textual repair fixes; the first
	// object still parses on its own.
	raw := `[{"element_type":"artifact","text":"open-source benchmark suite","confidence":0.9}, {"element_type": !!!corrupt]`

	res := e.Recover(raw)
	require.True(t, res.Success)
	assert.Equal(t, "largest_valid_subsequence", res.Strategy)
	require.Len(t, res.Elements, 1)
	assert.Equal(t, "open-source benchmark suite", res.Elements[0].Text)
}

func TestRecover_FragmentReconstruction(t *testing.T) {
	e := NewEngine()
	raw := `element list follows "element_type": "claim" then "text": "models overfit small corpora" and "confidence": 0.65 end`

	res := e.Recover(raw)
	require.True(t, res.Success)
	assert.Equal(t, "reconstruct_fragments", res.Strategy)
	require.Len(t, res.Elements, 1)
	assert.Equal(t, "claim", res.Elements[0].ElementType)
	assert.Equal(t, "models overfit small corpora", res.Elements[0].Text)
	assert.Equal(t, 0.65, res.Elements[0].Confidence)
}

func TestRecover_ConfidenceDecreasesDownTheLadder(t *testing.T) {
	e := NewEngine()

	ordered := []string{
		`[{"element_type":"claim","text":"X","confidence":0.5}]`,                         // strict
		"```json\n[{\"element_type\":\"claim\",\"text\":\"X\",\"confidence\":0.5}]\n```", // fence
		`[{"element_type":"claim","text":"X","confidence":0.5},]`,                        // trailing comma
		`[{"element_type":"claim","text":"X","confidence":0.5}`,                          // truncated
	}

	prev := 1.1
	for _, raw := range ordered {
		res := e.Recover(raw)
		require.True(t, res.Success, "input %q", raw)
		assert.Less(t, res.Confidence, prev, "input %q", raw)
		prev = res.Confidence
	}
}

func TestRecover_AllStrategiesFail(t *testing.T) {
	e := NewEngine()
	res := e.Recover("no structured content anywhere in this reply")

	require.False(t, res.Success)
	assert.Empty(t, res.Elements)
	// Diagnostics name the strict parse plus every strategy tried.
	assert.Len(t, res.Diagnostics, 7)
	assert.Contains(t, res.Diagnostics[0], "strict")
	assert.Contains(t, res.Diagnostics[1], "strip_markdown_fence")
	assert.Contains(t, res.Diagnostics[6], "reconstruct_fragments")
}

func TestRecover_EmptyPayload(t *testing.T) {
	e := NewEngine()
	res := e.Recover("   ")
	require.False(t, res.Success)
	assert.Equal(t, []string{"strict: empty payload"}, res.Diagnostics)
}

func TestRecover_EmptyArraySucceedsWithNoElements(t *testing.T) {
	e := NewEngine()

	res := e.Recover("[]")
	require.True(t, res.Success)
	assert.Equal(t, "strict", res.Strategy)
	assert.Empty(t, res.Elements)

	// The fenced form is the same deliberate no-elements reply.
	res = e.Recover("```json\n[]\n```")
	require.True(t, res.Success)
	assert.Equal(t, "strip_markdown_fence", res.Strategy)
	assert.Empty(t, res.Elements)
}

func TestRecover_EmptyArrayFromRepairIsFailure(t *testing.T) {
	e := NewEngine()
	// A lone opening bracket is a truncated payload; close_brackets would
	// complete it to [] but that empty array is repair fallout, not a reply.
	res := e.Recover("[")
	assert.False(t, res.Success)
}

func TestRecover_RejectsOutOfRangeConfidence(t *testing.T) {
	e := NewEngine()
	res := e.Recover(`[{"element_type":"claim","text":"X","confidence":1.5}]`)
	assert.False(t, res.Success)
}

// Regression guard: an input repaired by the comma-strip strategy must
// fail outright once the corruption goes beyond what any strategy handles.
func TestRecover_CorruptionBeyondStrategyFails(t *testing.T) {
	e := NewEngine()

	repairable := `[{"element_type":"claim","text":"X","confidence":0.7},]`
	res := e.Recover(repairable)
	require.True(t, res.Success)
	require.Equal(t, "strip_trailing_separators", res.Strategy)

	// Mangle the keys so neither comma-stripping nor fragment
	// reconstruction can recover a schema-valid element.
	corrupted := `[{element_type claim text X confidence 0.7},]`
	res = e.Recover(corrupted)
	assert.False(t, res.Success)
}
