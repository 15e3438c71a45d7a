package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholium/extract-cli/internal/model"
)

func section(text string) model.SourceSection {
	return model.SourceSection{
		PaperID:   "paper-1",
		Name:      "results",
		Text:      text,
		PageStart: 3,
		PageEnd:   4,
	}
}

func TestValidate_ExactMatch(t *testing.T) {
	v := New(DefaultConfig())
	sec := section("The improved system delivers results across all benchmarks.")

	m := v.Validate("improved system delivers", sec)

	require.Equal(t, model.StatusVerified, m.Status)
	assert.Equal(t, "exact", m.Method)
	assert.Equal(t, 4, m.Offset)
	assert.Equal(t, 3, m.Page)
	assert.Equal(t, 1.0, m.Score)
}

func TestValidate_ExactMatchUsesPageOffsets(t *testing.T) {
	v := New(DefaultConfig())
	sec := section("first page text here. second page text continues onward.")
	sec.PageOffsets = []model.PageOffset{
		{CharOffset: 0, Page: 3},
		{CharOffset: 22, Page: 4},
	}

	m := v.Validate("second page text", sec)

	require.Equal(t, model.StatusVerified, m.Status)
	assert.Equal(t, 22, m.Offset)
	assert.Equal(t, 4, m.Page)
}

func TestValidate_NormalizedWhitespaceAndHyphenBreaks(t *testing.T) {
	v := New(DefaultConfig())
	sec := section("Our method im-\nproved  recall by 12%\nacross languages.")

	m := v.Validate("improved recall by 12% across", sec)

	require.Equal(t, model.StatusVerified, m.Status)
	assert.Equal(t, "normalized", m.Method)
	assert.Equal(t, 11, m.Offset, "offset should map back to the original text")
	assert.Equal(t, 3, m.Page)
}

func TestValidate_NormalizedUnicodeCompatibility(t *testing.T) {
	v := New(DefaultConfig())
	sec := section("a ﬁnding important here")

	m := v.Validate("finding important", sec)

	require.Equal(t, model.StatusVerified, m.Status)
	assert.Equal(t, "normalized", m.Method)
	assert.Equal(t, 2, m.Offset)
}

func TestValidate_FuzzyTypoMatch(t *testing.T) {
	v := New(DefaultConfig())
	sec := section("Overall the improved system reduced latency in every trial.")

	m := v.Validate("teh improved system", sec)

	require.Equal(t, model.StatusVerified, m.Status)
	assert.Equal(t, "fuzzy", m.Method)
	assert.GreaterOrEqual(t, m.Score, 0.9)
	assert.Equal(t, 8, m.Offset)
	assert.Equal(t, 3, m.Page)
}

func TestValidate_RejectsUnsupportedText(t *testing.T) {
	v := New(DefaultConfig())
	sec := section("Overall the improved system reduced latency in every trial.")

	m := v.Validate("quantum entanglement drives quarterly profits", sec)

	require.Equal(t, model.StatusRejected, m.Status)
	assert.Equal(t, -1, m.Offset)
	assert.Less(t, m.Score, 0.9)
}

func TestValidate_RejectsEmptyText(t *testing.T) {
	v := New(DefaultConfig())
	sec := section("some section text")

	m := v.Validate("   ", sec)

	assert.Equal(t, model.StatusRejected, m.Status)
}

func TestValidate_ThresholdIsConfigurable(t *testing.T) {
	sec := section("the quick brown fox jumps over the lazy dog")

	strict := New(Config{FuzzyThreshold: 0.99})
	loose := New(Config{FuzzyThreshold: 0.5})

	target := "teh quick brown fox"
	assert.Equal(t, model.StatusRejected, strict.Validate(target, sec).Status)
	assert.Equal(t, model.StatusVerified, loose.Validate(target, sec).Status)
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "improved system", "improved system", 1.0, 1.0},
		{"transposition", "teh improved system", "the improved system", 0.9, 1.0},
		{"reordered words", "system improved the", "the improved system", 0.9, 1.0},
		{"unrelated", "quantum profits", "latency reduction", 0.0, 0.5},
		{"empty versus text", "", "anything", 0.0, 0.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Similarity(tc.a, tc.b)
			assert.GreaterOrEqual(t, got, tc.min)
			assert.LessOrEqual(t, got, tc.max)
		})
	}
}
