package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scholium/extract-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:     "11111111-2222-3333-4444-555555555555",
			Paper:  model.PaperMeta{ID: "paper-1", Title: "A Very Long Paper Title That Should Be Truncated"},
			Status: model.RunStatusComplete,
			Result: &model.ExtractionResult{
				Sections: []model.SectionMetrics{{Verified: 7}},
			},
			CreatedAt: created,
			UpdatedAt: created.Add(42 * time.Second),
		},
		{
			ID:        "aaaabbbb-cccc-dddd-eeee-ffffffffffff",
			Paper:     model.PaperMeta{ID: "paper-2"},
			Status:    model.RunStatusFailed,
			CreatedAt: created,
			UpdatedAt: created,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "11111111")
	assert.Contains(t, out, "A Very Long Paper Title Tha...")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "7")
	assert.Contains(t, out, "42s")
	assert.Contains(t, out, "paper-2")
	assert.Contains(t, out, "failed")
	assert.NotContains(t, out, "555555555555")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("123456789abcdef"))
	assert.Equal(t, "short", truncateID("short"))
}
