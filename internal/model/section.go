package model

// SourceSection is one titled span of paper text supplied by the external
// PDF extraction layer. The pipeline treats it as read-only: it never
// mutates the text or re-parses the underlying document.
type SourceSection struct {
	PaperID   string `json:"paper_id"`
	Name      string `json:"name"`
	Text      string `json:"text"`
	PageStart int    `json:"page_start"`
	PageEnd   int    `json:"page_end"`

	// CharStart is the offset of Text within the full paper text.
	CharStart int `json:"char_start"`

	// PageOffsets maps character offsets within Text to the page that
	// begins there. Must be ascending by CharOffset; the first entry
	// covers offset 0.
	PageOffsets []PageOffset `json:"page_offsets,omitempty"`
}

// PageOffset marks where a page begins inside a section's text.
type PageOffset struct {
	CharOffset int `json:"char_offset"`
	Page       int `json:"page"`
}

// PageAt returns the page containing the given character offset within
// the section text. Falls back to PageStart when no offset map exists.
func (s SourceSection) PageAt(offset int) int {
	page := s.PageStart
	for _, po := range s.PageOffsets {
		if po.CharOffset > offset {
			break
		}
		page = po.Page
	}
	return page
}

// Chunk is a bounded slice of section text sent to the model in one call.
type Chunk struct {
	Index      int    `json:"chunk_index"`
	Total      int    `json:"total_chunks"`
	Text       string `json:"text"`
	CharOffset int    `json:"char_offset"` // offset of Text within the section
}
