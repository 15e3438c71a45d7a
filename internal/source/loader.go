// Package source loads page-indexed paper text produced by the external
// PDF extraction layer. Sections are treated as read-only input; the
// pipeline never re-parses or mutates the underlying document.
package source

import (
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/scholium/extract-cli/internal/model"
)

// document is the on-disk JSON shape emitted by the PDF extractor.
type document struct {
	PaperID  string                `json:"paper_id"`
	Title    string                `json:"title"`
	Pages    int                   `json:"pages"`
	Sections []model.SourceSection `json:"sections"`
}

// LoadPaper reads a paper document from path and returns its metadata
// and sections in document order.
func LoadPaper(path string) (model.PaperMeta, []model.SourceSection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.PaperMeta{}, nil, eris.Wrap(err, "source: read paper")
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.PaperMeta{}, nil, eris.Wrap(err, "source: parse paper")
	}

	if strings.TrimSpace(doc.PaperID) == "" {
		return model.PaperMeta{}, nil, eris.New("source: paper_id is required")
	}
	if len(doc.Sections) == 0 {
		return model.PaperMeta{}, nil, eris.New("source: paper has no sections")
	}

	meta := model.PaperMeta{
		ID:    doc.PaperID,
		Title: doc.Title,
		Pages: doc.Pages,
	}

	for i := range doc.Sections {
		sec := &doc.Sections[i]
		sec.PaperID = doc.PaperID
		if strings.TrimSpace(sec.Name) == "" {
			return model.PaperMeta{}, nil, eris.Errorf("source: section %d has no name", i)
		}
		if sec.PageStart <= 0 {
			sec.PageStart = 1
		}
		if sec.PageEnd < sec.PageStart {
			sec.PageEnd = sec.PageStart
		}
		if !sort.SliceIsSorted(sec.PageOffsets, func(a, b int) bool {
			return sec.PageOffsets[a].CharOffset < sec.PageOffsets[b].CharOffset
		}) {
			return model.PaperMeta{}, nil, eris.Errorf("source: section %q page offsets out of order", sec.Name)
		}
	}

	return meta, doc.Sections, nil
}
