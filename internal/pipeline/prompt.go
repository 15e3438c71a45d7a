package pipeline

import (
	"fmt"

	"github.com/scholium/extract-cli/internal/model"
)

// extractSystemText instructs the model to return a strict JSON array of
// element objects. The same text is sent for every chunk of a paper so the
// prompt cache carries it between calls.
const extractSystemText = `You are a research analyst extracting structured elements from academic papers. Return a valid JSON array of objects, each with:
  "element_type": one of "claim", "finding", "method", "artifact"
  "text": the exact text from the passage, copied verbatim, never paraphrased
  "evidence_type": one of "quantitative", "qualitative", "theoretical"
  "confidence": a number between 0.0 and 1.0

Copy text character-for-character as it appears in the passage. Return [] if the passage contains no extractable elements.`

const extractPrompt = `Extract research elements from this passage of the "%s" section of the paper (part %d of %d).

Passage:
%s

Return only the JSON array.`

func buildPrompt(section model.SourceSection, chunk model.Chunk) string {
	return fmt.Sprintf(extractPrompt, section.Name, chunk.Index+1, chunk.Total, chunk.Text)
}
