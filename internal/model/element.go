package model

// ElementType categorizes an extracted research element.
type ElementType string

const (
	ElementClaim    ElementType = "claim"
	ElementFinding  ElementType = "finding"
	ElementMethod   ElementType = "method"
	ElementArtifact ElementType = "artifact"
)

// Valid reports whether t is one of the known element types.
func (t ElementType) Valid() bool {
	switch t {
	case ElementClaim, ElementFinding, ElementMethod, ElementArtifact:
		return true
	}
	return false
}

// EvidenceType describes the kind of evidence backing an element.
type EvidenceType string

const (
	EvidenceQuantitative EvidenceType = "quantitative"
	EvidenceQualitative  EvidenceType = "qualitative"
	EvidenceTheoretical  EvidenceType = "theoretical"
	EvidenceUnknown      EvidenceType = "unknown"
)

// NormalizeEvidence maps arbitrary model output to a known evidence type.
func NormalizeEvidence(s string) EvidenceType {
	switch EvidenceType(s) {
	case EvidenceQuantitative, EvidenceQualitative, EvidenceTheoretical:
		return EvidenceType(s)
	}
	return EvidenceUnknown
}

// ValidationStatus records the outcome of verbatim validation.
type ValidationStatus string

const (
	StatusVerified   ValidationStatus = "verified"
	StatusUnverified ValidationStatus = "unverified"
	StatusRejected   ValidationStatus = "rejected"
)

// ExtractedElement is a single research element pulled verbatim from a
// section. Invariants: Text is non-empty, Confidence is in [0,1], and any
// element published in an ExtractionResult has Status == StatusVerified.
type ExtractedElement struct {
	Type       ElementType      `json:"element_type"`
	Text       string           `json:"text"`
	Section    string           `json:"section"`
	Evidence   EvidenceType     `json:"evidence_type"`
	Confidence float64          `json:"confidence"`
	Page       int              `json:"page_number,omitempty"`
	Status     ValidationStatus `json:"validation_status"`

	// MatchMethod is how the validator located the text: "exact",
	// "normalized", or "fuzzy". MatchScore is set for fuzzy matches.
	MatchMethod string  `json:"match_method,omitempty"`
	MatchScore  float64 `json:"match_score,omitempty"`
}
