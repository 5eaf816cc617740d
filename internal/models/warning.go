package models

// Limit codes reported in Warning.Code.
const (
	LimitTotalConcepts     = "total_concepts"
	LimitConceptsPerScheme = "concepts_per_scheme"
	LimitConceptSchemes    = "concept_schemes"
	LimitHierarchyDepth    = "hierarchy_depth"
)

// WarningKindLimitExceeded marks a breached vendor limit.
const WarningKindLimitExceeded = "LimitExceeded"

// Warning is a non-fatal finding of a run. The export is still produced.
type Warning struct {
	Kind     string `json:"kind"`
	Code     string `json:"code"`
	Limit    int    `json:"limit"`
	Actual   int    `json:"actual"`
	SchemeID string `json:"schemeId,omitempty"`
	Message  string `json:"message"`
}
