package domain

import "strings"

// QueryFramework distinguishes the two supported structured question forms.
type QueryFramework string

// Structured question frameworks.
const (
	FrameworkPICO QueryFramework = "pico"
	FrameworkPCC  QueryFramework = "pcc"
)

// StructuredQuery is a clinical research question in PICO or PCC form.
// PICO uses Population/Intervention/Comparison/Outcome; PCC uses
// Population/Concept/Context. Unused fields stay empty.
type StructuredQuery struct {
	Framework QueryFramework `json:"framework"`

	Population   string `json:"population,omitempty"`
	Intervention string `json:"intervention,omitempty"`
	Comparison   string `json:"comparison,omitempty"`
	Outcome      string `json:"outcome,omitempty"`

	Concept string `json:"concept,omitempty"`
	Context string `json:"context,omitempty"`

	// StudyTypes optionally restricts results to specific study designs
	// (e.g. "randomized controlled trial").
	StudyTypes []string `json:"study_types,omitempty"`
}

// Clauses returns the non-empty clause terms in framework order. Each clause
// becomes one AND group in the built query.
func (q StructuredQuery) Clauses() []string {
	var fields []string
	if q.Framework == FrameworkPCC {
		fields = []string{q.Population, q.Concept, q.Context}
	} else {
		fields = []string{q.Population, q.Intervention, q.Comparison, q.Outcome}
	}

	clauses := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			clauses = append(clauses, f)
		}
	}
	return clauses
}

// Validate checks that the query has at least one non-empty clause.
// Returns InvalidStructuredQueryError otherwise, before any network call.
func (q StructuredQuery) Validate() error {
	if len(q.Clauses()) == 0 {
		return NewInvalidStructuredQueryError("at least one clause is required")
	}
	return nil
}
