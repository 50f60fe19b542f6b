// Package query builds source-specific boolean search strings from
// structured PICO/PCC questions and their vocabulary expansions.
//
// Clause groups are joined with AND; a clause's own term and its expanded
// synonyms are joined with OR inside the group. Empty clauses are omitted
// entirely rather than emitting empty parentheses.
package query

import (
	"strings"

	"github.com/helixir/medical-research-service/internal/domain"
)

// Expansions maps a normalized clause term to its resolved descriptor.
// Terms the vocabulary could not resolve are simply absent.
type Expansions map[string]*domain.MeshDescriptor

// Build renders the query string for one target source. Returns
// domain.InvalidStructuredQueryError when the structured query has no
// non-empty clause.
func Build(source domain.SourceType, sq domain.StructuredQuery, expansions Expansions) (string, error) {
	if err := sq.Validate(); err != nil {
		return "", err
	}

	if source == domain.SourceTypePubMed {
		return buildPubMed(sq, expansions), nil
	}
	return buildGeneric(sq, expansions), nil
}

// buildPubMed renders the E-utilities dialect. Clauses with a resolved
// descriptor expand to ("Label"[Mesh] OR term[Title/Abstract]); study type
// restrictions append as an AND-ed publication type filter.
func buildPubMed(sq domain.StructuredQuery, expansions Expansions) string {
	groups := make([]string, 0, 4)
	for _, clause := range sq.Clauses() {
		field := quotePhrase(clause) + "[Title/Abstract]"
		if d := expansions[domain.NormalizeMeshTerm(clause)]; d != nil {
			groups = append(groups, `("`+d.Label+`"[Mesh] OR `+field+")")
		} else {
			groups = append(groups, field)
		}
	}

	query := strings.Join(groups, " AND ")

	if filter := pubMedStudyTypeFilter(sq.StudyTypes); filter != "" {
		query = "(" + query + ") AND (" + filter + ")"
	}
	return query
}

// pubMedStudyTypeFilter maps requested study designs onto PubMed publication
// type and descriptor filters.
func pubMedStudyTypeFilter(studyTypes []string) string {
	filters := make([]string, 0, len(studyTypes))
	for _, st := range studyTypes {
		lower := strings.ToLower(st)
		switch {
		case strings.Contains(lower, "meta"):
			filters = append(filters, `"Meta-Analysis"[Publication Type]`)
		case strings.Contains(lower, "systematic"):
			filters = append(filters, `"Systematic Review"[Publication Type]`)
		case strings.Contains(lower, "rct"), strings.Contains(lower, "randomized"), strings.Contains(lower, "randomised"):
			filters = append(filters, `"Randomized Controlled Trial"[Publication Type]`)
		case strings.Contains(lower, "cohort"):
			filters = append(filters, `"Cohort Studies"[Mesh]`)
		case strings.Contains(lower, "case-control"), strings.Contains(lower, "case control"):
			filters = append(filters, `"Case-Control Studies"[Mesh]`)
		}
	}
	return strings.Join(filters, " OR ")
}

// buildGeneric renders a plain boolean string for sources without a fielded
// query syntax. Each clause group ORs the clause with its descriptor label
// and alternate labels.
func buildGeneric(sq domain.StructuredQuery, expansions Expansions) string {
	groups := make([]string, 0, 4)
	for _, clause := range sq.Clauses() {
		terms := []string{quotePhrase(clause)}
		seen := map[string]bool{domain.NormalizeMeshTerm(clause): true}

		if d := expansions[domain.NormalizeMeshTerm(clause)]; d != nil {
			for _, label := range append([]string{d.Label}, d.AlternateLabels...) {
				normalized := domain.NormalizeMeshTerm(label)
				if normalized == "" || seen[normalized] {
					continue
				}
				seen[normalized] = true
				terms = append(terms, quotePhrase(label))
			}
		}

		if len(terms) == 1 {
			groups = append(groups, terms[0])
		} else {
			groups = append(groups, "("+strings.Join(terms, " OR ")+")")
		}
	}
	return strings.Join(groups, " AND ")
}

// quotePhrase wraps multi-word terms in double quotes; single words pass
// through unquoted.
func quotePhrase(term string) string {
	term = strings.TrimSpace(term)
	if strings.ContainsAny(term, " \t") {
		return `"` + term + `"`
	}
	return term
}
