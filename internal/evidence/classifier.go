// Package evidence infers evidence levels from publication metadata and
// computes the composite relevance scores used for ranking.
package evidence

import (
	"regexp"
	"strings"

	"github.com/helixir/medical-research-service/internal/domain"
)

// Title patterns for each evidence tier. Matching is case-insensitive and
// tolerant of hyphen/space variants.
var (
	levelIPattern   = regexp.MustCompile(`(?i)systematic[\s-]+review|meta[\s-]*analysis`)
	levelIIPattern  = regexp.MustCompile(`(?i)randomi[sz]ed|\brct\b`)
	levelIIIPattern = regexp.MustCompile(`(?i)cohort|case[\s-]+control|prospective|retrospective`)
	levelIVPattern  = regexp.MustCompile(`(?i)case[\s-]+report|case[\s-]+series`)
)

// Classify infers an evidence level from publication types and title.
// Rules are evaluated in fixed priority order, first match wins:
//
//  1. title mentions a systematic review or meta-analysis -> Level I
//  2. publication types contain "review" -> Level I
//  3. title mentions randomization or an RCT -> Level II
//  4. title mentions a cohort, case-control, prospective or retrospective design -> Level III
//  5. publication types or title mention a case report or case series -> Level IV
//  6. otherwise -> unknown
//
// The ordering is a contract: a systematic review whose title also contains
// cohort-like terms must still classify as Level I.
func Classify(publicationTypes []string, title string) domain.EvidenceLevel {
	if levelIPattern.MatchString(title) {
		return domain.EvidenceLevelI
	}
	if containsType(publicationTypes, "review") {
		return domain.EvidenceLevelI
	}
	if levelIIPattern.MatchString(title) {
		return domain.EvidenceLevelII
	}
	if levelIIIPattern.MatchString(title) {
		return domain.EvidenceLevelIII
	}
	if containsType(publicationTypes, "case report") || levelIVPattern.MatchString(title) {
		return domain.EvidenceLevelIV
	}
	return domain.EvidenceLevelUnknown
}

// containsType reports whether any publication type contains the given
// fragment, case-insensitively.
func containsType(publicationTypes []string, fragment string) bool {
	for _, pt := range publicationTypes {
		if strings.Contains(strings.ToLower(pt), fragment) {
			return true
		}
	}
	return false
}
