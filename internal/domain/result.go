package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SourceType identifies an external literature source.
type SourceType string

// Supported literature sources.
const (
	SourceTypePubMed          SourceType = "pubmed"
	SourceTypeCochrane        SourceType = "cochrane"
	SourceTypeScopus          SourceType = "scopus"
	SourceTypeOpenAlex        SourceType = "openalex"
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
)

// SourcePriorityOrder defines the deterministic tie-break order used when
// ranking results with equal composite scores. Lower index wins.
var SourcePriorityOrder = []SourceType{
	SourceTypePubMed,
	SourceTypeCochrane,
	SourceTypeScopus,
	SourceTypeOpenAlex,
	SourceTypeSemanticScholar,
}

// SourcePriority returns the tie-break rank of a source. Unknown sources sort last.
func SourcePriority(s SourceType) int {
	for i, st := range SourcePriorityOrder {
		if st == s {
			return i
		}
	}
	return len(SourcePriorityOrder)
}

// IsValid checks if the source type is a known literature source.
func (s SourceType) IsValid() bool {
	switch s {
	case SourceTypePubMed, SourceTypeCochrane, SourceTypeScopus,
		SourceTypeOpenAlex, SourceTypeSemanticScholar:
		return true
	}
	return false
}

// EvidenceLevel is the ordinal strength classification of a study,
// Level I strongest through Level V weakest.
type EvidenceLevel string

// Evidence levels.
const (
	EvidenceLevelI       EvidenceLevel = "I"
	EvidenceLevelII      EvidenceLevel = "II"
	EvidenceLevelIII     EvidenceLevel = "III"
	EvidenceLevelIV      EvidenceLevel = "IV"
	EvidenceLevelV       EvidenceLevel = "V"
	EvidenceLevelUnknown EvidenceLevel = "unknown"
)

// Rank returns the numeric tier of the level, 1 (strongest) through 5.
// Unknown ranks with the weakest tier.
func (l EvidenceLevel) Rank() int {
	switch l {
	case EvidenceLevelI:
		return 1
	case EvidenceLevelII:
		return 2
	case EvidenceLevelIII:
		return 3
	case EvidenceLevelIV:
		return 4
	default:
		return 5
	}
}

// SearchResult is one literature item returned by one source, normalized into
// the common shape shared by every adapter.
type SearchResult struct {
	ID        uuid.UUID  `json:"id"`
	SessionID uuid.UUID  `json:"session_id"`
	Source    SourceType `json:"source"`

	// Bibliographic metadata. Fields the source cannot supply stay zero-valued.
	Title            string   `json:"title"`
	URL              string   `json:"url,omitempty"`
	Snippet          string   `json:"snippet,omitempty"`
	Abstract         string   `json:"abstract,omitempty"`
	PublicationType  string   `json:"publication_type,omitempty"`
	PublicationTypes []string `json:"publication_types,omitempty"`
	MeshTerms        []string `json:"mesh_terms,omitempty"`
	DOI              string   `json:"doi,omitempty"`
	PMID             string   `json:"pmid,omitempty"`
	Authors          []string `json:"authors,omitempty"`
	Journal          string   `json:"journal,omitempty"`
	Volume           string   `json:"volume,omitempty"`
	Issue            string   `json:"issue,omitempty"`
	Pages            string   `json:"pages,omitempty"`
	PublicationYear  int      `json:"publication_year,omitempty"`
	CitationCount    *int     `json:"citation_count,omitempty"`

	// Evidence and ranking.
	EvidenceLevel      EvidenceLevel `json:"evidence_level"`
	RelevanceScore     float64       `json:"relevance_score,omitempty"`
	EvidenceLevelScore float64       `json:"evidence_level_score"`
	CitationScore      float64       `json:"citation_score"`
	RecencyScore       float64       `json:"recency_score"`
	CompositeScore     float64       `json:"composite_score"`

	// ReferenceNumber is the 1-based rank assigned after deduplication.
	// Unique within a session and stable once assigned.
	ReferenceNumber int `json:"reference_number,omitempty"`

	// VancouverCitation caches the rendered citation string.
	VancouverCitation string `json:"vancouver_citation,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewSearchResult creates a result with a generated ID and creation timestamp.
func NewSearchResult(sessionID uuid.UUID, source SourceType) *SearchResult {
	return &SearchResult{
		ID:            uuid.New(),
		SessionID:     sessionID,
		Source:        source,
		EvidenceLevel: EvidenceLevelUnknown,
		CreatedAt:     time.Now().UTC(),
	}
}

// NormalizedTitle lowercases the title and collapses runs of whitespace and
// punctuation into single spaces, for fuzzy duplicate matching.
func (r *SearchResult) NormalizedTitle() string {
	return NormalizeTitle(r.Title)
}

// NormalizeTitle produces the canonical comparison form of a title.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	lastSpace := true
	for _, c := range strings.ToLower(title) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
			lastSpace = false
		} else if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// NormalizeDOI lowercases a DOI and strips common URL prefixes so that
// the same work from different sources compares equal.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(strings.ToLower(doi))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, prefix)
	}
	return doi
}
