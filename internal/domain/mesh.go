package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MeshMatchType describes how a lookup term matched a descriptor.
type MeshMatchType string

// Match types for MeshLookupIndex rows.
const (
	MeshMatchExact   MeshMatchType = "exact"
	MeshMatchPartial MeshMatchType = "partial"
	MeshMatchFuzzy   MeshMatchType = "fuzzy"
)

// MeshDescriptor is a cached controlled-vocabulary term. Descriptors are
// immutable once fetched; the cache owns them exclusively.
type MeshDescriptor struct {
	ID              uuid.UUID `json:"id"`
	DescriptorUI    string    `json:"descriptor_ui,omitempty"`
	Label           string    `json:"label"`
	AlternateLabels []string  `json:"alternate_labels,omitempty"`
	TreeNumbers     []string  `json:"tree_numbers,omitempty"`
	BroaderTerms    []string  `json:"broader_terms,omitempty"`
	NarrowerTerms   []string  `json:"narrower_terms,omitempty"`
	ScopeNote       string    `json:"scope_note,omitempty"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// NewMeshDescriptor creates a descriptor with a generated ID and fetch timestamp.
func NewMeshDescriptor(label string) *MeshDescriptor {
	return &MeshDescriptor{
		ID:        uuid.New(),
		Label:     label,
		FetchedAt: time.Now().UTC(),
	}
}

// MeshLookupIndex maps an arbitrary search term to a descriptor. Rows are
// created lazily after a successful fetch and never mutated, only appended.
type MeshLookupIndex struct {
	ID           uuid.UUID     `json:"id"`
	Term         string        `json:"term"`
	DescriptorID uuid.UUID     `json:"descriptor_id"`
	MatchType    MeshMatchType `json:"match_type"`
	CreatedAt    time.Time     `json:"created_at"`
}

// NewMeshLookupIndex creates an index row for a resolved term.
func NewMeshLookupIndex(term string, descriptorID uuid.UUID, matchType MeshMatchType) *MeshLookupIndex {
	return &MeshLookupIndex{
		ID:           uuid.New(),
		Term:         NormalizeMeshTerm(term),
		DescriptorID: descriptorID,
		MatchType:    matchType,
		CreatedAt:    time.Now().UTC(),
	}
}

// NormalizeMeshTerm lowercases and trims a term, collapsing internal runs of
// whitespace, so synonym lookups hit the same index row.
func NormalizeMeshTerm(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), " ")
}
