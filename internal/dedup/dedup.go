// Package dedup merges cross-source duplicate results and assigns stable
// reference numbers to the ranked set.
package dedup

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/helixir/medical-research-service/internal/domain"
)

// DefaultTitleSimilarityThreshold is the minimum normalized-title similarity
// for two records without shared identifiers to be considered duplicates.
const DefaultTitleSimilarityThreshold = 0.85

// Config holds deduplication tuning parameters.
type Config struct {
	// TitleSimilarityThreshold is the fuzzy-match cutoff in [0,1].
	TitleSimilarityThreshold float64
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.TitleSimilarityThreshold <= 0 || c.TitleSimilarityThreshold > 1 {
		c.TitleSimilarityThreshold = DefaultTitleSimilarityThreshold
	}
}

// Deduplicator merges duplicates across sources and ranks the survivors.
type Deduplicator struct {
	config Config
}

// New creates a deduplicator with the given configuration.
func New(config Config) *Deduplicator {
	config.applyDefaults()
	return &Deduplicator{config: config}
}

// Rank collapses duplicates in the unioned result lists of one session, sorts
// the survivors, and assigns 1-based reference numbers.
//
// Duplicate detection uses key priority: identical non-empty DOI first,
// identical non-empty PMID second, then fuzzy normalized-title similarity
// above the configured threshold combined with a matching publication year.
// On collision the record with the higher composite score survives and
// absorbs any fields the losing record supplied that it lacks.
//
// Ordering is descending composite score, ties broken by source priority,
// then case-insensitive title. The returned slice is the frozen ranked set.
func (d *Deduplicator) Rank(results []*domain.SearchResult) []*domain.SearchResult {
	merged := d.merge(results)

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		pa, pb := domain.SourcePriority(a.Source), domain.SourcePriority(b.Source)
		if pa != pb {
			return pa < pb
		}
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	})

	for i, r := range merged {
		r.ReferenceNumber = i + 1
	}
	return merged
}

// merge collapses duplicates, keeping the highest-scoring record of each group.
func (d *Deduplicator) merge(results []*domain.SearchResult) []*domain.SearchResult {
	var kept []*domain.SearchResult
	byDOI := make(map[string]int)
	byPMID := make(map[string]int)

	for _, r := range results {
		if r == nil {
			continue
		}

		idx := -1
		if doi := domain.NormalizeDOI(r.DOI); doi != "" {
			if i, ok := byDOI[doi]; ok {
				idx = i
			}
		}
		if idx < 0 && r.PMID != "" {
			if i, ok := byPMID[r.PMID]; ok {
				idx = i
			}
		}
		if idx < 0 {
			idx = d.findFuzzyMatch(kept, r)
		}

		if idx < 0 {
			kept = append(kept, r)
			idx = len(kept) - 1
		} else if r.CompositeScore > kept[idx].CompositeScore {
			absorb(r, kept[idx])
			kept[idx] = r
		} else {
			absorb(kept[idx], r)
		}

		if doi := domain.NormalizeDOI(kept[idx].DOI); doi != "" {
			byDOI[doi] = idx
		}
		if kept[idx].PMID != "" {
			byPMID[kept[idx].PMID] = idx
		}
	}
	return kept
}

// findFuzzyMatch returns the index of a kept record whose normalized title is
// similar enough to r's and shares its publication year, or -1.
func (d *Deduplicator) findFuzzyMatch(kept []*domain.SearchResult, r *domain.SearchResult) int {
	title := r.NormalizedTitle()
	if title == "" || r.PublicationYear == 0 {
		return -1
	}
	for i, k := range kept {
		if k.PublicationYear != r.PublicationYear {
			continue
		}
		if titleSimilarity(title, k.NormalizedTitle()) >= d.config.TitleSimilarityThreshold {
			return i
		}
	}
	return -1
}

// titleSimilarity is 1 minus the normalized Levenshtein distance between two
// already-normalized titles.
func titleSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// absorb copies onto winner every field that loser supplied and winner lacks,
// and unions the mesh term lists preserving winner-first order.
func absorb(winner, loser *domain.SearchResult) {
	if winner.DOI == "" {
		winner.DOI = loser.DOI
	}
	if winner.PMID == "" {
		winner.PMID = loser.PMID
	}
	if winner.URL == "" {
		winner.URL = loser.URL
	}
	if winner.Snippet == "" {
		winner.Snippet = loser.Snippet
	}
	if winner.Abstract == "" {
		winner.Abstract = loser.Abstract
	}
	if winner.PublicationType == "" {
		winner.PublicationType = loser.PublicationType
	}
	if len(winner.PublicationTypes) == 0 {
		winner.PublicationTypes = loser.PublicationTypes
	}
	if len(winner.Authors) == 0 {
		winner.Authors = loser.Authors
	}
	if winner.Journal == "" {
		winner.Journal = loser.Journal
	}
	if winner.Volume == "" {
		winner.Volume = loser.Volume
	}
	if winner.Issue == "" {
		winner.Issue = loser.Issue
	}
	if winner.Pages == "" {
		winner.Pages = loser.Pages
	}
	if winner.PublicationYear == 0 {
		winner.PublicationYear = loser.PublicationYear
	}
	if winner.CitationCount == nil {
		winner.CitationCount = loser.CitationCount
	}
	winner.MeshTerms = unionStrings(winner.MeshTerms, loser.MeshTerms)
}

// unionStrings appends items from extra not already in base, case-insensitively.
func unionStrings(base, extra []string) []string {
	if len(extra) == 0 {
		return base
	}
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range extra {
		if !seen[strings.ToLower(s)] {
			base = append(base, s)
			seen[strings.ToLower(s)] = true
		}
	}
	return base
}
