package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/medical-research-service/internal/domain"
)

func result(source domain.SourceType, title string, composite float64) *domain.SearchResult {
	return &domain.SearchResult{
		Source:         source,
		Title:          title,
		CompositeScore: composite,
	}
}

func TestRankCollapsesSharedDOI(t *testing.T) {
	a := result(domain.SourceTypePubMed, "Metformin outcomes", 0.8)
	a.DOI = "10.1000/abc"
	a.MeshTerms = []string{"Metformin"}

	b := result(domain.SourceTypeOpenAlex, "Metformin outcomes", 0.6)
	b.DOI = "https://doi.org/10.1000/ABC"
	b.MeshTerms = []string{"Diabetes Mellitus, Type 2"}
	b.Journal = "Diabetologia"

	ranked := New(Config{}).Rank([]*domain.SearchResult{a, b})

	require.Len(t, ranked, 1)
	winner := ranked[0]
	assert.Equal(t, 1, winner.ReferenceNumber)
	assert.Equal(t, 0.8, winner.CompositeScore)
	assert.Equal(t, domain.SourceTypePubMed, winner.Source)
	// Loser's fields are absorbed.
	assert.Equal(t, "Diabetologia", winner.Journal)
	assert.ElementsMatch(t, []string{"Metformin", "Diabetes Mellitus, Type 2"}, winner.MeshTerms)
}

func TestRankCollapsesSharedPMID(t *testing.T) {
	a := result(domain.SourceTypePubMed, "Result A", 0.5)
	a.PMID = "12345678"
	b := result(domain.SourceTypeScopus, "Result A variant", 0.7)
	b.PMID = "12345678"

	ranked := New(Config{}).Rank([]*domain.SearchResult{a, b})

	require.Len(t, ranked, 1)
	assert.Equal(t, 0.7, ranked[0].CompositeScore)
	assert.Equal(t, domain.SourceTypeScopus, ranked[0].Source)
}

func TestRankFuzzyTitleMatch(t *testing.T) {
	a := result(domain.SourceTypeCochrane, "Effects of metformin on glycemic control in adults", 0.9)
	a.PublicationYear = 2022
	b := result(domain.SourceTypeOpenAlex, "Effects of metformin on glycaemic control in adults", 0.4)
	b.PublicationYear = 2022

	ranked := New(Config{}).Rank([]*domain.SearchResult{a, b})
	require.Len(t, ranked, 1)
	assert.Equal(t, 0.9, ranked[0].CompositeScore)
}

func TestRankFuzzyRequiresMatchingYear(t *testing.T) {
	a := result(domain.SourceTypeCochrane, "Effects of metformin on glycemic control", 0.9)
	a.PublicationYear = 2020
	b := result(domain.SourceTypeOpenAlex, "Effects of metformin on glycemic control", 0.4)
	b.PublicationYear = 2022

	ranked := New(Config{}).Rank([]*domain.SearchResult{a, b})
	assert.Len(t, ranked, 2)
}

func TestRankDistinctTitlesSurvive(t *testing.T) {
	a := result(domain.SourceTypePubMed, "Statins and cardiovascular outcomes", 0.8)
	a.PublicationYear = 2021
	b := result(domain.SourceTypePubMed, "Metformin and renal function", 0.7)
	b.PublicationYear = 2021

	ranked := New(Config{}).Rank([]*domain.SearchResult{a, b})
	require.Len(t, ranked, 2)
	assert.Equal(t, 1, ranked[0].ReferenceNumber)
	assert.Equal(t, 2, ranked[1].ReferenceNumber)
}

func TestRankOrderingAndTieBreaks(t *testing.T) {
	t.Run("composite score descending", func(t *testing.T) {
		low := result(domain.SourceTypePubMed, "Low", 0.2)
		high := result(domain.SourceTypeSemanticScholar, "High", 0.9)
		ranked := New(Config{}).Rank([]*domain.SearchResult{low, high})
		require.Len(t, ranked, 2)
		assert.Equal(t, "High", ranked[0].Title)
	})

	t.Run("ties broken by source priority", func(t *testing.T) {
		scopus := result(domain.SourceTypeScopus, "Same score", 0.5)
		cochrane := result(domain.SourceTypeCochrane, "Same score elsewhere", 0.5)
		ranked := New(Config{}).Rank([]*domain.SearchResult{scopus, cochrane})
		require.Len(t, ranked, 2)
		assert.Equal(t, domain.SourceTypeCochrane, ranked[0].Source)
	})

	t.Run("full ties broken by title", func(t *testing.T) {
		b := result(domain.SourceTypePubMed, "Beta blockers", 0.5)
		a := result(domain.SourceTypePubMed, "Alpha agonists", 0.5)
		ranked := New(Config{}).Rank([]*domain.SearchResult{b, a})
		require.Len(t, ranked, 2)
		assert.Equal(t, "Alpha agonists", ranked[0].Title)
	})
}

func TestConfigDefaults(t *testing.T) {
	d := New(Config{})
	assert.Equal(t, DefaultTitleSimilarityThreshold, d.config.TitleSimilarityThreshold)

	d = New(Config{TitleSimilarityThreshold: 0.9})
	assert.Equal(t, 0.9, d.config.TitleSimilarityThreshold)
}
