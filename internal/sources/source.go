// Package sources provides interfaces and shared plumbing for bibliographic
// source clients.
//
// Each external database (PubMed, Cochrane, Scopus, OpenAlex, Semantic
// Scholar) implements the Source interface, allowing the research session
// orchestrator to search every source concurrently through a unified API.
//
// Example usage:
//
//	source := pubmed.New(cfg, httpClient)
//	params := sources.SearchParams{
//		Query:      `("Metformin"[Mesh] OR metformin[Title/Abstract])`,
//		MaxResults: 20,
//	}
//	result, err := source.Search(ctx, params)
package sources

import (
	"context"
	"time"

	"github.com/helixir/medical-research-service/internal/domain"
)

// SearchParams defines the parameters for one search against one source.
type SearchParams struct {
	// Query is the search query string (required). The dialect varies by
	// source; the query builder produces the appropriate form.
	Query string

	// MaxResults limits the number of results returned. Each source clamps
	// this to its own documented ceiling before issuing the request.
	// A value of 0 uses the source's default limit.
	MaxResults int

	// YearFrom filters to works published in or after this year (0 = unbounded).
	YearFrom int

	// YearTo filters to works published in or before this year (0 = unbounded).
	YearTo int
}

// Result contains the normalized results of one search operation.
type Result struct {
	// Results contains the normalized literature items. Fields a source
	// cannot supply are left zero-valued, never defaulted to sentinels.
	Results []*domain.SearchResult

	// TotalResults is the total number of matches reported by the source,
	// regardless of the requested limit. May be an estimate.
	TotalResults int

	// Source identifies which source produced these results.
	Source domain.SourceType

	// SearchDuration is the time taken to execute the search, including
	// network latency and response parsing.
	SearchDuration time.Duration
}

// Source defines the interface that all bibliographic source clients implement.
type Source interface {
	// Search queries the source for works matching the given parameters.
	// The context should be used for cancellation and deadline propagation.
	//
	// Implementations must:
	//   - Respect context cancellation
	//   - Apply rate limiting before each request
	//   - Normalize source-specific responses into domain.SearchResult
	//   - Return domain.SourceUnavailableError for non-retryable upstream
	//     failures and domain.RateLimitedError when 429 retries are exhausted
	Search(ctx context.Context, params SearchParams) (*Result, error)

	// SourceType returns the type identifier for this source.
	// Used for attribution, deduplication tie-breaks, and routing.
	SourceType() domain.SourceType

	// Name returns a human-readable name for logging and metrics.
	Name() string

	// IsEnabled returns whether this source is available for searches.
	// A source may be disabled by configuration or a missing API key.
	IsEnabled() bool
}
