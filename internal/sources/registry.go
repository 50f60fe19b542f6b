package sources

import (
	"context"
	"sync"

	"github.com/helixir/medical-research-service/internal/domain"
)

// SourceResult holds the outcome of a search from one source.
type SourceResult struct {
	// Source identifies which source produced the outcome.
	Source domain.SourceType

	// Result contains the search results if the search succeeded.
	// Nil if Error is non-nil.
	Result *Result

	// Error contains the failure if the search did not succeed.
	// Nil if Result is non-nil.
	Error error
}

// Registry manages sources and coordinates concurrent search fan-out.
// It provides thread-safe registration and retrieval of sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[domain.SourceType]Source
}

// NewRegistry creates a new source registry with an empty source map.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[domain.SourceType]Source),
	}
}

// Register adds a source to the registry, replacing any source of the same type.
func (r *Registry) Register(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.SourceType()] = source
}

// Get returns a source by type, or nil if not found.
func (r *Registry) Get(sourceType domain.SourceType) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// EnabledSources returns only sources whose IsEnabled() reports true.
// The returned slice is a snapshot and is safe to iterate while sources
// are registered concurrently.
func (r *Registry) EnabledSources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]Source, 0, len(r.sources))
	for _, source := range r.sources {
		if source.IsEnabled() {
			sources = append(sources, source)
		}
	}
	return sources
}

// SearchAll searches all enabled sources concurrently, one goroutine per
// source, and waits for every search to settle before returning. A slow or
// failing source never blocks or poisons the others; its error is carried in
// its SourceResult for the caller to handle. Context cancellation interrupts
// in-flight searches, whose errors are likewise returned rather than dropped.
func (r *Registry) SearchAll(ctx context.Context, params SearchParams) []SourceResult {
	return r.SearchEach(ctx, func(Source) (SearchParams, bool) { return params, true })
}

// SearchEach is SearchAll with per-source parameters: paramsFor is called on
// the caller's goroutine once per enabled source before its search starts.
// Returning false excludes the source from the fan-out; it gets no request
// and no entry in the returned outcomes. Used when the query dialect differs
// by source or a source's query could not be prepared.
func (r *Registry) SearchEach(ctx context.Context, paramsFor func(Source) (SearchParams, bool)) []SourceResult {
	sources := r.EnabledSources()
	if len(sources) == 0 {
		return nil
	}

	resultChan := make(chan SourceResult, len(sources))
	var wg sync.WaitGroup

	var launched int
	for _, source := range sources {
		params, ok := paramsFor(source)
		if !ok {
			continue
		}

		launched++
		wg.Add(1)
		go func(s Source, p SearchParams) {
			defer wg.Done()

			result, err := s.Search(ctx, p)
			resultChan <- SourceResult{
				Source: s.SourceType(),
				Result: result,
				Error:  err,
			}
		}(source, params)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]SourceResult, 0, launched)
	for result := range resultChan {
		results = append(results, result)
	}

	return results
}
