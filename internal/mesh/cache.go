// Package mesh provides the persistent controlled-vocabulary cache.
//
// Lookups resolve free-text terms to MeSH descriptors. A hit returns the
// cached descriptor without any external call; a miss consults a built-in
// seed mapping of common clinical terms, then the external vocabulary
// service. Concurrent misses for the same normalized term are coalesced into
// a single fetch, so the cache never creates duplicate descriptor rows.
package mesh

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/helixir/medical-research-service/internal/domain"
	"github.com/helixir/medical-research-service/internal/repository"
)

// Cache resolves search terms to descriptors, backed by a persistent store
// and an external vocabulary client. Safe for concurrent use.
type Cache struct {
	repo   repository.MeshRepository
	vocab  VocabularyClient
	logger zerolog.Logger
	group  singleflight.Group
}

// NewCache creates a cache over the given store and vocabulary client.
func NewCache(repo repository.MeshRepository, vocab VocabularyClient, logger zerolog.Logger) *Cache {
	return &Cache{
		repo:   repo,
		vocab:  vocab,
		logger: logger.With().Str("component", "mesh_cache").Logger(),
	}
}

// Lookup resolves a term to its descriptor. On a cache miss it fetches from
// the seed mapping or the external vocabulary, persists the descriptor plus
// an index row for the term, and returns it. Concurrent lookups for the same
// term share one fetch. Returns domain.VocabularyLookupFailedError when
// neither the cache nor the vocabulary can resolve the term.
func (c *Cache) Lookup(ctx context.Context, term string) (*domain.MeshDescriptor, error) {
	normalized := domain.NormalizeMeshTerm(term)
	if normalized == "" {
		return nil, domain.NewValidationError("term", "must not be empty")
	}

	descriptor, err := c.repo.GetByTerm(ctx, normalized)
	if err == nil {
		c.logger.Debug().Str("term", normalized).Str("label", descriptor.Label).Msg("cache hit")
		return descriptor, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("reading descriptor cache: %w", err)
	}

	value, err, _ := c.group.Do(normalized, func() (interface{}, error) {
		return c.fetchAndStore(ctx, normalized)
	})
	if err != nil {
		return nil, err
	}
	return value.(*domain.MeshDescriptor), nil
}

// fetchAndStore runs inside the single-flight group. It re-checks the store
// before fetching, since a concurrent process may have persisted the term
// while this caller was waiting.
func (c *Cache) fetchAndStore(ctx context.Context, normalized string) (*domain.MeshDescriptor, error) {
	descriptor, err := c.repo.GetByTerm(ctx, normalized)
	if err == nil {
		return descriptor, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("reading descriptor cache: %w", err)
	}

	descriptor, matchType, err := c.resolve(ctx, normalized)
	if err != nil {
		c.logger.Warn().Err(err).Str("term", normalized).Msg("vocabulary lookup failed")
		return nil, domain.NewVocabularyLookupFailedError(normalized, err)
	}

	lookup := domain.NewMeshLookupIndex(normalized, descriptor.ID, matchType)
	stored, err := c.repo.Save(ctx, descriptor, lookup)
	if err != nil {
		return nil, fmt.Errorf("persisting descriptor: %w", err)
	}

	c.logger.Info().
		Str("term", normalized).
		Str("label", stored.Label).
		Str("match_type", string(matchType)).
		Msg("descriptor cached")

	return stored, nil
}

// resolve produces a descriptor for a term, preferring the seed mapping over
// the external vocabulary service.
func (c *Cache) resolve(ctx context.Context, normalized string) (*domain.MeshDescriptor, domain.MeshMatchType, error) {
	if descriptor := seedDescriptor(normalized); descriptor != nil {
		return descriptor, domain.MeshMatchExact, nil
	}
	return c.vocab.Fetch(ctx, normalized)
}
