package repository

import (
	"context"

	"github.com/helixir/medical-research-service/internal/domain"
)

// MeshRepository handles persistence of the controlled-vocabulary cache.
// Descriptors are immutable once stored; the lookup index is append-only.
type MeshRepository interface {
	// GetByTerm resolves a normalized term to its cached descriptor.
	// Resolution checks the lookup index first, then descriptor labels and
	// alternate labels, so a synonym resolves to the same descriptor.
	// Returns domain.ErrNotFound if the term has never been resolved.
	GetByTerm(ctx context.Context, normalizedTerm string) (*domain.MeshDescriptor, error)

	// Save persists a descriptor together with the lookup index row for the
	// term that produced it, in a single transaction. If a descriptor with
	// the same DescriptorUI already exists (a concurrent writer won the
	// race), the existing row is returned and only the index row is added.
	Save(ctx context.Context, descriptor *domain.MeshDescriptor, lookup *domain.MeshLookupIndex) (*domain.MeshDescriptor, error)

	// AppendLookup adds an index row pointing an additional term at an
	// existing descriptor. Duplicate (term, descriptor) pairs are ignored.
	AppendLookup(ctx context.Context, lookup *domain.MeshLookupIndex) error
}
