// Package repository provides data access interfaces and implementations
// for the medical research service.
//
// # Overview
//
// This package defines repository interfaces and their PostgreSQL implementations
// following the repository pattern to abstract data persistence from business logic.
//
// # Repository Interfaces
//
// The package provides the following repository interfaces:
//
//   - SessionRepository: Manages research session lifecycle and state
//   - ResultRepository: Manages the ranked reference lists of sessions
//   - MeshRepository: Manages the persistent controlled-vocabulary cache
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use by multiple goroutines.
// The underlying pgxpool handles connection pooling and synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package.
// Wrap database errors with context using fmt.Errorf with %w verb.
// Common errors include:
//
//   - domain.ErrNotFound: Resource does not exist
//   - domain.ErrAlreadyExists: Unique constraint violation
//   - domain.ErrInvalidInput: Invalid parameters provided
//
// # Transactions
//
// Use the DBTX interface to support both pool and transaction contexts.
// Pass transaction from database.DB.WithTransaction for atomic operations.
//
// # Usage Pattern
//
// Repositories are typically created at application startup and passed to services:
//
//	db, _ := database.New(ctx, cfg, logger)
//	sessionRepo := repository.NewPgSessionRepository(db)
//	resultRepo := repository.NewPgResultRepository(db)
//	meshRepo := repository.NewPgMeshRepository(db)
package repository

import (
	"github.com/helixir/medical-research-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// This allows repositories to work with both direct pool connections and transactions.
//
// # Constructor Pattern
//
// Repository implementations follow a constructor pattern that accepts DBTX:
//
//	type PgSessionRepository struct {
//	    db DBTX
//	}
//
//	func NewPgSessionRepository(db DBTX) *PgSessionRepository {
//	    return &PgSessionRepository{db: db}
//	}
//
// This design enables:
//   - Direct usage with a connection pool for standard operations
//   - Transaction support by passing a transaction (pgx.Tx) instead
//   - Easy testing with mock implementations of DBTX
//
// # Transaction Usage Example
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    // Create a transactional repository instance
//	    txRepo := repository.NewPgSessionRepository(tx)
//	    // All operations within this function use the same transaction
//	    return txRepo.Create(ctx, session)
//	})
type DBTX = database.DBTX
