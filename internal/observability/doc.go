// Package observability provides logging, metrics, and tracing support for
// the medical research service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for sessions, searches, and the vocabulary cache
//   - Context helpers for propagating observability data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("session_id", sessionID).Msg("session started")
//
// Add session context to a logger:
//
//	logger = observability.WithSessionContext(logger, sessionID, phase)
//
// # Metrics
//
// Initialize metrics once at startup:
//
//	metrics := observability.NewMetrics("medical_research")
//
// Record metrics:
//
//	metrics.RecordSessionStarted()
//	metrics.RecordSearchCompleted("pubmed", 25, 1.2)
//	metrics.RecordMeshCacheHit()
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithSessionID(ctx, sessionID)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	sessionID := observability.SessionIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - session_id: Research session identifier
//   - query: Built search query string
//   - source: Literature source (pubmed, cochrane, scopus, openalex, semantic_scholar)
//   - phase: Session phase
//   - trace_id: Distributed trace identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
