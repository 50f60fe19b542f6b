// Package session orchestrates research sessions through their phase machine:
// init -> planning -> searching -> synthesizing -> complete, with failed and
// cancelled absorbing from any non-terminal phase.
//
// The orchestrator runs each session asynchronously: vocabulary expansion,
// per-source query building, concurrent search fan-out, evidence scoring,
// cross-source deduplication, and Vancouver citation rendering. Per-source
// failures are recorded as failed tool executions; only the failure of every
// source fails the session, and results gathered before a failure are retained.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/medical-research-service/internal/citation"
	"github.com/helixir/medical-research-service/internal/dedup"
	"github.com/helixir/medical-research-service/internal/domain"
	"github.com/helixir/medical-research-service/internal/evidence"
	"github.com/helixir/medical-research-service/internal/observability"
	"github.com/helixir/medical-research-service/internal/outbox"
	"github.com/helixir/medical-research-service/internal/query"
	"github.com/helixir/medical-research-service/internal/repository"
	"github.com/helixir/medical-research-service/internal/sources"
)

// Planning step identifiers. The plan is fixed: every session runs the same
// three steps, updated in place as they execute.
const (
	stepExpandVocabulary = "expand_vocabulary"
	stepSearchSources    = "search_sources"
	stepRankReferences   = "rank_references"
)

// VocabularyExpander resolves free-text terms to controlled-vocabulary
// descriptors. *mesh.Cache satisfies it.
type VocabularyExpander interface {
	Lookup(ctx context.Context, term string) (*domain.MeshDescriptor, error)
}

// EventSink appends outbox events. *outbox.Store satisfies it.
type EventSink interface {
	Append(ctx context.Context, event *domain.OutboxEvent) error
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Sessions repository.SessionRepository
	Results  repository.ResultRepository
	Events   EventSink
	Mesh     VocabularyExpander
	Registry *sources.Registry
	Dedup    *dedup.Deduplicator
	Metrics  *observability.Metrics
	Logger   zerolog.Logger
}

// Orchestrator drives research sessions through the phase machine.
// Safe for concurrent use.
type Orchestrator struct {
	sessions repository.SessionRepository
	results  repository.ResultRepository
	events   EventSink
	mesh     VocabularyExpander
	registry *sources.Registry
	dedup    *dedup.Deduplicator
	metrics  *observability.Metrics
	logger   zerolog.Logger

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
	running sync.WaitGroup
}

// NewOrchestrator creates an orchestrator from its dependencies.
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		sessions: deps.Sessions,
		results:  deps.Results,
		events:   deps.Events,
		mesh:     deps.Mesh,
		registry: deps.Registry,
		dedup:    deps.Dedup,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With().Str("component", "session_orchestrator").Logger(),
		cancels:  make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start validates the query, persists a new session in the init phase, and
// launches its asynchronous run. The returned session reflects the persisted
// init state; callers poll Get for progress.
func (o *Orchestrator) Start(ctx context.Context, q domain.StructuredQuery, mode domain.SessionMode, maxResults int) (*domain.ResearchSession, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if mode == "" {
		mode = domain.ModeQuick
	}

	session := domain.NewResearchSession(q, mode, maxResults)
	if err := o.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	o.appendEvent(ctx, domain.EventTypeSessionCreated, session.ID, domain.SessionCreatedPayload{
		SessionID: session.ID,
		Framework: q.Framework,
		Mode:      mode,
	})
	o.metrics.RecordSessionStarted()

	// The run outlives the originating request. Cancellation comes through
	// Cancel, not through the request context.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.mu.Lock()
	o.cancels[session.ID] = cancel
	o.mu.Unlock()

	o.running.Add(1)
	go func() {
		defer o.running.Done()
		defer o.forgetCancel(session.ID)
		o.run(runCtx, session)
	}()

	return session, nil
}

// Cancel requests cancellation of a running session. The cancelled phase is
// recorded immediately; in-flight source calls drain in the background.
// Returns domain.ErrNotFound for unknown sessions and
// domain.ErrInvalidTransition if the session already reached a terminal phase.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := o.sessions.UpdatePhase(ctx, id, domain.PhaseCancelled, ""); err != nil {
		return err
	}

	o.mu.Lock()
	cancel, ok := o.cancels[id]
	o.mu.Unlock()
	if ok {
		cancel()
	}

	session, err := o.sessions.Get(ctx, id)
	phase := domain.PhaseCancelled
	if err == nil {
		phase = session.Phase
	}

	o.appendEvent(ctx, domain.EventTypeSessionCancelled, id, domain.SessionCancelledPayload{
		SessionID: id,
		Phase:     phase,
	})
	o.metrics.RecordSessionCancelled()
	o.logger.Info().Str("session_id", id.String()).Msg("session cancelled")

	return nil
}

// Wait blocks until all running sessions have drained. Used during shutdown.
func (o *Orchestrator) Wait() {
	o.running.Wait()
}

func (o *Orchestrator) forgetCancel(id uuid.UUID) {
	o.mu.Lock()
	if cancel, ok := o.cancels[id]; ok {
		cancel()
		delete(o.cancels, id)
	}
	o.mu.Unlock()
}

// run executes the session pipeline. Every phase transition is persisted
// before the phase's work begins; a transition rejected by the phase machine
// means a concurrent cancel won, and the run drains quietly.
func (o *Orchestrator) run(ctx context.Context, session *domain.ResearchSession) {
	logger := observability.WithSessionContext(o.logger, session.ID.String(), string(session.Phase))
	start := time.Now()

	if !o.transition(ctx, session, domain.PhasePlanning) {
		return
	}
	if err := o.plan(ctx, session); err != nil {
		o.fail(ctx, session, start, err)
		return
	}

	if !o.transition(ctx, session, domain.PhaseSearching) {
		return
	}
	gathered, err := o.search(ctx, session)
	if err != nil {
		o.fail(ctx, session, start, err)
		return
	}
	if ctx.Err() != nil {
		logger.Debug().Msg("run drained after cancellation")
		return
	}

	if !o.transition(ctx, session, domain.PhaseSynthesizing) {
		return
	}
	ranked, err := o.synthesize(ctx, session, gathered)
	if err != nil {
		o.fail(ctx, session, start, err)
		return
	}

	if !o.transition(ctx, session, domain.PhaseComplete) {
		return
	}

	duration := time.Since(start)
	o.appendEvent(ctx, domain.EventTypeSessionCompleted, session.ID, domain.SessionCompletedPayload{
		SessionID:   session.ID,
		ResultCount: len(ranked),
		Duration:    duration,
	})
	o.metrics.RecordSessionCompleted(duration.Seconds())
	logger.Info().
		Int("result_count", len(ranked)).
		Dur("duration", duration).
		Msg("session completed")
}

// transition persists a phase change. Returns false when the phase machine
// rejects it, which means the session was cancelled or failed concurrently.
func (o *Orchestrator) transition(ctx context.Context, session *domain.ResearchSession, target domain.SessionPhase) bool {
	from := session.Phase
	if err := o.sessions.UpdatePhase(ctx, session.ID, target, ""); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			o.logger.Debug().
				Str("session_id", session.ID.String()).
				Str("target", string(target)).
				Msg("phase transition rejected, run drains")
			return false
		}
		o.logger.Error().Err(err).
			Str("session_id", session.ID.String()).
			Str("target", string(target)).
			Msg("failed to persist phase transition")
		return false
	}

	session.Phase = target
	if baseline := target.Progress(); baseline > session.Progress {
		session.Progress = baseline
	}
	o.metrics.RecordPhaseTransition(string(from), string(target))
	return true
}

// fail moves the session to the failed phase, retaining any results already
// persisted, and emits the failure event.
func (o *Orchestrator) fail(ctx context.Context, session *domain.ResearchSession, start time.Time, cause error) {
	if err := o.sessions.UpdatePhase(ctx, session.ID, domain.PhaseFailed, cause.Error()); err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) {
			o.logger.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to persist failure")
		}
		return
	}

	o.appendEvent(ctx, domain.EventTypeSessionFailed, session.ID, domain.SessionFailedPayload{
		SessionID: session.ID,
		Phase:     session.Phase,
		Error:     cause.Error(),
	})
	o.metrics.RecordSessionFailed(time.Since(start).Seconds())
	o.logger.Warn().Err(cause).Str("session_id", session.ID.String()).Msg("session failed")
}

// plan records the fixed research plan on the session.
func (o *Orchestrator) plan(ctx context.Context, session *domain.ResearchSession) error {
	steps := []domain.PlanningStep{
		{ID: stepExpandVocabulary, Name: "Expand vocabulary", Action: "Resolve question terms to MeSH descriptors", Status: domain.StepStatusPending},
		{ID: stepSearchSources, Name: "Search literature databases", Action: "Query all enabled sources concurrently", Status: domain.StepStatusPending},
		{ID: stepRankReferences, Name: "Rank references", Action: "Score, deduplicate, and number the combined results", Status: domain.StepStatusPending},
	}

	return o.sessions.Update(ctx, session.ID, func(s *domain.ResearchSession) error {
		s.PlanningSteps = append(s.PlanningSteps, steps...)
		s.ActiveAgents = append(s.ActiveAgents, "research_orchestrator")
		return nil
	})
}

// search expands the query vocabulary and fans out to every enabled source.
// Partial failure is tolerated; only total failure returns an error.
func (o *Orchestrator) search(ctx context.Context, session *domain.ResearchSession) ([]*domain.SearchResult, error) {
	o.markStep(ctx, session.ID, stepExpandVocabulary, domain.StepStatusInProgress, "")
	expansions := o.expand(ctx, session)
	o.markStep(ctx, session.ID, stepExpandVocabulary, domain.StepStatusCompleted, "")

	o.markStep(ctx, session.ID, stepSearchSources, domain.StepStatusInProgress, "")

	// Queries are built before the fan-out. A source whose query cannot be
	// built is excluded from the fan-out entirely and counted as failed.
	queries := make(map[domain.SourceType]string)
	buildErrs := make(map[domain.SourceType]error)
	for _, s := range o.registry.EnabledSources() {
		q, err := query.Build(s.SourceType(), session.Query, expansions)
		if err != nil {
			buildErrs[s.SourceType()] = err
			continue
		}
		queries[s.SourceType()] = q
	}

	outcomes := o.registry.SearchEach(ctx, func(s sources.Source) (sources.SearchParams, bool) {
		q, ok := queries[s.SourceType()]
		if !ok {
			return sources.SearchParams{}, false
		}
		o.metrics.RecordSearchStarted(string(s.SourceType()))
		return sources.SearchParams{
			Query:      q,
			MaxResults: session.MaxResults,
		}, true
	})

	var gathered []*domain.SearchResult
	failures := make(map[domain.SourceType]error, len(buildErrs))
	for st, err := range buildErrs {
		failures[st] = err
	}

	for _, outcome := range outcomes {
		if outcome.Error != nil {
			failures[outcome.Source] = outcome.Error
			o.recordSearchFailure(ctx, session.ID, outcome.Source, outcome.Error)
			continue
		}

		o.recordSearchSuccess(ctx, session.ID, outcome.Source, outcome.Result)
		gathered = append(gathered, outcome.Result.Results...)
	}

	attempted := len(outcomes) + len(buildErrs)
	if attempted == 0 {
		err := errors.New("no sources enabled")
		o.markStep(ctx, session.ID, stepSearchSources, domain.StepStatusFailed, err.Error())
		return nil, err
	}

	if len(failures) == attempted {
		err := &domain.AllSourcesFailedError{Failures: failures}
		o.markStep(ctx, session.ID, stepSearchSources, domain.StepStatusFailed, err.Error())
		return nil, err
	}

	o.markStep(ctx, session.ID, stepSearchSources, domain.StepStatusCompleted, "")
	return gathered, nil
}

// expand resolves each query clause to a descriptor. Lookup failures are
// logged and skipped; the query builder falls back to the raw clause text.
func (o *Orchestrator) expand(ctx context.Context, session *domain.ResearchSession) query.Expansions {
	expansions := make(query.Expansions)
	for _, clause := range session.Query.Clauses() {
		started := time.Now()
		descriptor, err := o.mesh.Lookup(ctx, clause)
		o.recordToolExecution(ctx, session.ID, toolExecution("mesh_lookup", clause, started, err, boolToCount(err == nil)))
		if err != nil {
			o.logger.Debug().Err(err).Str("term", clause).Msg("vocabulary expansion skipped")
			continue
		}
		expansions[domain.NormalizeMeshTerm(clause)] = descriptor
	}
	return expansions
}

// synthesize scores, deduplicates, numbers, and persists the gathered results.
func (o *Orchestrator) synthesize(ctx context.Context, session *domain.ResearchSession, gathered []*domain.SearchResult) ([]*domain.SearchResult, error) {
	o.markStep(ctx, session.ID, stepRankReferences, domain.StepStatusInProgress, "")

	currentYear := time.Now().UTC().Year()
	for _, r := range gathered {
		evidence.Apply(r, currentYear)
	}

	ranked := o.dedup.Rank(gathered)
	if merged := len(gathered) - len(ranked); merged > 0 {
		o.metrics.RecordDuplicatesMerged(merged)
	}

	for _, r := range ranked {
		r.SessionID = session.ID
		r.VancouverCitation = citation.Vancouver(r)
	}

	if err := o.results.BulkCreate(ctx, ranked); err != nil {
		o.markStep(ctx, session.ID, stepRankReferences, domain.StepStatusFailed, err.Error())
		return nil, fmt.Errorf("persisting ranked results: %w", err)
	}

	o.metrics.RecordReferencesRanked(len(ranked))
	o.markStep(ctx, session.ID, stepRankReferences, domain.StepStatusCompleted, "")
	return ranked, nil
}

// recordSearchSuccess logs a completed source search on the session.
func (o *Orchestrator) recordSearchSuccess(ctx context.Context, sessionID uuid.UUID, source domain.SourceType, result *sources.Result) {
	o.metrics.RecordSearchCompleted(string(source), len(result.Results), result.SearchDuration.Seconds())

	now := time.Now().UTC()
	started := now.Add(-result.SearchDuration)
	exec := domain.ToolExecution{
		Tool:        "search_" + string(source),
		Status:      domain.StepStatusCompleted,
		StartedAt:   started,
		CompletedAt: &now,
		DurationMS:  result.SearchDuration.Milliseconds(),
		ResultCount: len(result.Results),
	}
	o.recordToolExecution(ctx, sessionID, exec)

	o.appendEvent(ctx, domain.EventTypeSearchCompleted, sessionID, domain.SearchCompletedPayload{
		SessionID:   sessionID,
		Source:      source,
		ResultCount: len(result.Results),
		Duration:    result.SearchDuration,
	})
}

// recordSearchFailure logs a failed source search on the session.
func (o *Orchestrator) recordSearchFailure(ctx context.Context, sessionID uuid.UUID, source domain.SourceType, cause error) {
	o.metrics.RecordSearchFailed(string(source), 0)
	if errors.Is(cause, domain.ErrRateLimited) {
		o.metrics.RecordSourceRateLimited(string(source))
	}

	now := time.Now().UTC()
	exec := domain.ToolExecution{
		Tool:        "search_" + string(source),
		Status:      domain.StepStatusFailed,
		StartedAt:   now,
		CompletedAt: &now,
		Error:       cause.Error(),
	}
	o.recordToolExecution(ctx, sessionID, exec)
}

// recordToolExecution appends an execution record to the session's log.
func (o *Orchestrator) recordToolExecution(ctx context.Context, sessionID uuid.UUID, exec domain.ToolExecution) {
	err := o.sessions.Update(ctx, sessionID, func(s *domain.ResearchSession) error {
		s.ToolExecutions = append(s.ToolExecutions, exec)
		return nil
	})
	if err != nil {
		o.logger.Warn().Err(err).Str("session_id", sessionID.String()).Msg("failed to record tool execution")
	}
}

// markStep updates a planning step's status in place.
func (o *Orchestrator) markStep(ctx context.Context, sessionID uuid.UUID, stepID string, status domain.StepStatus, errMsg string) {
	err := o.sessions.Update(ctx, sessionID, func(s *domain.ResearchSession) error {
		now := time.Now().UTC()
		for i := range s.PlanningSteps {
			if s.PlanningSteps[i].ID != stepID {
				continue
			}
			step := &s.PlanningSteps[i]
			step.Status = status
			step.Error = errMsg
			switch status {
			case domain.StepStatusInProgress:
				step.StartedAt = &now
			case domain.StepStatusCompleted, domain.StepStatusFailed:
				step.CompletedAt = &now
				if step.StartedAt != nil {
					step.DurationMS = now.Sub(*step.StartedAt).Milliseconds()
				}
			}
			return nil
		}
		return nil
	})
	if err != nil {
		o.logger.Warn().Err(err).Str("session_id", sessionID.String()).Str("step", stepID).Msg("failed to update planning step")
	}
}

// appendEvent writes an outbox event, logging rather than failing on error:
// eventing is best-effort relative to session state.
func (o *Orchestrator) appendEvent(ctx context.Context, eventType string, sessionID uuid.UUID, payload interface{}) {
	event, err := domain.NewOutboxEvent(eventType, sessionID.String(), outbox.AggregateTypeSession, payload)
	if err != nil {
		o.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to build outbox event")
		return
	}
	if err := o.events.Append(ctx, event); err != nil {
		o.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to append outbox event")
	}
}

// toolExecution builds an execution record for a synchronous call.
func toolExecution(tool, q string, started time.Time, err error, resultCount int) domain.ToolExecution {
	now := time.Now().UTC()
	exec := domain.ToolExecution{
		Tool:        tool,
		Status:      domain.StepStatusCompleted,
		Query:       q,
		StartedAt:   started.UTC(),
		CompletedAt: &now,
		DurationMS:  now.Sub(started.UTC()).Milliseconds(),
		ResultCount: resultCount,
	}
	if err != nil {
		exec.Status = domain.StepStatusFailed
		exec.Error = err.Error()
	}
	return exec
}

// boolToCount maps a lookup success to a result count for the execution log.
func boolToCount(ok bool) int {
	if ok {
		return 1
	}
	return 0
}
