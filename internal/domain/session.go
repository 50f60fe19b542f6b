package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionPhase is the lifecycle phase of a research session.
type SessionPhase string

// Session phases. Forward progression is init -> planning -> searching ->
// synthesizing -> complete; failed and cancelled are absorbing terminals
// reachable from any non-terminal phase.
const (
	PhaseInit         SessionPhase = "init"
	PhasePlanning     SessionPhase = "planning"
	PhaseSearching    SessionPhase = "searching"
	PhaseSynthesizing SessionPhase = "synthesizing"
	PhaseComplete     SessionPhase = "complete"
	PhaseFailed       SessionPhase = "failed"
	PhaseCancelled    SessionPhase = "cancelled"
)

// IsTerminal returns true if the phase is absorbing and no further
// transitions are allowed.
func (p SessionPhase) IsTerminal() bool {
	switch p {
	case PhaseComplete, PhaseFailed, PhaseCancelled:
		return true
	}
	return false
}

// IsValid checks if the phase is a known session phase.
func (p SessionPhase) IsValid() bool {
	switch p {
	case PhaseInit, PhasePlanning, PhaseSearching, PhaseSynthesizing,
		PhaseComplete, PhaseFailed, PhaseCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the phase may move to target. Forward moves
// follow the fixed progression one step at a time; failed and cancelled are
// reachable from any non-terminal phase.
func (p SessionPhase) CanTransitionTo(target SessionPhase) bool {
	if p.IsTerminal() {
		return false
	}
	if target == PhaseFailed || target == PhaseCancelled {
		return true
	}
	switch p {
	case PhaseInit:
		return target == PhasePlanning
	case PhasePlanning:
		return target == PhaseSearching
	case PhaseSearching:
		return target == PhaseSynthesizing
	case PhaseSynthesizing:
		return target == PhaseComplete
	}
	return false
}

// Progress returns the baseline progress percentage a session reports upon
// entering the phase. Progress within a session is monotonically
// non-decreasing: 0 at init, 100 only at complete.
func (p SessionPhase) Progress() int {
	switch p {
	case PhaseInit:
		return 0
	case PhasePlanning:
		return 10
	case PhaseSearching:
		return 20
	case PhaseSynthesizing:
		return 80
	case PhaseComplete:
		return 100
	default:
		return 0
	}
}

// SessionMode selects the depth of a research run.
type SessionMode string

// Session modes.
const (
	ModeQuick    SessionMode = "quick"
	ModeDetailed SessionMode = "detailed"
)

// StepStatus is the lifecycle status of a planning step or tool execution.
type StepStatus string

// Step statuses.
const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
)

// PlanningStep is one entry in a session's research plan. Steps are appended
// once during planning and updated in place as they execute; the list itself
// is never truncated.
type PlanningStep struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Action      string     `json:"action"`
	Status      StepStatus `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  int64      `json:"duration_ms,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ToolExecution records one invocation of a search tool or vocabulary lookup
// within a session. Executions are append-only.
type ToolExecution struct {
	Tool        string     `json:"tool"`
	Status      StepStatus `json:"status"`
	Query       string     `json:"query,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  int64      `json:"duration_ms,omitempty"`
	ResultCount int        `json:"result_count,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ResearchSession is the orchestration unit for one structured clinical
// question: it owns the phase/progress tuple, the activity log, and the
// resulting ranked reference list.
type ResearchSession struct {
	ID uuid.UUID `json:"id"`

	// Query is the originating structured question.
	Query StructuredQuery `json:"query"`

	// Mode selects quick or detailed retrieval.
	Mode SessionMode `json:"mode"`

	// MaxResults is the per-source result ceiling requested by the caller.
	MaxResults int `json:"max_results"`

	Phase    SessionPhase `json:"phase"`
	Progress int          `json:"progress"`

	PlanningSteps  []PlanningStep  `json:"planning_steps,omitempty"`
	ActiveAgents   []string        `json:"active_agents,omitempty"`
	ToolExecutions []ToolExecution `json:"tool_executions,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Results is the ranked reference list, populated during synthesizing
	// and frozen once reference numbers are assigned.
	Results []*SearchResult `json:"results,omitempty"`
}

// NewResearchSession creates a session in the init phase.
func NewResearchSession(query StructuredQuery, mode SessionMode, maxResults int) *ResearchSession {
	return &ResearchSession{
		ID:         uuid.New(),
		Query:      query,
		Mode:       mode,
		MaxResults: maxResults,
		Phase:      PhaseInit,
		Progress:   PhaseInit.Progress(),
		CreatedAt:  time.Now().UTC(),
	}
}

// IsActive returns true if the session has not reached a terminal phase.
func (s *ResearchSession) IsActive() bool {
	return !s.Phase.IsTerminal()
}

// Duration returns elapsed time since start, or total duration if completed.
// Returns zero if the session has not started.
func (s *ResearchSession) Duration() time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	if s.CompletedAt != nil {
		return s.CompletedAt.Sub(*s.StartedAt)
	}
	return time.Since(*s.StartedAt)
}
