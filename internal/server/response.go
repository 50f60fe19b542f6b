package server

import (
	"time"

	"github.com/helixir/medical-research-service/internal/domain"
)

// Session response types for JSON serialization.

type sessionStatusResponse struct {
	SessionID      string                  `json:"session_id"`
	Framework      string                  `json:"framework"`
	Query          queryResponse           `json:"query"`
	Mode           string                  `json:"mode"`
	MaxResults     int                     `json:"max_results"`
	Phase          string                  `json:"phase"`
	Progress       int                     `json:"progress"`
	PlanningSteps  []planningStepResponse  `json:"planning_steps,omitempty"`
	ActiveAgents   []string                `json:"active_agents,omitempty"`
	ToolExecutions []toolExecutionResponse `json:"tool_executions,omitempty"`
	ErrorMessage   string                  `json:"error_message,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	StartedAt      *time.Time              `json:"started_at,omitempty"`
	CompletedAt    *time.Time              `json:"completed_at,omitempty"`
	Duration       string                  `json:"duration,omitempty"`
}

type queryResponse struct {
	Population   string   `json:"population,omitempty"`
	Intervention string   `json:"intervention,omitempty"`
	Comparison   string   `json:"comparison,omitempty"`
	Outcome      string   `json:"outcome,omitempty"`
	Concept      string   `json:"concept,omitempty"`
	Context      string   `json:"context,omitempty"`
	StudyTypes   []string `json:"study_types,omitempty"`
}

type planningStepResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  int64      `json:"duration_ms,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type toolExecutionResponse struct {
	Tool        string `json:"tool"`
	Status      string `json:"status"`
	Query       string `json:"query,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
	ResultCount int    `json:"result_count,omitempty"`
	Error       string `json:"error,omitempty"`
}

type sessionSummaryResponse struct {
	SessionID   string     `json:"session_id"`
	Framework   string     `json:"framework"`
	Mode        string     `json:"mode"`
	Phase       string     `json:"phase"`
	Progress    int        `json:"progress"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Duration    string     `json:"duration,omitempty"`
}

type listSessionsResponse struct {
	Sessions      []sessionSummaryResponse `json:"sessions"`
	NextPageToken string                   `json:"next_page_token,omitempty"`
	TotalCount    int                      `json:"total_count"`
}

type cancelSessionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Phase   string `json:"phase"`
}

type referenceResponse struct {
	ReferenceNumber   int      `json:"reference_number"`
	Title             string   `json:"title"`
	Authors           []string `json:"authors,omitempty"`
	Journal           string   `json:"journal,omitempty"`
	PublicationYear   int      `json:"publication_year,omitempty"`
	DOI               string   `json:"doi,omitempty"`
	PMID              string   `json:"pmid,omitempty"`
	URL               string   `json:"url,omitempty"`
	Source            string   `json:"source"`
	EvidenceLevel     string   `json:"evidence_level"`
	CompositeScore    float64  `json:"composite_score"`
	CitationCount     *int     `json:"citation_count,omitempty"`
	VancouverCitation string   `json:"vancouver_citation,omitempty"`
}

type listReferencesResponse struct {
	SessionID  string              `json:"session_id"`
	Phase      string              `json:"phase"`
	References []referenceResponse `json:"references"`
	TotalCount int                 `json:"total_count"`
}

// Converter functions

func sessionToStatusResponse(s *domain.ResearchSession) sessionStatusResponse {
	resp := sessionStatusResponse{
		SessionID:    s.ID.String(),
		Framework:    string(s.Query.Framework),
		Query:        queryToResponse(s.Query),
		Mode:         string(s.Mode),
		MaxResults:   s.MaxResults,
		Phase:        string(s.Phase),
		Progress:     s.Progress,
		ActiveAgents: s.ActiveAgents,
		ErrorMessage: s.ErrorMessage,
		CreatedAt:    s.CreatedAt,
		StartedAt:    s.StartedAt,
		CompletedAt:  s.CompletedAt,
	}
	for _, step := range s.PlanningSteps {
		resp.PlanningSteps = append(resp.PlanningSteps, planningStepResponse{
			ID:          step.ID,
			Name:        step.Name,
			Status:      string(step.Status),
			StartedAt:   step.StartedAt,
			CompletedAt: step.CompletedAt,
			DurationMS:  step.DurationMS,
			Error:       step.Error,
		})
	}
	for _, exec := range s.ToolExecutions {
		resp.ToolExecutions = append(resp.ToolExecutions, toolExecutionResponse{
			Tool:        exec.Tool,
			Status:      string(exec.Status),
			Query:       exec.Query,
			DurationMS:  exec.DurationMS,
			ResultCount: exec.ResultCount,
			Error:       exec.Error,
		})
	}
	if d := s.Duration(); d > 0 {
		resp.Duration = d.String()
	}
	return resp
}

func queryToResponse(q domain.StructuredQuery) queryResponse {
	return queryResponse{
		Population:   q.Population,
		Intervention: q.Intervention,
		Comparison:   q.Comparison,
		Outcome:      q.Outcome,
		Concept:      q.Concept,
		Context:      q.Context,
		StudyTypes:   q.StudyTypes,
	}
}

func sessionToSummary(s *domain.ResearchSession) sessionSummaryResponse {
	resp := sessionSummaryResponse{
		SessionID:   s.ID.String(),
		Framework:   string(s.Query.Framework),
		Mode:        string(s.Mode),
		Phase:       string(s.Phase),
		Progress:    s.Progress,
		CreatedAt:   s.CreatedAt,
		CompletedAt: s.CompletedAt,
	}
	if d := s.Duration(); d > 0 {
		resp.Duration = d.String()
	}
	return resp
}

func resultToReference(r *domain.SearchResult) referenceResponse {
	return referenceResponse{
		ReferenceNumber:   r.ReferenceNumber,
		Title:             r.Title,
		Authors:           r.Authors,
		Journal:           r.Journal,
		PublicationYear:   r.PublicationYear,
		DOI:               r.DOI,
		PMID:              r.PMID,
		URL:               r.URL,
		Source:            string(r.Source),
		EvidenceLevel:     string(r.EvidenceLevel),
		CompositeScore:    r.CompositeScore,
		CitationCount:     r.CitationCount,
		VancouverCitation: r.VancouverCitation,
	}
}
