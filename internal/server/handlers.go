package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/helixir/medical-research-service/internal/domain"
	"github.com/helixir/medical-research-service/internal/repository"
)

// Pagination and validation constants.
const (
	defaultPageSize    = 50
	maxPageSize        = 100
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// startSessionRequest is the JSON request body for starting a research session.
type startSessionRequest struct {
	Framework    string   `json:"framework" validate:"required,oneof=pico pcc"`
	Population   string   `json:"population,omitempty" validate:"max=1000"`
	Intervention string   `json:"intervention,omitempty" validate:"max=1000"`
	Comparison   string   `json:"comparison,omitempty" validate:"max=1000"`
	Outcome      string   `json:"outcome,omitempty" validate:"max=1000"`
	Concept      string   `json:"concept,omitempty" validate:"max=1000"`
	Context      string   `json:"context,omitempty" validate:"max=1000"`
	StudyTypes   []string `json:"study_types,omitempty" validate:"max=10,dive,max=200"`
	Mode         string   `json:"mode,omitempty" validate:"omitempty,oneof=quick detailed"`
	MaxResults   int      `json:"max_results,omitempty" validate:"omitempty,min=1,max=100"`
}

// startResearchSession handles POST /research-sessions. The session is
// persisted in the init phase and runs asynchronously; callers poll the
// status endpoint for progress.
func (s *Server) startResearchSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req startSessionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	query := domain.StructuredQuery{
		Framework:    domain.QueryFramework(req.Framework),
		Population:   strings.TrimSpace(req.Population),
		Intervention: strings.TrimSpace(req.Intervention),
		Comparison:   strings.TrimSpace(req.Comparison),
		Outcome:      strings.TrimSpace(req.Outcome),
		Concept:      strings.TrimSpace(req.Concept),
		Context:      strings.TrimSpace(req.Context),
		StudyTypes:   req.StudyTypes,
	}

	mode := domain.SessionMode(req.Mode)
	if mode == "" {
		mode = domain.ModeQuick
	}
	maxResults := req.MaxResults
	if maxResults == 0 {
		maxResults = 20
	}

	session, err := s.orchestrator.Start(ctx, query, mode, maxResults)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, sessionToStatusResponse(session))
}

// getResearchSession handles GET /research-sessions/{sessionID}.
func (s *Server) getResearchSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseUUID(w, chi.URLParam(r, "sessionID"), "session_id")
	if !ok {
		return
	}

	session, err := s.sessionRepo.Get(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionToStatusResponse(session))
}

// listResearchSessions handles GET /research-sessions with optional phase,
// mode, and creation-date filters.
func (s *Server) listResearchSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaginationParams(r)

	filter := repository.SessionFilter{
		Limit:  limit,
		Offset: offset,
	}

	if phaseParam := r.URL.Query().Get("phase"); phaseParam != "" {
		for _, p := range strings.Split(phaseParam, ",") {
			filter.Phase = append(filter.Phase, domain.SessionPhase(strings.TrimSpace(p)))
		}
	}
	if modeParam := r.URL.Query().Get("mode"); modeParam != "" {
		filter.Mode = domain.SessionMode(modeParam)
	}
	if createdAfter := r.URL.Query().Get("created_after"); createdAfter != "" {
		t, parseErr := time.Parse(time.RFC3339, createdAfter)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid created_after format: expected RFC3339")
			return
		}
		filter.CreatedAfter = &t
	}
	if createdBefore := r.URL.Query().Get("created_before"); createdBefore != "" {
		t, parseErr := time.Parse(time.RFC3339, createdBefore)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid created_before format: expected RFC3339")
			return
		}
		filter.CreatedBefore = &t
	}

	sessions, totalCount, err := s.sessionRepo.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	summaries := make([]sessionSummaryResponse, len(sessions))
	for i, session := range sessions {
		summaries[i] = sessionToSummary(session)
	}

	writeJSON(w, http.StatusOK, listSessionsResponse{
		Sessions:      summaries,
		NextPageToken: encodePageToken(offset, limit, int(totalCount)),
		TotalCount:    int(totalCount),
	})
}

// cancelResearchSession handles DELETE /research-sessions/{sessionID}.
// Cancellation is recorded immediately; in-flight source calls drain in the
// background.
func (s *Server) cancelResearchSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseUUID(w, chi.URLParam(r, "sessionID"), "session_id")
	if !ok {
		return
	}

	if err := s.orchestrator.Cancel(r.Context(), sessionID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cancelSessionResponse{
		Success: true,
		Message: "cancellation requested",
		Phase:   string(domain.PhaseCancelled),
	})
}

// getSessionReferences handles GET /research-sessions/{sessionID}/references.
// References are returned in reference-number order.
func (s *Server) getSessionReferences(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseUUID(w, chi.URLParam(r, "sessionID"), "session_id")
	if !ok {
		return
	}

	session, err := s.sessionRepo.Get(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	results, err := s.resultRepo.ListBySession(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	references := make([]referenceResponse, len(results))
	for i, result := range results {
		references[i] = resultToReference(result)
	}

	writeJSON(w, http.StatusOK, listReferencesResponse{
		SessionID:  sessionID.String(),
		Phase:      string(session.Phase),
		References: references,
		TotalCount: len(references),
	})
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON
// error response. Internal error details are not leaked to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidStructuredQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "session is already in a terminal phase")
	case errors.Is(err, domain.ErrCancelled):
		writeError(w, http.StatusConflict, "operation cancelled")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrSourceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "source unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// validationMessage renders the first field violation from a validator error
// in a client-friendly form.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
		case "oneof":
			return fmt.Sprintf("%s must be one of: %s", strings.ToLower(fe.Field()), strings.ReplaceAll(fe.Param(), " ", ", "))
		case "min":
			return fmt.Sprintf("%s must be at least %s", strings.ToLower(fe.Field()), fe.Param())
		case "max":
			return fmt.Sprintf("%s must be at most %s", strings.ToLower(fe.Field()), fe.Param())
		}
		return fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field()))
	}
	return "invalid request"
}

// parseUUID parses a UUID from a string, writing a 400 error response if
// invalid. The parse error details are not echoed back.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parsePaginationParams extracts page_size and page_token from query
// parameters, applying default and maximum bounds to the page size.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if pageToken := r.URL.Query().Get("page_token"); pageToken != "" {
		decoded, err := base64.StdEncoding.DecodeString(pageToken)
		if err == nil {
			if parsed, parseErr := strconv.Atoi(string(decoded)); parseErr == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	return limit, offset
}

// encodePageToken encodes the next offset as a base64 page token.
// Returns an empty string if there are no more results.
func encodePageToken(offset, limit, totalCount int) string {
	nextOffset := offset + limit
	if nextOffset < totalCount {
		return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(nextOffset)))
	}
	return ""
}
