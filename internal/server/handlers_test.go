package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/medical-research-service/internal/domain"
	"github.com/helixir/medical-research-service/internal/repository"
)

type fakeOrchestrator struct {
	startFn  func(ctx context.Context, query domain.StructuredQuery, mode domain.SessionMode, maxResults int) (*domain.ResearchSession, error)
	cancelFn func(ctx context.Context, id uuid.UUID) error
}

func (f *fakeOrchestrator) Start(ctx context.Context, query domain.StructuredQuery, mode domain.SessionMode, maxResults int) (*domain.ResearchSession, error) {
	return f.startFn(ctx, query, mode, maxResults)
}

func (f *fakeOrchestrator) Cancel(ctx context.Context, id uuid.UUID) error {
	return f.cancelFn(ctx, id)
}

type stubSessionRepo struct {
	getFn  func(ctx context.Context, id uuid.UUID) (*domain.ResearchSession, error)
	listFn func(ctx context.Context, filter repository.SessionFilter) ([]*domain.ResearchSession, int64, error)
}

func (s *stubSessionRepo) Create(ctx context.Context, session *domain.ResearchSession) error {
	return nil
}

func (s *stubSessionRepo) Get(ctx context.Context, id uuid.UUID) (*domain.ResearchSession, error) {
	return s.getFn(ctx, id)
}

func (s *stubSessionRepo) Update(ctx context.Context, id uuid.UUID, fn func(*domain.ResearchSession) error) error {
	return nil
}

func (s *stubSessionRepo) UpdatePhase(ctx context.Context, id uuid.UUID, phase domain.SessionPhase, errorMsg string) error {
	return nil
}

func (s *stubSessionRepo) List(ctx context.Context, filter repository.SessionFilter) ([]*domain.ResearchSession, int64, error) {
	return s.listFn(ctx, filter)
}

func (s *stubSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

type stubResultRepo struct {
	listFn func(ctx context.Context, sessionID uuid.UUID) ([]*domain.SearchResult, error)
}

func (s *stubResultRepo) BulkCreate(ctx context.Context, results []*domain.SearchResult) error {
	return nil
}

func (s *stubResultRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.SearchResult, error) {
	return s.listFn(ctx, sessionID)
}

func (s *stubResultRepo) DeleteBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	return 0, nil
}

func testSession() *domain.ResearchSession {
	return domain.NewResearchSession(domain.StructuredQuery{
		Framework:    domain.FrameworkPICO,
		Population:   "adults with type 2 diabetes",
		Intervention: "metformin",
		Outcome:      "HbA1c reduction",
	}, domain.ModeQuick, 20)
}

func newTestServer(orch SessionOrchestrator, sessions *stubSessionRepo, results *stubResultRepo) *Server {
	return NewServer(Config{Address: "127.0.0.1:0"}, orch, sessions, results, nil, zerolog.Nop())
}

func doRequest(t *testing.T, s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStartResearchSession(t *testing.T) {
	t.Run("starts a session", func(t *testing.T) {
		session := testSession()
		orch := &fakeOrchestrator{
			startFn: func(ctx context.Context, query domain.StructuredQuery, mode domain.SessionMode, maxResults int) (*domain.ResearchSession, error) {
				assert.Equal(t, domain.FrameworkPICO, query.Framework)
				assert.Equal(t, "metformin", query.Intervention)
				assert.Equal(t, domain.ModeQuick, mode)
				assert.Equal(t, 20, maxResults)
				return session, nil
			},
		}

		s := newTestServer(orch, &stubSessionRepo{}, &stubResultRepo{})
		body := []byte(`{
			"framework": "pico",
			"population": "adults with type 2 diabetes",
			"intervention": "metformin",
			"outcome": "HbA1c reduction"
		}`)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/research-sessions/", body)
		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp sessionStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, session.ID.String(), resp.SessionID)
		assert.Equal(t, "init", resp.Phase)
		assert.Equal(t, 0, resp.Progress)
		assert.Equal(t, "pico", resp.Framework)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		s := newTestServer(&fakeOrchestrator{}, &stubSessionRepo{}, &stubResultRepo{})
		rec := doRequest(t, s, http.MethodPost, "/api/v1/research-sessions/", []byte(`{not json`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects missing framework", func(t *testing.T) {
		s := newTestServer(&fakeOrchestrator{}, &stubSessionRepo{}, &stubResultRepo{})
		rec := doRequest(t, s, http.MethodPost, "/api/v1/research-sessions/", []byte(`{"population": "adults"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "framework")
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		s := newTestServer(&fakeOrchestrator{}, &stubSessionRepo{}, &stubResultRepo{})
		body := []byte(`{"framework": "pico", "population": "adults", "mode": "exhaustive"}`)
		rec := doRequest(t, s, http.MethodPost, "/api/v1/research-sessions/", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps empty query to 400", func(t *testing.T) {
		orch := &fakeOrchestrator{
			startFn: func(ctx context.Context, query domain.StructuredQuery, mode domain.SessionMode, maxResults int) (*domain.ResearchSession, error) {
				return nil, domain.NewInvalidStructuredQueryError("at least one clause is required")
			},
		}
		s := newTestServer(orch, &stubSessionRepo{}, &stubResultRepo{})
		rec := doRequest(t, s, http.MethodPost, "/api/v1/research-sessions/", []byte(`{"framework": "pico"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "clause")
	})
}

func TestGetResearchSession(t *testing.T) {
	t.Run("returns session status", func(t *testing.T) {
		session := testSession()
		session.Phase = domain.PhaseSearching
		session.Progress = 20

		repo := &stubSessionRepo{
			getFn: func(ctx context.Context, id uuid.UUID) (*domain.ResearchSession, error) {
				assert.Equal(t, session.ID, id)
				return session, nil
			},
		}

		s := newTestServer(&fakeOrchestrator{}, repo, &stubResultRepo{})
		rec := doRequest(t, s, http.MethodGet, "/api/v1/research-sessions/"+session.ID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp sessionStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "searching", resp.Phase)
		assert.Equal(t, 20, resp.Progress)
	})

	t.Run("unknown session returns 404", func(t *testing.T) {
		repo := &stubSessionRepo{
			getFn: func(ctx context.Context, id uuid.UUID) (*domain.ResearchSession, error) {
				return nil, domain.NewNotFoundError("research session", id.String())
			},
		}
		s := newTestServer(&fakeOrchestrator{}, repo, &stubResultRepo{})
		rec := doRequest(t, s, http.MethodGet, "/api/v1/research-sessions/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid UUID returns 400", func(t *testing.T) {
		s := newTestServer(&fakeOrchestrator{}, &stubSessionRepo{}, &stubResultRepo{})
		rec := doRequest(t, s, http.MethodGet, "/api/v1/research-sessions/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListResearchSessions(t *testing.T) {
	t.Run("lists with filters and pagination", func(t *testing.T) {
		sessions := []*domain.ResearchSession{testSession(), testSession()}

		repo := &stubSessionRepo{
			listFn: func(ctx context.Context, filter repository.SessionFilter) ([]*domain.ResearchSession, int64, error) {
				assert.Equal(t, []domain.SessionPhase{domain.PhaseComplete, domain.PhaseFailed}, filter.Phase)
				assert.Equal(t, domain.ModeQuick, filter.Mode)
				assert.Equal(t, 10, filter.Limit)
				return sessions, 25, nil
			},
		}

		s := newTestServer(&fakeOrchestrator{}, repo, &stubResultRepo{})
		rec := doRequest(t, s, http.MethodGet, "/api/v1/research-sessions/?phase=complete,failed&mode=quick&page_size=10", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp listSessionsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Sessions, 2)
		assert.Equal(t, 25, resp.TotalCount)
		assert.NotEmpty(t, resp.NextPageToken)
	})

	t.Run("rejects malformed created_after", func(t *testing.T) {
		s := newTestServer(&fakeOrchestrator{}, &stubSessionRepo{}, &stubResultRepo{})
		rec := doRequest(t, s, http.MethodGet, "/api/v1/research-sessions/?created_after=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown phase filter returns 400", func(t *testing.T) {
		repo := &stubSessionRepo{
			listFn: func(ctx context.Context, filter repository.SessionFilter) ([]*domain.ResearchSession, int64, error) {
				return nil, 0, domain.NewValidationError("phase", "unknown session phase: archived")
			},
		}
		s := newTestServer(&fakeOrchestrator{}, repo, &stubResultRepo{})
		rec := doRequest(t, s, http.MethodGet, "/api/v1/research-sessions/?phase=archived", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCancelResearchSession(t *testing.T) {
	t.Run("cancels a running session", func(t *testing.T) {
		sessionID := uuid.New()
		orch := &fakeOrchestrator{
			cancelFn: func(ctx context.Context, id uuid.UUID) error {
				assert.Equal(t, sessionID, id)
				return nil
			},
		}
		s := newTestServer(orch, &stubSessionRepo{}, &stubResultRepo{})
		rec := doRequest(t, s, http.MethodDelete, "/api/v1/research-sessions/"+sessionID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp cancelSessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "cancelled", resp.Phase)
	})

	t.Run("terminal session returns 409", func(t *testing.T) {
		orch := &fakeOrchestrator{
			cancelFn: func(ctx context.Context, id uuid.UUID) error {
				return domain.NewInvalidTransitionError(domain.PhaseComplete, domain.PhaseCancelled)
			},
		}
		s := newTestServer(orch, &stubSessionRepo{}, &stubResultRepo{})
		rec := doRequest(t, s, http.MethodDelete, "/api/v1/research-sessions/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown session returns 404", func(t *testing.T) {
		orch := &fakeOrchestrator{
			cancelFn: func(ctx context.Context, id uuid.UUID) error {
				return domain.NewNotFoundError("research session", id.String())
			},
		}
		s := newTestServer(orch, &stubSessionRepo{}, &stubResultRepo{})
		rec := doRequest(t, s, http.MethodDelete, "/api/v1/research-sessions/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestGetSessionReferences(t *testing.T) {
	t.Run("returns numbered references", func(t *testing.T) {
		session := testSession()
		session.Phase = domain.PhaseComplete

		count := 128
		result := domain.NewSearchResult(session.ID, domain.SourceTypePubMed)
		result.Title = "Metformin versus placebo in adults with type 2 diabetes"
		result.Authors = []string{"Smith JA", "Jones R"}
		result.Journal = "Diabetes Care"
		result.PublicationYear = 2020
		result.PMID = "12345678"
		result.CitationCount = &count
		result.EvidenceLevel = domain.EvidenceLevelII
		result.CompositeScore = 0.87
		result.ReferenceNumber = 1
		result.VancouverCitation = "Smith JA, Jones R. Metformin versus placebo in adults with type 2 diabetes. Diabetes Care. 2020."

		sessionRepo := &stubSessionRepo{
			getFn: func(ctx context.Context, id uuid.UUID) (*domain.ResearchSession, error) {
				return session, nil
			},
		}
		resultRepo := &stubResultRepo{
			listFn: func(ctx context.Context, sessionID uuid.UUID) ([]*domain.SearchResult, error) {
				assert.Equal(t, session.ID, sessionID)
				return []*domain.SearchResult{result}, nil
			},
		}

		s := newTestServer(&fakeOrchestrator{}, sessionRepo, resultRepo)
		rec := doRequest(t, s, http.MethodGet, "/api/v1/research-sessions/"+session.ID.String()+"/references", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp listReferencesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "complete", resp.Phase)
		require.Len(t, resp.References, 1)
		assert.Equal(t, 1, resp.References[0].ReferenceNumber)
		assert.Equal(t, "pubmed", resp.References[0].Source)
		assert.NotEmpty(t, resp.References[0].VancouverCitation)
	})

	t.Run("unknown session returns 404", func(t *testing.T) {
		sessionRepo := &stubSessionRepo{
			getFn: func(ctx context.Context, id uuid.UUID) (*domain.ResearchSession, error) {
				return nil, domain.NewNotFoundError("research session", id.String())
			},
		}
		s := newTestServer(&fakeOrchestrator{}, sessionRepo, &stubResultRepo{})
		rec := doRequest(t, s, http.MethodGet, "/api/v1/research-sessions/"+uuid.NewString()+"/references", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(&fakeOrchestrator{}, &stubSessionRepo{}, &stubResultRepo{})

	rec := doRequest(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCorrelationIDMiddleware(t *testing.T) {
	s := newTestServer(&fakeOrchestrator{}, &stubSessionRepo{}, &stubResultRepo{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Correlation-ID"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}
