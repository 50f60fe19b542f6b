package mesh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/medical-research-service/internal/domain"
)

const lookupFixture = `[{"resource": "http://id.nlm.nih.gov/mesh/D006973", "label": "Hypertension"}]`

const detailsFixture = `{
  "descriptor": "http://id.nlm.nih.gov/mesh/D006973",
  "label": "Hypertension",
  "terms": [
    {"label": "Hypertension", "preferred": true},
    {"label": "High Blood Pressure", "preferred": false},
    {"label": "Blood Pressure, High", "preferred": false}
  ],
  "treeNumbers": ["C14.907.489"],
  "scopeNote": "Persistently high systemic arterial blood pressure.",
  "broader": [{"resource": "http://id.nlm.nih.gov/mesh/D002318", "label": "Cardiovascular Diseases"}],
  "narrower": [{"resource": "http://id.nlm.nih.gov/mesh/D006977", "label": "Hypertension, Malignant"}]
}`

func newVocabularyServer(t *testing.T, exactMatches string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/lookup/descriptor":
			if r.URL.Query().Get("match") == "exact" {
				_, _ = w.Write([]byte(exactMatches))
				return
			}
			_, _ = w.Write([]byte(lookupFixture))
		case "/lookup/details":
			require.Equal(t, "D006973", r.URL.Query().Get("descriptor"))
			_, _ = w.Write([]byte(detailsFixture))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestFetchExactMatch(t *testing.T) {
	server := newVocabularyServer(t, lookupFixture)
	defer server.Close()

	client := NewNLMClient(VocabularyConfig{BaseURL: server.URL, RateLimit: 1000})

	descriptor, matchType, err := client.Fetch(context.Background(), "hypertension")
	require.NoError(t, err)

	assert.Equal(t, domain.MeshMatchExact, matchType)
	assert.Equal(t, "D006973", descriptor.DescriptorUI)
	assert.Equal(t, "Hypertension", descriptor.Label)
	assert.Equal(t, []string{"High Blood Pressure", "Blood Pressure, High"}, descriptor.AlternateLabels)
	assert.Equal(t, []string{"C14.907.489"}, descriptor.TreeNumbers)
	assert.Equal(t, []string{"Cardiovascular Diseases"}, descriptor.BroaderTerms)
	assert.Equal(t, []string{"Hypertension, Malignant"}, descriptor.NarrowerTerms)
	assert.NotEmpty(t, descriptor.ScopeNote)
}

func TestFetchFallsBackToPartialMatch(t *testing.T) {
	server := newVocabularyServer(t, `[]`)
	defer server.Close()

	client := NewNLMClient(VocabularyConfig{BaseURL: server.URL, RateLimit: 1000})

	descriptor, matchType, err := client.Fetch(context.Background(), "high blood pressure")
	require.NoError(t, err)

	assert.Equal(t, domain.MeshMatchPartial, matchType)
	assert.Equal(t, "Hypertension", descriptor.Label)
}

func TestFetchNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewNLMClient(VocabularyConfig{BaseURL: server.URL, RateLimit: 1000})

	_, _, err := client.Fetch(context.Background(), "zzzznotaterm")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestFetchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewNLMClient(VocabularyConfig{BaseURL: server.URL, RateLimit: 1000})

	_, _, err := client.Fetch(context.Background(), "hypertension")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}
