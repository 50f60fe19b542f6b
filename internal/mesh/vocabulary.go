package mesh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/medical-research-service/internal/domain"
	"github.com/helixir/medical-research-service/internal/sources"
)

const (
	// DefaultVocabularyBaseURL is the NLM MeSH RDF lookup service base URL.
	DefaultVocabularyBaseURL = "https://id.nlm.nih.gov/mesh"

	// DefaultVocabularyRateLimit is the default rate limit (3 requests per second).
	DefaultVocabularyRateLimit = 3.0

	// DefaultVocabularyTimeout is the default request timeout.
	DefaultVocabularyTimeout = 15 * time.Second

	// vocabularySourceName identifies the vocabulary service in errors and logs.
	vocabularySourceName = "MeSH Vocabulary"
)

// ErrNoMatch indicates that the vocabulary service has no descriptor for a term.
var ErrNoMatch = errors.New("no descriptor matched")

// VocabularyClient fetches descriptor records from an external controlled
// vocabulary. Implementations must be safe for concurrent use.
type VocabularyClient interface {
	// Fetch resolves a free-text term to a descriptor. The returned match
	// type records whether the term matched a label exactly or partially.
	// Returns ErrNoMatch when the vocabulary has no descriptor for the term.
	Fetch(ctx context.Context, term string) (*domain.MeshDescriptor, domain.MeshMatchType, error)
}

// labelMatch is one entry of the label lookup response.
type labelMatch struct {
	Resource string `json:"resource"`
	Label    string `json:"label"`
}

// descriptorDetails is the detail response for a single descriptor.
type descriptorDetails struct {
	Descriptor  string       `json:"descriptor"`
	Label       string       `json:"label"`
	Terms       []termEntry  `json:"terms"`
	TreeNumbers []string     `json:"treeNumbers"`
	ScopeNote   string       `json:"scopeNote"`
	Broader     []labelMatch `json:"broader"`
	Narrower    []labelMatch `json:"narrower"`
}

// termEntry is an entry term (synonym) attached to a descriptor.
type termEntry struct {
	Label     string `json:"label"`
	Preferred bool   `json:"preferred"`
}

// VocabularyConfig holds configuration for the NLM vocabulary client.
type VocabularyConfig struct {
	// BaseURL is the lookup service base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int
}

// applyDefaults sets default values for unset configuration fields.
func (c *VocabularyConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultVocabularyBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultVocabularyTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultVocabularyRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = int(c.RateLimit)
		if c.BurstSize < 1 {
			c.BurstSize = 1
		}
	}
}

// NLMClient implements VocabularyClient against the NLM MeSH lookup service.
type NLMClient struct {
	config     VocabularyConfig
	httpClient *sources.HTTPClient
}

var _ VocabularyClient = (*NLMClient)(nil)

// NewNLMClient creates a vocabulary client with the given configuration.
func NewNLMClient(cfg VocabularyConfig) *NLMClient {
	cfg.applyDefaults()

	return &NLMClient{
		config: cfg,
		httpClient: sources.NewHTTPClient(sources.HTTPClientConfig{
			SourceName: vocabularySourceName,
			Timeout:    cfg.Timeout,
			RateLimit:  cfg.RateLimit,
			BurstSize:  cfg.BurstSize,
		}),
	}
}

// NewNLMClientWithHTTPClient creates a vocabulary client with a custom HTTP
// client. This is useful for testing with mock servers.
func NewNLMClientWithHTTPClient(cfg VocabularyConfig, httpClient *sources.HTTPClient) *NLMClient {
	cfg.applyDefaults()
	return &NLMClient{config: cfg, httpClient: httpClient}
}

// Fetch resolves a term via the two-step lookup flow: label match to find the
// descriptor identifier, then a detail fetch for labels, tree numbers, and
// broader/narrower relations.
func (c *NLMClient) Fetch(ctx context.Context, term string) (*domain.MeshDescriptor, domain.MeshMatchType, error) {
	matches, err := c.lookupLabel(ctx, term, "exact")
	if err != nil {
		return nil, "", err
	}
	matchType := domain.MeshMatchExact

	if len(matches) == 0 {
		matches, err = c.lookupLabel(ctx, term, "contains")
		if err != nil {
			return nil, "", err
		}
		matchType = domain.MeshMatchPartial
	}

	if len(matches) == 0 {
		return nil, "", ErrNoMatch
	}

	ui := descriptorUI(matches[0].Resource)
	details, err := c.lookupDetails(ctx, ui)
	if err != nil {
		return nil, "", err
	}

	return detailsToDescriptor(ui, matches[0].Label, details), matchType, nil
}

// lookupLabel queries the label lookup endpoint with the given match mode.
func (c *NLMClient) lookupLabel(ctx context.Context, term, match string) ([]labelMatch, error) {
	query := url.Values{}
	query.Set("label", term)
	query.Set("match", match)
	query.Set("limit", "1")

	var matches []labelMatch
	if err := c.getJSON(ctx, "/lookup/descriptor", query, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

// lookupDetails fetches the full descriptor record.
func (c *NLMClient) lookupDetails(ctx context.Context, ui string) (*descriptorDetails, error) {
	query := url.Values{}
	query.Set("descriptor", ui)

	var details descriptorDetails
	if err := c.getJSON(ctx, "/lookup/details", query, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// getJSON executes a GET request and decodes the JSON response into out.
func (c *NLMClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + path
	baseURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return domain.NewSourceUnavailableError(vocabularySourceName, resp.StatusCode, string(body), nil)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// descriptorUI extracts the descriptor identifier from a resource URI like
// "http://id.nlm.nih.gov/mesh/D006973".
func descriptorUI(resource string) string {
	if idx := strings.LastIndex(resource, "/"); idx >= 0 {
		return resource[idx+1:]
	}
	return resource
}

// detailsToDescriptor builds the domain descriptor from the detail response.
func detailsToDescriptor(ui, label string, details *descriptorDetails) *domain.MeshDescriptor {
	if details.Label != "" {
		label = details.Label
	}

	d := domain.NewMeshDescriptor(label)
	d.DescriptorUI = ui
	d.TreeNumbers = details.TreeNumbers
	d.ScopeNote = details.ScopeNote

	for _, t := range details.Terms {
		if t.Preferred || t.Label == "" || strings.EqualFold(t.Label, label) {
			continue
		}
		d.AlternateLabels = append(d.AlternateLabels, t.Label)
	}
	for _, b := range details.Broader {
		if b.Label != "" {
			d.BroaderTerms = append(d.BroaderTerms, b.Label)
		}
	}
	for _, n := range details.Narrower {
		if n.Label != "" {
			d.NarrowerTerms = append(d.NarrowerTerms, n.Label)
		}
	}

	return d
}
