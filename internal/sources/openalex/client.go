package openalex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/medical-research-service/internal/domain"
	"github.com/helixir/medical-research-service/internal/sources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit (10 requests per second,
	// the documented polite pool limit).
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 25

	// MaxResultsLimit is the documented per-page ceiling of the works endpoint.
	MaxResultsLimit = 200

	// sourceName is the human-readable name for this source.
	sourceName = "OpenAlex"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	BaseURL string

	// Mailto is the contact email sent with requests for polite pool access.
	Mailto string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the maximum results to return per search request.
	MaxResults int

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the sources.Source interface for OpenAlex.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// Ensure Client implements the Source interface.
var _ sources.Source = (*Client)(nil)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := sources.NewHTTPClient(sources.HTTPClientConfig{
		SourceName: sourceName,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries OpenAlex for works matching the given parameters.
func (c *Client) Search(ctx context.Context, params sources.SearchParams) (*sources.Result, error) {
	if !c.config.Enabled {
		return nil, errors.New("openalex source is disabled")
	}

	startTime := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewSourceUnavailableError(sourceName, resp.StatusCode, string(body), nil)
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]*domain.SearchResult, 0, len(searchResp.Results))
	for i := range searchResp.Results {
		if r := workToResult(&searchResp.Results[i]); r != nil {
			results = append(results, r)
		}
	}

	return &sources.Result{
		Results:        results,
		TotalResults:   searchResp.Meta.Count,
		Source:         domain.SourceTypeOpenAlex,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeOpenAlex
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the works search request URL.
func (c *Client) buildSearchURL(params sources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/works"

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}

	query := url.Values{}
	query.Set("search", params.Query)
	query.Set("per-page", strconv.Itoa(maxResults))

	var filters []string
	if params.YearFrom > 0 {
		filters = append(filters, fmt.Sprintf("from_publication_date:%d-01-01", params.YearFrom))
	}
	if params.YearTo > 0 {
		filters = append(filters, fmt.Sprintf("to_publication_date:%d-12-31", params.YearTo))
	}
	if len(filters) > 0 {
		query.Set("filter", strings.Join(filters, ","))
	}

	if c.config.Mailto != "" {
		query.Set("mailto", c.config.Mailto)
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// workToResult normalizes an OpenAlex work into the common result shape.
// Returns nil for works without a title.
func workToResult(work *Work) *domain.SearchResult {
	title := work.Title
	if title == "" {
		title = work.DisplayName
	}
	if title == "" {
		return nil
	}

	r := domain.NewSearchResult(uuid.Nil, domain.SourceTypeOpenAlex)
	r.Title = title
	r.DOI = work.DOI
	r.PMID = extractPMID(work.IDs.PMID)
	r.PublicationYear = work.PublicationYear
	r.PublicationType = work.Type
	if work.Type != "" {
		r.PublicationTypes = []string{work.Type}
	}
	r.Abstract = reconstructAbstract(work.AbstractInvertedIndex)

	count := work.CitedByCount
	r.CitationCount = &count

	r.Authors = make([]string, 0, len(work.Authorships))
	for _, a := range work.Authorships {
		if a.Author.DisplayName != "" {
			r.Authors = append(r.Authors, a.Author.DisplayName)
		}
	}

	if work.PrimaryLocation != nil {
		if work.PrimaryLocation.Source != nil {
			r.Journal = work.PrimaryLocation.Source.DisplayName
		}
		r.URL = work.PrimaryLocation.LandingPage
	}
	if r.URL == "" {
		r.URL = work.ID
	}

	r.Volume = work.Biblio.Volume
	r.Issue = work.Biblio.Issue
	if work.Biblio.FirstPage != "" {
		r.Pages = work.Biblio.FirstPage
		if work.Biblio.LastPage != "" && work.Biblio.LastPage != work.Biblio.FirstPage {
			r.Pages += "-" + work.Biblio.LastPage
		}
	}

	return r
}

// extractPMID strips the URL prefix OpenAlex puts on PMIDs.
func extractPMID(pmid string) string {
	pmid = strings.TrimPrefix(pmid, "https://pubmed.ncbi.nlm.nih.gov/")
	return strings.TrimSuffix(pmid, "/")
}

// reconstructAbstract rebuilds abstract text from OpenAlex's inverted index,
// which maps each word to the list of positions where it occurs.
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}

	type positioned struct {
		pos  int
		word string
	}
	var words []positioned
	for word, positions := range index {
		for _, pos := range positions {
			words = append(words, positioned{pos: pos, word: word})
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })

	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.word
	}
	return strings.Join(parts, " ")
}
