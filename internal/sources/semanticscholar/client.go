package semanticscholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/medical-research-service/internal/domain"
	"github.com/helixir/medical-research-service/internal/sources"
)

const (
	// DefaultBaseURL is the default Semantic Scholar Graph API base URL.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the public tier rate limit (1 request per second).
	DefaultRateLimit = 1.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 1

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 25

	// MaxResultsLimit is the documented per-request ceiling of the search endpoint.
	MaxResultsLimit = 100

	// apiKeyHeader is the HTTP header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// searchFields lists the paper fields requested from the API.
	searchFields = "title,abstract,year,venue,url,citationCount,publicationTypes,externalIds,authors,journal"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"
)

// Config holds configuration for the Semantic Scholar client.
type Config struct {
	// BaseURL is the Graph API base URL.
	BaseURL string

	// APIKey is the optional Semantic Scholar API key for higher rate limits.
	APIKey string

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

// Client implements the sources.Source interface for Semantic Scholar.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// Ensure Client implements the Source interface.
var _ sources.Source = (*Client)(nil)

// New creates a new Semantic Scholar client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := sources.NewHTTPClient(sources.HTTPClientConfig{
		SourceName:   sourceName,
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		BurstSize:    cfg.BurstSize,
		APIKey:       cfg.APIKey,
		APIKeyHeader: apiKeyHeader,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new Semantic Scholar client with a custom HTTP
// client. This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries Semantic Scholar for papers matching the given parameters.
func (c *Client) Search(ctx context.Context, params sources.SearchParams) (*sources.Result, error) {
	if !c.config.Enabled {
		return nil, errors.New("semantic scholar source is disabled")
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

	results := make([]*domain.SearchResult, 0, len(searchResp.Data))
	for i := range searchResp.Data {
		if r := paperToResult(&searchResp.Data[i]); r != nil {
			results = append(results, r)
		}
	}

	return &sources.Result{
		Results:        results,
		TotalResults:   searchResp.Total,
		Source:         domain.SourceTypeSemanticScholar,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the paper search request URL.
func (c *Client) buildSearchURL(params sources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/paper/search"

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}

	query := url.Values{}
	query.Set("query", params.Query)
	query.Set("limit", strconv.Itoa(maxResults))
	query.Set("fields", searchFields)

	if params.YearFrom > 0 || params.YearTo > 0 {
		query.Set("year", formatYearRange(params.YearFrom, params.YearTo))
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// formatYearRange renders the API's year filter: "2020-2024", "2020-", "-2024".
func formatYearRange(from, to int) string {
	switch {
	case from > 0 && to > 0:
		return fmt.Sprintf("%d-%d", from, to)
	case from > 0:
		return fmt.Sprintf("%d-", from)
	default:
		return fmt.Sprintf("-%d", to)
	}
}

// paperToResult normalizes a Semantic Scholar paper into the common result
// shape. Returns nil for papers without a title.
func paperToResult(paper *Paper) *domain.SearchResult {
	if paper.Title == "" {
		return nil
	}

	r := domain.NewSearchResult(uuid.Nil, domain.SourceTypeSemanticScholar)
	r.Title = paper.Title
	r.Abstract = paper.Abstract
	r.PublicationYear = paper.Year
	r.URL = paper.URL
	r.PublicationTypes = paper.PublicationTypes
	if len(paper.PublicationTypes) > 0 {
		r.PublicationType = paper.PublicationTypes[0]
	}

	count := paper.CitationCount
	r.CitationCount = &count

	if paper.ExternalIDs != nil {
		r.DOI = paper.ExternalIDs.DOI
		r.PMID = paper.ExternalIDs.PubMed
	}

	r.Authors = make([]string, 0, len(paper.Authors))
	for _, a := range paper.Authors {
		if a.Name != "" {
			r.Authors = append(r.Authors, a.Name)
		}
	}

	r.Journal = paper.Venue
	if paper.Journal != nil {
		if paper.Journal.Name != "" {
			r.Journal = paper.Journal.Name
		}
		r.Volume = paper.Journal.Volume
		r.Pages = paper.Journal.Pages
	}

	return r
}
