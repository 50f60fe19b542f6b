package cochrane

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
	// DefaultBaseURL is the default Cochrane Library API base URL.
	DefaultBaseURL = "https://www.cochranelibrary.com/api/rest"

	// DefaultRateLimit is the default rate limit (2 requests per second).
	DefaultRateLimit = 2.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 25

	// MaxResultsLimit is the per-request ceiling for the reviews endpoint.
	MaxResultsLimit = 100

	// journalName is the journal attributed to every Cochrane review.
	journalName = "Cochrane Database of Systematic Reviews"

	// sourceName is the human-readable name for this source.
	sourceName = "Cochrane Library"
)

// Config holds configuration for the Cochrane client.
type Config struct {
	// BaseURL is the Cochrane Library API base URL.
	BaseURL string

	// APIKey is the optional API key for authenticated access.
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

// Client implements the sources.Source interface for the Cochrane Library.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// Ensure Client implements the Source interface.
var _ sources.Source = (*Client)(nil)

// New creates a new Cochrane client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := sources.NewHTTPClient(sources.HTTPClientConfig{
		SourceName:   sourceName,
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		BurstSize:    cfg.BurstSize,
		APIKey:       cfg.APIKey,
		APIKeyHeader: "X-API-Key",
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new Cochrane client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries the Cochrane Library for reviews matching the given parameters.
func (c *Client) Search(ctx context.Context, params sources.SearchParams) (*sources.Result, error) {
	if !c.config.Enabled {
		return nil, errors.New("cochrane source is disabled")
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

	results := make([]*domain.SearchResult, 0, len(searchResp.Reviews))
	for i := range searchResp.Reviews {
		if r := reviewToResult(&searchResp.Reviews[i]); r != nil {
			results = append(results, r)
		}
	}

	return &sources.Result{
		Results:        results,
		TotalResults:   searchResp.Total,
		Source:         domain.SourceTypeCochrane,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeCochrane
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the reviews search request URL.
func (c *Client) buildSearchURL(params sources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/reviews/search"

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}

	query := url.Values{}
	query.Set("q", params.Query)
	query.Set("limit", strconv.Itoa(maxResults))
	if params.YearFrom > 0 {
		query.Set("yearFrom", strconv.Itoa(params.YearFrom))
	}
	if params.YearTo > 0 {
		query.Set("yearTo", strconv.Itoa(params.YearTo))
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// reviewToResult normalizes a Cochrane review into the common result shape.
// Returns nil for records without a title.
func reviewToResult(review *Review) *domain.SearchResult {
	if review.Title == "" {
		return nil
	}

	r := domain.NewSearchResult(uuid.Nil, domain.SourceTypeCochrane)
	r.Title = review.Title
	r.Abstract = review.Abstract
	r.DOI = review.DOI
	r.Authors = review.Authors
	r.PublicationYear = review.PublishedYear
	r.Journal = journalName
	r.Issue = review.Issue
	r.URL = review.URL

	// Cochrane publishes systematic reviews exclusively.
	r.PublicationType = "Review"
	r.PublicationTypes = []string{"Review"}
	r.EvidenceLevel = domain.EvidenceLevelI

	return r
}
