package scopus

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
	// DefaultBaseURL is the default Scopus API base URL.
	DefaultBaseURL = "https://api.elsevier.com/content"

	// DefaultRateLimit is the default rate limit (5 requests per second).
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 25

	// MaxResultsLimit is the documented per-request ceiling for the search API.
	MaxResultsLimit = 200

	// apiKeyHeader is the HTTP header name for the Scopus API key.
	apiKeyHeader = "X-ELS-APIKey"

	// sourceName is the human-readable name for this source.
	sourceName = "Scopus"
)

// Config holds configuration for the Scopus client.
type Config struct {
	// BaseURL is the Scopus API base URL.
	BaseURL string

	// APIKey is the Elsevier API key. Required for all requests; the
	// source is treated as disabled without one.
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

// Client implements the sources.Source interface for Scopus.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// Ensure Client implements the Source interface.
var _ sources.Source = (*Client)(nil)

// New creates a new Scopus client with the given configuration.
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

// NewWithHTTPClient creates a new Scopus client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries Scopus for documents matching the given parameters.
func (c *Client) Search(ctx context.Context, params sources.SearchParams) (*sources.Result, error) {
	if !c.IsEnabled() {
		return nil, errors.New("scopus source is disabled")
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

	results := make([]*domain.SearchResult, 0, len(searchResp.SearchResults.Entries))
	for i := range searchResp.SearchResults.Entries {
		if r := entryToResult(&searchResp.SearchResults.Entries[i]); r != nil {
			results = append(results, r)
		}
	}

	totalResults, _ := strconv.Atoi(searchResp.SearchResults.TotalResults)

	return &sources.Result{
		Results:        results,
		TotalResults:   totalResults,
		Source:         domain.SourceTypeScopus,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeScopus
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled. Scopus requires an API
// key, so a missing key disables the source.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled && c.config.APIKey != ""
}

// buildSearchURL constructs the Scopus search request URL.
func (c *Client) buildSearchURL(params sources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/search/scopus"

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}

	queryExpr := fmt.Sprintf("TITLE-ABS-KEY(%s)", params.Query)
	if params.YearFrom > 0 {
		queryExpr += fmt.Sprintf(" AND PUBYEAR > %d", params.YearFrom-1)
	}
	if params.YearTo > 0 {
		queryExpr += fmt.Sprintf(" AND PUBYEAR < %d", params.YearTo+1)
	}

	query := url.Values{}
	query.Set("query", queryExpr)
	query.Set("count", strconv.Itoa(maxResults))
	query.Set("view", "COMPLETE")
	baseURL.RawQuery = query.Encode()

	return baseURL.String(), nil
}

// entryToResult normalizes a Scopus entry into the common result shape.
// Returns nil for entries without a title.
func entryToResult(entry *Entry) *domain.SearchResult {
	if entry.Title == "" {
		return nil
	}

	r := domain.NewSearchResult(uuid.Nil, domain.SourceTypeScopus)
	r.Title = entry.Title
	r.DOI = entry.DOI
	r.PMID = entry.PubMedID
	r.Abstract = entry.Description
	r.Journal = entry.PublicationName
	r.Volume = entry.Volume
	r.Issue = entry.IssueID
	r.Pages = entry.PageRange
	r.PublicationType = entry.SubTypeDesc
	if entry.SubTypeDesc != "" {
		r.PublicationTypes = []string{entry.SubTypeDesc}
	}

	if count, err := strconv.Atoi(entry.CitedByCount); err == nil {
		r.CitationCount = &count
	}

	if len(entry.CoverDate) >= 4 {
		if year, err := strconv.Atoi(entry.CoverDate[:4]); err == nil {
			r.PublicationYear = year
		}
	}

	r.Authors = extractAuthors(entry)

	for _, link := range entry.Links {
		if link.Ref == "scopus" {
			r.URL = link.Href
			break
		}
	}

	return r
}

// extractAuthors prefers the COMPLETE view author list, falling back to the
// first-author-only dc:creator field of the STANDARD view.
func extractAuthors(entry *Entry) []string {
	if entry.Authors != nil && len(entry.Authors.Authors) > 0 {
		authors := make([]string, 0, len(entry.Authors.Authors))
		for _, a := range entry.Authors.Authors {
			if a.Name != "" {
				authors = append(authors, a.Name)
			}
		}
		if len(authors) > 0 {
			return authors
		}
	}
	if entry.Creator != "" {
		return []string{entry.Creator}
	}
	return nil
}
