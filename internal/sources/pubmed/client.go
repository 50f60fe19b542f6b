package pubmed

import (
	"context"
	"encoding/xml"
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
	// DefaultBaseURL is the base URL for NCBI E-utilities API.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the rate limit without an API key (3 requests/second).
	// With an API key, the limit increases to 10 requests/second.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 20

	// MaxResultsLimit is the maximum results allowed per request by the API.
	MaxResultsLimit = 10000

	// sourceName is the human-readable name for this source.
	sourceName = "PubMed"
)

// Config holds the configuration for the PubMed client.
type Config struct {
	// BaseURL is the base URL for the E-utilities API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key for higher rate limits.
	// Optional but recommended for production use.
	APIKey string

	// Timeout is the request timeout. Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit (3 req/sec) if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the default maximum results per search.
	MaxResults int

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

// applyDefaults applies default values to the config.
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

// Client implements the sources.Source interface for PubMed.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// Compile-time check that Client implements Source.
var _ sources.Source = (*Client)(nil)

// New creates a new PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpCfg := sources.HTTPClientConfig{
		SourceName: sourceName,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.BurstSize,
	}

	return &Client{
		config:     cfg,
		httpClient: sources.NewHTTPClient(httpCfg),
	}
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries PubMed for articles matching the given parameters.
// It performs the two-step E-utilities flow:
// 1. esearch.fcgi retrieves PMIDs matching the query
// 2. efetch.fcgi retrieves full article metadata for those PMIDs
func (c *Client) Search(ctx context.Context, params sources.SearchParams) (*sources.Result, error) {
	if !c.config.Enabled {
		return nil, errors.New("pubmed source is disabled")
	}

	startTime := time.Now()

	searchResult, err := c.esearch(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("esearch failed: %w", err)
	}

	// A phrase-not-found response means no matches, not a failure.
	if searchResult.ErrorList != nil && len(searchResult.ErrorList.PhraseNotFound) > 0 {
		return &sources.Result{
			Results:        []*domain.SearchResult{},
			TotalResults:   0,
			Source:         domain.SourceTypePubMed,
			SearchDuration: time.Since(startTime),
		}, nil
	}

	if len(searchResult.IDList.IDs) == 0 {
		return &sources.Result{
			Results:        []*domain.SearchResult{},
			TotalResults:   searchResult.Count,
			Source:         domain.SourceTypePubMed,
			SearchDuration: time.Since(startTime),
		}, nil
	}

	articles, err := c.efetch(ctx, searchResult.IDList.IDs)
	if err != nil {
		return nil, fmt.Errorf("efetch failed: %w", err)
	}

	results := make([]*domain.SearchResult, 0, len(articles.Articles))
	for _, article := range articles.Articles {
		results = append(results, c.articleToResult(article))
	}

	return &sources.Result{
		Results:        results,
		TotalResults:   searchResult.Count,
		Source:         domain.SourceTypePubMed,
		SearchDuration: time.Since(startTime),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypePubMed
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// esearch performs a search query and returns matching PMIDs.
func (c *Client) esearch(ctx context.Context, params sources.SearchParams) (*ESearchResult, error) {
	u, err := url.Parse(c.config.BaseURL + "/esearch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("term", params.Query)
	q.Set("retmode", "xml")
	q.Set("usehistory", "n")

	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}
	q.Set("retmax", strconv.Itoa(maxResults))

	if params.YearFrom > 0 || params.YearTo > 0 {
		q.Set("datetype", "pdat")
		if params.YearFrom > 0 {
			q.Set("mindate", strconv.Itoa(params.YearFrom))
		}
		if params.YearTo > 0 {
			q.Set("maxdate", strconv.Itoa(params.YearTo))
		}
	}

	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}

	u.RawQuery = q.Encode()

	var result ESearchResult
	if err := c.getXML(ctx, u.String(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// efetch retrieves full article metadata for the given PMIDs.
func (c *Client) efetch(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	if len(pmids) == 0 {
		return &PubmedArticleSet{}, nil
	}

	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")

	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}

	u.RawQuery = q.Encode()

	var result PubmedArticleSet
	if err := c.getXML(ctx, u.String(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// getXML executes a GET request and decodes the XML response into out.
func (c *Client) getXML(ctx context.Context, requestURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 10<<20))

	if resp.StatusCode != http.StatusOK {
		return domain.NewSourceUnavailableError(sourceName, resp.StatusCode, string(body), nil)
	}
	if readErr != nil {
		return fmt.Errorf("failed to read response: %w", readErr)
	}

	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse XML response: %w", err)
	}
	return nil
}

// articleToResult normalizes a PubmedArticle into the common result shape.
func (c *Client) articleToResult(article PubmedArticle) *domain.SearchResult {
	citation := article.MedlineCitation
	pubmedData := article.PubmedData

	r := domain.NewSearchResult(uuid.Nil, domain.SourceTypePubMed)
	r.Title = citation.Article.ArticleTitle
	r.PMID = citation.PMID.Value
	r.DOI = extractDOI(citation.Article, pubmedData)
	r.Abstract = extractAbstract(citation.Article.Abstract)
	r.Authors = extractAuthors(citation.Article.AuthorList)
	r.PublicationYear = extractPublicationYear(citation.Article)
	r.Pages = extractPages(citation.Article.Pagination)
	r.Volume = citation.Article.Journal.JournalIssue.Volume
	r.Issue = citation.Article.Journal.JournalIssue.Issue

	r.Journal = citation.Article.Journal.Title
	if r.Journal == "" {
		r.Journal = citation.Article.Journal.ISOAbbreviation
	}

	if citation.Article.PublicationTypeList != nil {
		types := citation.Article.PublicationTypeList.PublicationTypes
		r.PublicationTypes = make([]string, 0, len(types))
		for _, pt := range types {
			r.PublicationTypes = append(r.PublicationTypes, pt.Value)
		}
		if len(r.PublicationTypes) > 0 {
			r.PublicationType = r.PublicationTypes[0]
		}
	}

	if citation.MeshHeadingList != nil {
		r.MeshTerms = make([]string, 0, len(citation.MeshHeadingList.MeshHeadings))
		for _, mh := range citation.MeshHeadingList.MeshHeadings {
			r.MeshTerms = append(r.MeshTerms, mh.DescriptorName.Value)
		}
	}

	if r.PMID != "" {
		r.URL = "https://pubmed.ncbi.nlm.nih.gov/" + r.PMID + "/"
	}

	return r
}

// extractDOI extracts the DOI from article metadata.
// It checks ELocationID first (more reliable), then ArticleIdList.
func extractDOI(article Article, pubmedData PubmedData) string {
	for _, eloc := range article.ELocationID {
		if eloc.EIdType == "doi" && (eloc.Valid == "" || eloc.Valid == "Y") {
			return eloc.Value
		}
	}

	for _, aid := range pubmedData.ArticleIdList.ArticleIds {
		if aid.IdType == "doi" {
			return aid.Value
		}
	}

	return ""
}

// extractPublicationYear extracts the publication year from the article,
// preferring the electronic ArticleDate over the journal issue PubDate.
func extractPublicationYear(article Article) int {
	for _, ad := range article.ArticleDate {
		if ad.DateType == "epublish" || ad.DateType == "Electronic" || ad.DateType == "" {
			if year, err := strconv.Atoi(ad.Year); err == nil {
				return year
			}
		}
	}

	pubDate := article.Journal.JournalIssue.PubDate
	if pubDate.MedlineDate != "" {
		if year := extractYearFromMedlineDate(pubDate.MedlineDate); year > 0 {
			return year
		}
	}
	if year, err := strconv.Atoi(pubDate.Year); err == nil {
		return year
	}

	return 0
}

// extractYearFromMedlineDate extracts the year from a MedlineDate string.
// MedlineDate can be "2020 Jan-Feb", "2020 Spring", "2020-2021", etc.
func extractYearFromMedlineDate(medlineDate string) int {
	parts := strings.Fields(medlineDate)
	if len(parts) > 0 {
		yearStr := strings.Split(parts[0], "-")[0]
		if year, err := strconv.Atoi(yearStr); err == nil {
			return year
		}
	}
	return 0
}

// extractAbstract concatenates multiple abstract sections into a single string.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}

	if len(abstract.AbstractTexts) == 1 && abstract.AbstractTexts[0].Label == "" {
		return strings.TrimSpace(abstract.AbstractTexts[0].Value)
	}

	var parts []string
	for _, at := range abstract.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " ")
}

// extractAuthors flattens the author list into display names, skipping
// entries PubMed marks invalid.
func extractAuthors(authorList *AuthorList) []string {
	if authorList == nil || len(authorList.Authors) == 0 {
		return nil
	}

	authors := make([]string, 0, len(authorList.Authors))
	for _, a := range authorList.Authors {
		if a.ValidYN == "N" {
			continue
		}

		var name string
		if a.CollectiveName != "" {
			name = a.CollectiveName
		} else if a.LastName != "" {
			if a.Initials != "" {
				name = a.LastName + " " + a.Initials
			} else if a.ForeName != "" {
				name = a.LastName + " " + a.ForeName
			} else {
				name = a.LastName
			}
		}

		if name != "" {
			authors = append(authors, name)
		}
	}

	return authors
}

// extractPages formats the page information.
func extractPages(pagination *Pagination) string {
	if pagination == nil {
		return ""
	}

	if pagination.MedlinePgn != "" {
		return pagination.MedlinePgn
	}

	if pagination.StartPage != "" {
		if pagination.EndPage != "" && pagination.EndPage != pagination.StartPage {
			return pagination.StartPage + "-" + pagination.EndPage
		}
		return pagination.StartPage
	}

	return ""
}
