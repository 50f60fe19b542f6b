// Package semanticscholar provides a client for the Semantic Scholar
// Academic Graph API.
//
// The public tier works without an API key at a reduced rate limit; an
// optional key raises the quota. API documentation:
// https://api.semanticscholar.org/api-docs/graph
package semanticscholar

// SearchResponse represents the response from the paper search endpoint.
type SearchResponse struct {
	Total  int     `json:"total"`
	Offset int     `json:"offset"`
	Next   int     `json:"next"`
	Data   []Paper `json:"data"`
}

// Paper represents a paper in the Semantic Scholar Academic Graph.
type Paper struct {
	PaperID          string       `json:"paperId"`
	Title            string       `json:"title"`
	Abstract         string       `json:"abstract"`
	Year             int          `json:"year"`
	Venue            string       `json:"venue"`
	URL              string       `json:"url"`
	CitationCount    int          `json:"citationCount"`
	PublicationTypes []string     `json:"publicationTypes"`
	ExternalIDs      *ExternalIDs `json:"externalIds"`
	Authors          []Author     `json:"authors"`
	Journal          *Journal     `json:"journal"`
}

// ExternalIDs contains cross-database identifiers for a paper.
type ExternalIDs struct {
	DOI      string `json:"DOI"`
	PubMed   string `json:"PubMed"`
	CorpusID int    `json:"CorpusId"`
}

// Author represents a paper author.
type Author struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

// Journal contains journal publication details.
type Journal struct {
	Name   string `json:"name"`
	Volume string `json:"volume"`
	Pages  string `json:"pages"`
}
