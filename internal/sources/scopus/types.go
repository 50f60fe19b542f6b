// Package scopus provides a client for the Elsevier Scopus Search API.
//
// Scopus is Elsevier's abstract and citation database. An API key is
// required for every request; the source reports itself disabled without
// one. API documentation: https://dev.elsevier.com/sc_search_tips.html
package scopus

// SearchResponse represents the top-level Scopus search API response.
type SearchResponse struct {
	SearchResults SearchResults `json:"search-results"`
}

// SearchResults contains the search result metadata and entries.
type SearchResults struct {
	TotalResults string  `json:"opensearch:totalResults"`
	StartIndex   string  `json:"opensearch:startIndex"`
	ItemsPerPage string  `json:"opensearch:itemsPerPage"`
	Entries      []Entry `json:"entry"`
}

// Entry represents a single document in the Scopus search results.
type Entry struct {
	Identifier      string       `json:"dc:identifier"` // "SCOPUS_ID:85012345678"
	DOI             string       `json:"prism:doi"`
	Title           string       `json:"dc:title"`
	Creator         string       `json:"dc:creator"` // first author only in STANDARD view
	Description     string       `json:"dc:description"`
	PublicationName string       `json:"prism:publicationName"`
	Volume          string       `json:"prism:volume"`
	IssueID         string       `json:"prism:issueIdentifier"`
	PageRange       string       `json:"prism:pageRange"`
	CoverDate       string       `json:"prism:coverDate"` // "2024-01-15"
	CitedByCount    string       `json:"citedby-count"`
	PubMedID        string       `json:"pubmed-id"`
	SubTypeDesc     string       `json:"subtypeDescription"`
	Authors         *AuthorGroup `json:"author"` // COMPLETE view only
	Links           []Link       `json:"link"`
}

// AuthorGroup wraps the author array in Scopus COMPLETE view responses.
type AuthorGroup struct {
	Authors []Author `json:"author"`
}

// Author represents a single author in the Scopus response.
type Author struct {
	Name      string `json:"authname"` // "Surname G."
	GivenName string `json:"given-name"`
	Surname   string `json:"surname"`
}

// Link is a hypermedia link attached to an entry.
type Link struct {
	Ref  string `json:"@ref"`
	Href string `json:"@href"`
}
