// Package cochrane provides a client for the Cochrane Library reviews API.
//
// The Cochrane Database of Systematic Reviews publishes systematic reviews
// of healthcare interventions. Every record it returns is a review, so the
// normalized results carry the "Review" publication type used by evidence
// classification downstream.
package cochrane

// SearchResponse represents the top-level reviews search response.
type SearchResponse struct {
	Total   int      `json:"total"`
	Offset  int      `json:"offset"`
	Reviews []Review `json:"reviews"`
}

// Review represents a single Cochrane review record.
type Review struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Abstract      string   `json:"abstract"`
	DOI           string   `json:"doi"`
	Authors       []string `json:"authors"`
	PublishedYear int      `json:"publishedYear"`
	Issue         string   `json:"issue"`
	URL           string   `json:"url"`
}
