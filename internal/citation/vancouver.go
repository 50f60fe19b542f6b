// Package citation renders normalized bibliographic records as Vancouver
// style citation strings.
package citation

import (
	"fmt"
	"strings"

	"github.com/helixir/medical-research-service/internal/domain"
)

// maxNamedAuthors is the Vancouver author limit: up to six named authors,
// seventh and beyond collapse to "et al".
const maxNamedAuthors = 6

// Vancouver renders a result as a Vancouver style citation:
//
//	Authors. Title. Journal. Year;Volume(Issue):Pages. doi: DOI
//
// Missing fields are omitted together with their punctuation, so a record
// without volume or pages never produces stray separators. The function is
// pure and deterministic, which makes the rendered string safe to cache.
func Vancouver(r *domain.SearchResult) string {
	parts := make([]string, 0, 5)

	if authors := formatAuthors(r.Authors); authors != "" {
		parts = append(parts, authors)
	}
	if title := strings.TrimSpace(r.Title); title != "" {
		parts = append(parts, title)
	}
	if journal := strings.TrimSpace(r.Journal); journal != "" {
		parts = append(parts, journal)
	}
	if imprint := formatImprint(r); imprint != "" {
		parts = append(parts, imprint)
	}
	if r.DOI != "" {
		parts = append(parts, "doi: "+domain.NormalizeDOI(r.DOI))
	} else if r.PMID != "" {
		parts = append(parts, "PMID: "+r.PMID)
	}

	return joinSentences(parts)
}

// formatAuthors joins up to maxNamedAuthors names with commas, collapsing any
// further authors into "et al".
func formatAuthors(authors []string) string {
	named := make([]string, 0, maxNamedAuthors)
	for _, a := range authors {
		if a = strings.TrimSpace(a); a != "" {
			named = append(named, a)
		}
	}
	if len(named) == 0 {
		return ""
	}
	if len(named) > maxNamedAuthors {
		named = append(named[:maxNamedAuthors], "et al")
	}
	return strings.Join(named, ", ")
}

// formatImprint builds the Year;Volume(Issue):Pages group, dropping each
// element and its punctuation when absent.
func formatImprint(r *domain.SearchResult) string {
	var b strings.Builder

	if r.PublicationYear > 0 {
		fmt.Fprintf(&b, "%d", r.PublicationYear)
	}
	if r.Volume != "" {
		if b.Len() > 0 {
			b.WriteByte(';')
		}
		b.WriteString(r.Volume)
		if r.Issue != "" {
			fmt.Fprintf(&b, "(%s)", r.Issue)
		}
		if r.Pages != "" {
			b.WriteByte(':')
			b.WriteString(r.Pages)
		}
	}

	return b.String()
}

// joinSentences joins parts with ". ", avoiding doubled periods when a part
// already carries terminal punctuation, and closes the citation with one.
func joinSentences(parts []string) string {
	var b strings.Builder
	for i, part := range parts {
		b.WriteString(part)
		if i < len(parts)-1 {
			if endsWithTerminal(part) {
				b.WriteByte(' ')
			} else {
				b.WriteString(". ")
			}
		}
	}
	out := b.String()
	if out != "" && !endsWithTerminal(out) {
		out += "."
	}
	return out
}

func endsWithTerminal(s string) bool {
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "?") || strings.HasSuffix(s, "!")
}
