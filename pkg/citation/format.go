// Package citation formats research paper references.
package citation

import (
	"fmt"
	"strings"

	"github.com/fitfact-ai/fitfact/pkg/models"
)

// titleLimit truncates long titles in the numbered reference list.
const titleLimit = 80

// APA formats a paper as an APA-style reference.
func APA(p models.Paper) string {
	authors := strings.Join(p.Authors, ", ")
	if authors == "" {
		authors = "Unknown"
	}
	return fmt.Sprintf("%s (%s). %s. %s. PMID: %s", authors, p.Year(), p.Title, journalOr(p), p.PMID)
}

// Inline formats a paper as an in-text citation.
func Inline(p models.Paper) string {
	return fmt.Sprintf("(%s et al., %s, PMID: %s)", firstAuthorSurname(p), p.Year(), p.PMID)
}

// ReferenceList renders a numbered reference section with PubMed links.
func ReferenceList(papers []models.Paper) string {
	if len(papers) == 0 {
		return ""
	}
	entries := make([]string, 0, len(papers))
	for i, p := range papers {
		title := p.Title
		if len(title) > titleLimit {
			title = title[:titleLimit] + "..."
		}
		entries = append(entries, fmt.Sprintf("[%d] %s et al. (%s). %s [PubMed: https://pubmed.ncbi.nlm.nih.gov/%s/]",
			i+1, firstAuthorSurname(p), p.Year(), title, p.PMID))
	}
	return strings.Join(entries, "\n\n")
}

func firstAuthorSurname(p models.Paper) string {
	if len(p.Authors) == 0 {
		return "Unknown"
	}
	fields := strings.Fields(p.Authors[0])
	if len(fields) == 0 {
		return "Unknown"
	}
	return fields[0]
}

func journalOr(p models.Paper) string {
	if p.Journal == "" {
		return "Unknown Journal"
	}
	return p.Journal
}
