package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AuthorList normalizes the authors field from upstream sources, which is
// sometimes a single string and sometimes a list. It always unmarshals into a
// canonical list of author names.
type AuthorList []string

// UnmarshalJSON accepts either a JSON string or an array of strings.
func (a *AuthorList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*a = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*a = nil
		} else {
			*a = []string{single}
		}
		return nil
	}
	return fmt.Errorf("authors: expected string or list of strings, got %s", data)
}

// MarshalJSON always emits the canonical list form.
func (a AuthorList) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string(a))
}

// Paper is a research paper retrieved from the literature database. The cache
// only owns its usage counters; the content is fetched externally.
type Paper struct {
	ID           int64      `json:"id"`
	PMID         string     `json:"pmid"`
	Title        string     `json:"title"`
	Abstract     string     `json:"abstract"`
	Authors      AuthorList `json:"authors"`
	Journal      string     `json:"journal"`
	PubDate      string     `json:"publication_date"`
	StudyType    string     `json:"study_type,omitempty"`
	TimesUsed    int64      `json:"times_used"`
	LastAccessed time.Time  `json:"last_accessed"`
}

// Year returns the four-digit publication year, or "n.d." when unknown.
func (p *Paper) Year() string {
	if len(p.PubDate) >= 4 {
		return p.PubDate[:4]
	}
	return "n.d."
}
