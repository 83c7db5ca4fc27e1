// Package pubmed fetches research papers from the NCBI E-utilities API.
package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fitfact-ai/fitfact/pkg/models"
	"github.com/fitfact-ai/fitfact/pkg/tracker"
)

// DefaultBaseURL is the NCBI E-utilities endpoint.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// apiName identifies this client in the API call log.
const apiName = "pubmed"

// maxAuthors limits how many authors are kept per paper.
const maxAuthors = 3

// Config holds the PubMed client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Email   string
	// MinInterval throttles consecutive requests; NCBI allows ~3/s with a
	// key. Zero means 340ms.
	MinInterval time.Duration
	Timeout     time.Duration
	Logger      *zap.Logger
	Tracker     tracker.Tracker
}

// Client talks to the E-utilities esearch/efetch endpoints.
type Client struct {
	baseURL     string
	apiKey      string
	email       string
	minInterval time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
	tracker     tracker.Tracker

	mu       sync.Mutex
	lastCall time.Time
}

// New creates a PubMed client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 340 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		email:       cfg.Email,
		minInterval: cfg.MinInterval,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      cfg.Logger,
		tracker:     cfg.Tracker,
	}
}

type esearchResult struct {
	XMLName xml.Name `xml:"eSearchResult"`
	IDs     []string `xml:"IdList>Id"`
}

type efetchResult struct {
	XMLName  xml.Name `xml:"PubmedArticleSet"`
	Articles []struct {
		MedlineCitation struct {
			PMID    string `xml:"PMID"`
			Article struct {
				Title    string `xml:"ArticleTitle"`
				Abstract struct {
					Text []string `xml:"AbstractText"`
				} `xml:"Abstract"`
				Journal struct {
					Title string `xml:"Title"`
					Issue struct {
						PubDate struct {
							Year  string `xml:"Year"`
							Month string `xml:"Month"`
							Day   string `xml:"Day"`
						} `xml:"PubDate"`
					} `xml:"JournalIssue"`
				} `xml:"Journal"`
				AuthorList struct {
					Authors []struct {
						LastName string `xml:"LastName"`
						Initials string `xml:"Initials"`
					} `xml:"Author"`
				} `xml:"AuthorList"`
			} `xml:"Article"`
		} `xml:"MedlineCitation"`
	} `xml:"PubmedArticle"`
}

// Search runs an esearch for the term and fetches details for the resulting
// PMIDs. A transient failure returns an empty list with the error; the
// caller treats that as "no live results", never as a cache event.
func (c *Client) Search(ctx context.Context, term string, max int) ([]models.Paper, error) {
	if max <= 0 {
		max = 5
	}

	body, err := c.get(ctx, "/esearch.fcgi", url.Values{
		"db":      {"pubmed"},
		"term":    {term},
		"retmax":  {fmt.Sprint(max)},
		"retmode": {"xml"},
	})
	if err != nil {
		return nil, fmt.Errorf("pubmed search: %w", err)
	}

	var search esearchResult
	if err := xml.Unmarshal(body, &search); err != nil {
		return nil, fmt.Errorf("pubmed search: parse response: %w", err)
	}
	if len(search.IDs) == 0 {
		return nil, nil
	}

	return c.Fetch(ctx, search.IDs)
}

// Fetch retrieves article details for a set of PMIDs in one efetch call.
func (c *Client) Fetch(ctx context.Context, pmids []string) ([]models.Paper, error) {
	body, err := c.get(ctx, "/efetch.fcgi", url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"rettype": {"abstract"},
		"retmode": {"xml"},
	})
	if err != nil {
		return nil, fmt.Errorf("pubmed fetch: %w", err)
	}

	var fetched efetchResult
	if err := xml.Unmarshal(body, &fetched); err != nil {
		return nil, fmt.Errorf("pubmed fetch: parse response: %w", err)
	}

	papers := make([]models.Paper, 0, len(fetched.Articles))
	for _, a := range fetched.Articles {
		art := a.MedlineCitation.Article
		p := models.Paper{
			PMID:      a.MedlineCitation.PMID,
			Title:     art.Title,
			Abstract:  strings.Join(art.Abstract.Text, " "),
			Journal:   art.Journal.Title,
			StudyType: "Research Article",
		}
		if p.Abstract == "" {
			p.Abstract = "No abstract available"
		}

		pd := art.Journal.Issue.PubDate
		year, month, day := pd.Year, pd.Month, pd.Day
		if year == "" {
			year = "0000"
		}
		if month == "" {
			month = "01"
		}
		if day == "" {
			day = "01"
		}
		p.PubDate = fmt.Sprintf("%s-%s-%s", year, month, day)

		for i, au := range art.AuthorList.Authors {
			if i >= maxAuthors {
				break
			}
			if au.LastName != "" && au.Initials != "" {
				p.Authors = append(p.Authors, au.LastName+" "+au.Initials)
			}
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// get performs one throttled GET against an E-utilities endpoint and logs
// the call to the tracker.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	c.throttle()

	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	if c.email != "" {
		params.Set("email", c.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	c.record(ctx, endpoint, status, latency)

	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// NCBI serves an HTML page during maintenance windows.
	if strings.Contains(strings.ToLower(string(body[:min(len(body), 256)])), "<html") {
		return nil, fmt.Errorf("pubmed unavailable (maintenance page)")
	}
	return body, nil
}

func (c *Client) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wait := c.minInterval - time.Since(c.lastCall); wait > 0 {
		time.Sleep(wait)
	}
	c.lastCall = time.Now()
}

func (c *Client) record(ctx context.Context, endpoint string, status int, latency time.Duration) {
	if c.tracker == nil {
		return
	}
	err := c.tracker.Record(ctx, models.APICallRecord{
		APIName:    apiName,
		Endpoint:   endpoint,
		StatusCode: status,
		LatencyMs:  latency.Milliseconds(),
	})
	if err != nil {
		c.logger.Warn("api call log failed", zap.Error(err))
	}
}
