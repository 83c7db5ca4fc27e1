package pubmed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const esearchXML = `<?xml version="1.0"?>
<eSearchResult>
	<Count>2</Count>
	<IdList>
		<Id>11111111</Id>
		<Id>22222222</Id>
	</IdList>
</eSearchResult>`

const efetchXML = `<?xml version="1.0"?>
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation>
			<PMID>11111111</PMID>
			<Article>
				<ArticleTitle>Creatine and strength gains</ArticleTitle>
				<Abstract>
					<AbstractText>Creatine improved strength.</AbstractText>
					<AbstractText>Effects were dose dependent.</AbstractText>
				</Abstract>
				<Journal>
					<Title>J Strength Cond Res</Title>
					<JournalIssue>
						<PubDate><Year>2021</Year><Month>03</Month></PubDate>
					</JournalIssue>
				</Journal>
				<AuthorList>
					<Author><LastName>Smith</LastName><Initials>JA</Initials></Author>
					<Author><LastName>Jones</LastName><Initials>KL</Initials></Author>
					<Author><LastName>Lee</LastName><Initials>MH</Initials></Author>
					<Author><LastName>Extra</LastName><Initials>XX</Initials></Author>
				</AuthorList>
			</Article>
		</MedlineCitation>
	</PubmedArticle>
	<PubmedArticle>
		<MedlineCitation>
			<PMID>22222222</PMID>
			<Article>
				<ArticleTitle>Study without abstract</ArticleTitle>
				<Journal><Title>Sports Med</Title></Journal>
			</Article>
		</MedlineCitation>
	</PubmedArticle>
</PubmedArticleSet>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:     srv.URL,
		MinInterval: time.Millisecond,
	})
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/esearch.fcgi":
			if got := r.URL.Query().Get("term"); got != "creatine strength" {
				t.Errorf("unexpected term: %q", got)
			}
			if got := r.URL.Query().Get("retmax"); got != "5" {
				t.Errorf("unexpected retmax: %q", got)
			}
			w.Write([]byte(esearchXML))
		case "/efetch.fcgi":
			if got := r.URL.Query().Get("id"); got != "11111111,22222222" {
				t.Errorf("unexpected ids: %q", got)
			}
			w.Write([]byte(efetchXML))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	})

	papers, err := c.Search(context.Background(), "creatine strength", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(papers) != 2 {
		t.Fatalf("expected 2 papers, got %d", len(papers))
	}

	p := papers[0]
	if p.PMID != "11111111" || p.Title != "Creatine and strength gains" {
		t.Errorf("unexpected paper: %+v", p)
	}
	if p.Abstract != "Creatine improved strength. Effects were dose dependent." {
		t.Errorf("abstract sections should join: %q", p.Abstract)
	}
	if len(p.Authors) != maxAuthors {
		t.Errorf("expected %d authors, got %v", maxAuthors, p.Authors)
	}
	if p.Authors[0] != "Smith JA" {
		t.Errorf("unexpected author format: %q", p.Authors[0])
	}
	if p.PubDate != "2021-03-01" {
		t.Errorf("unexpected pub date: %q", p.PubDate)
	}

	// Missing abstract gets the placeholder.
	if papers[1].Abstract != "No abstract available" {
		t.Errorf("unexpected fallback abstract: %q", papers[1].Abstract)
	}
}

func TestSearchNoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><eSearchResult><IdList></IdList></eSearchResult>`))
	})

	papers, err := c.Search(context.Background(), "nonexistent topic", 5)
	if err != nil {
		t.Fatal(err)
	}
	if papers != nil {
		t.Errorf("expected no papers, got %v", papers)
	}
}

func TestSearchServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if _, err := c.Search(context.Background(), "creatine", 5); err == nil {
		t.Fatal("expected error on server failure")
	}
}

func TestSearchMaintenancePage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Down for maintenance</body></html>"))
	})

	if _, err := c.Search(context.Background(), "creatine", 5); err == nil {
		t.Fatal("expected error for HTML maintenance page")
	}
}

func TestGetSendsCredentials(t *testing.T) {
	var gotKey, gotEmail string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api_key")
		gotEmail = r.URL.Query().Get("email")
		w.Write([]byte(`<?xml version="1.0"?><eSearchResult><IdList></IdList></eSearchResult>`))
	}))
	t.Cleanup(srv.Close)

	c := New(Config{BaseURL: srv.URL, APIKey: "k123", Email: "dev@example.com", MinInterval: time.Millisecond})
	if _, err := c.Search(context.Background(), "creatine", 5); err != nil {
		t.Fatal(err)
	}
	if gotKey != "k123" || gotEmail != "dev@example.com" {
		t.Errorf("credentials not sent: key=%q email=%q", gotKey, gotEmail)
	}
}

func TestThrottle(t *testing.T) {
	c := New(Config{MinInterval: 30 * time.Millisecond})

	start := time.Now()
	c.throttle()
	c.throttle()
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("second call should wait for the interval, elapsed %v", elapsed)
	}
}
