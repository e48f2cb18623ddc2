// Package enrich augments audit results with PMS vendor mentions found in
// job postings. A practice hiring for "Dentrix experience" is strong
// evidence of the PMS in use even when the website shows nothing.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	maxJobClues = 5

	// Confidence floor applied when job postings name exactly one vendor.
	jobConfidenceFloor = 0.8
)

// searchVendors are the PMS products worth querying job boards for, with
// word-bounded snippet matchers. Names match the vendor keys used in the
// pattern files so an upgraded likely_pms stays in the same vocabulary,
// and the slice order fixes clue ordering in outputs.
var searchVendors = []struct {
	name string
	re   *regexp.Regexp
}{
	{"open_dental", regexp.MustCompile(`(?i)\bopen\s*dental\b`)},
	{"dentrix", regexp.MustCompile(`(?i)\bdentrix\b`)},
	{"eaglesoft", regexp.MustCompile(`(?i)\beaglesoft\b`)},
}

// SearchResult is one hit from a web-search provider.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher issues one web-search query and returns ranked results.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

// Options configures an Enricher.
type Options struct {
	QueriesPerSec float64
	ResultCount   int
}

// Enricher runs paced job-posting searches and merges the findings into
// audit result rows.
type Enricher struct {
	searcher Searcher
	limiter  *rate.Limiter
	count    int
	logger   *zap.Logger
}

// New builds an Enricher around the given search provider.
func New(searcher Searcher, opts Options, logger *zap.Logger) *Enricher {
	qps := opts.QueriesPerSec
	if qps <= 0 {
		qps = 2.5
	}
	count := opts.ResultCount
	if count <= 0 {
		count = 5
	}
	return &Enricher{
		searcher: searcher,
		limiter:  rate.NewLimiter(rate.Limit(qps), 1),
		count:    count,
		logger:   logger,
	}
}

// Finding is the enrichment outcome for one practice.
type Finding struct {
	JobClues   []string
	LikelyPMS  string
	Confidence float64
	Upgraded   bool
}

// buildQuery quotes the practice name and ORs the headline vendors.
func buildQuery(name string) string {
	return fmt.Sprintf(`%q ("Open Dental" OR Dentrix OR Eaglesoft)`, name)
}

// EnrichPractice searches job postings for one practice and returns any
// vendor clues. priorPMS and priorConf are the website-derived guess; the
// finding upgrades them only when the job evidence is unambiguous.
func (e *Enricher) EnrichPractice(ctx context.Context, name, priorPMS string, priorConf float64) (Finding, error) {
	f := Finding{LikelyPMS: priorPMS, Confidence: priorConf}
	if strings.TrimSpace(name) == "" {
		return f, nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return f, err
	}

	results, err := e.searcher.Search(ctx, buildQuery(name), e.count)
	if err != nil {
		return f, fmt.Errorf("search %q: %w", name, err)
	}

	seen := make(map[string]bool)
	for _, res := range results {
		if len(f.JobClues) >= maxJobClues {
			break
		}
		blob := res.Title + " " + res.Snippet
		for _, v := range searchVendors {
			if v.re.MatchString(blob) {
				f.JobClues = append(f.JobClues, v.name+":JOBS:"+res.URL)
				seen[v.name] = true
				if len(f.JobClues) >= maxJobClues {
					break
				}
			}
		}
	}

	if len(seen) == 1 {
		for vendor := range seen {
			f.LikelyPMS = vendor
		}
		if f.Confidence < jobConfidenceFloor {
			f.Confidence = jobConfidenceFloor
		}
		f.Upgraded = true
	}
	return f, nil
}

// bingSearcher talks to the Bing Web Search v7 JSON API.
type bingSearcher struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// serpSearcher talks to the SerpAPI organic-results JSON API.
type serpSearcher struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewSearcher returns a provider-specific Searcher. Supported providers
// are "bing" and "serpapi".
func NewSearcher(provider, endpoint, apiKey string) (Searcher, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	switch provider {
	case "bing":
		if endpoint == "" {
			endpoint = "https://api.bing.microsoft.com/v7.0/search"
		}
		return &bingSearcher{endpoint: endpoint, apiKey: apiKey, client: client}, nil
	case "serpapi":
		if endpoint == "" {
			endpoint = "https://serpapi.com/search.json"
		}
		return &serpSearcher{endpoint: endpoint, apiKey: apiKey, client: client}, nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", provider)
	}
}

func (b *bingSearcher) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	u := b.endpoint + "?q=" + url.QueryEscape(query) + "&count=" + strconv.Itoa(count) +
		"&mkt=en-US&responseFilter=Webpages"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", b.apiKey)

	var payload struct {
		WebPages struct {
			Value []struct {
				Name    string `json:"name"`
				URL     string `json:"url"`
				Snippet string `json:"snippet"`
			} `json:"value"`
		} `json:"webPages"`
	}
	if err := doJSON(b.client, req, &payload); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(payload.WebPages.Value))
	for _, v := range payload.WebPages.Value {
		results = append(results, SearchResult{Title: v.Name, URL: v.URL, Snippet: v.Snippet})
	}
	return results, nil
}

func (s *serpSearcher) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	u := s.endpoint + "?engine=google&q=" + url.QueryEscape(query) +
		"&num=" + strconv.Itoa(count) + "&api_key=" + url.QueryEscape(s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := doJSON(s.client, req, &payload); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(payload.OrganicResults))
	for _, v := range payload.OrganicResults {
		results = append(results, SearchResult{Title: v.Title, URL: v.Link, Snippet: v.Snippet})
	}
	return results, nil
}

func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("search API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
