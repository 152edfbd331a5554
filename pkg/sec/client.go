// Package sec searches SEC EDGAR full-text filings for insider activity
// (Forms 3, 4, and 5).
package sec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://efts.sec.gov/LATEST"

// Client searches EDGAR filings.
type Client interface {
	SearchInsiderFilings(ctx context.Context, q InsiderQuery) (*FilingResults, error)
}

// InsiderQuery looks for section 16 filings naming a person.
type InsiderQuery struct {
	// Name of the reporting person, quoted as an exact phrase.
	Name string
	// Company narrows to filings mentioning the issuer. Optional.
	Company string
}

// Filing is one matched EDGAR document.
type Filing struct {
	ID     string `json:"_id"`
	Source struct {
		Form        string   `json:"form_type"`
		FileDate    string   `json:"file_date"`
		DisplayName []string `json:"display_names"`
	} `json:"_source"`
}

// FilingResults is the search response.
type FilingResults struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []Filing `json:"hits"`
	} `json:"hits"`
}

// HasInsiderFilings reports whether any section 16 filing matched.
func (r *FilingResults) HasInsiderFilings() bool {
	return r.Hits.Total.Value > 0
}

// Companies extracts issuer display names from the matched filings.
func (r *FilingResults) Companies() []string {
	seen := make(map[string]bool)
	var out []string
	for _, hit := range r.Hits.Hits {
		for _, name := range hit.Source.DisplayName {
			// Display names look like "ACME CORP (ACME) (CIK 0000123456)".
			if i := strings.Index(name, "  (CIK"); i > 0 {
				name = name[:i]
			}
			name = strings.TrimSpace(name)
			if name != "" && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

// APIError is a non-2xx response from EDGAR.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sec: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus implements the status interface retry predicates look for.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second. EDGAR enforces 10
// requests per second per client.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	userAgent string
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates an EDGAR search client. EDGAR requires a User-Agent
// identifying the caller with a contact address, e.g.
// "prospect-cli admin@example.com".
func NewClient(userAgent string, opts ...Option) Client {
	c := &httpClient{
		userAgent: userAgent,
		baseURL:   defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(8), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchInsiderFilings(ctx context.Context, q InsiderQuery) (*FilingResults, error) {
	if q.Name == "" {
		return nil, eris.New("sec: name is required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "sec: rate limit wait")
		}
	}

	query := fmt.Sprintf("%q", q.Name)
	if q.Company != "" {
		query += " " + fmt.Sprintf("%q", q.Company)
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("forms", "3,4,5")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search-index?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "sec: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "sec: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "sec: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var results FilingResults
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "sec: unmarshal response")
	}
	return &results, nil
}
