// Package propublica queries ProPublica's Nonprofit Explorer for
// organizations and their filings.
package propublica

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://projects.propublica.org/nonprofits/api/v2"

// Client searches the Nonprofit Explorer. No API key is required.
type Client interface {
	SearchOrganizations(ctx context.Context, query string) (*SearchResults, error)
	GetOrganization(ctx context.Context, ein int) (*Organization, error)
}

// SearchResults is a page of organization matches.
type SearchResults struct {
	TotalResults  int            `json:"total_results"`
	Organizations []Organization `json:"organizations"`
}

// Organization is one nonprofit record.
type Organization struct {
	EIN        int    `json:"ein"`
	Name       string `json:"name"`
	City       string `json:"city"`
	State      string `json:"state"`
	NTEECode   string `json:"ntee_code"`
	Subsection int    `json:"subseccd"`
}

// organizationEnvelope wraps the single-organization response.
type organizationEnvelope struct {
	Organization Organization `json:"organization"`
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("propublica: unexpected status %d: %s", e.StatusCode, e.Body)
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

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Nonprofit Explorer client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchOrganizations(ctx context.Context, query string) (*SearchResults, error) {
	if query == "" {
		return nil, eris.New("propublica: query is required")
	}
	params := url.Values{}
	params.Set("q", query)

	var results SearchResults
	if err := c.get(ctx, "/search.json?"+params.Encode(), &results); err != nil {
		return nil, err
	}
	return &results, nil
}

func (c *httpClient) GetOrganization(ctx context.Context, ein int) (*Organization, error) {
	var envelope organizationEnvelope
	if err := c.get(ctx, "/organizations/"+strconv.Itoa(ein)+".json", &envelope); err != nil {
		return nil, err
	}
	return &envelope.Organization, nil
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "propublica: rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "propublica: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "propublica: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "propublica: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "propublica: unmarshal response")
	}
	return nil
}
