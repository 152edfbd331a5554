// Package fec queries the Federal Election Commission API for itemized
// individual contributions.
package fec

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

const defaultBaseURL = "https://api.open.fec.gov/v1"

// Client looks up itemized contributions by contributor.
type Client interface {
	Contributions(ctx context.Context, q ContributionQuery) (*ContributionResults, error)
}

// ContributionQuery filters the Schedule A itemized contribution search.
type ContributionQuery struct {
	// ContributorName matches the donor's name.
	ContributorName string
	// State narrows to the donor's state (two-letter code). Optional.
	State string
	// Employer narrows by the donor's stated employer. Optional.
	Employer string
	// MinDate bounds the receipt date. Optional.
	MinDate time.Time
	// PerPage caps results per request; defaults to 100.
	PerPage int
}

// Contribution is one itemized Schedule A record.
type Contribution struct {
	ContributorName       string  `json:"contributor_name"`
	ContributorCity       string  `json:"contributor_city"`
	ContributorState      string  `json:"contributor_state"`
	ContributorEmployer   string  `json:"contributor_employer"`
	ContributorOccupation string  `json:"contributor_occupation"`
	Amount                float64 `json:"contribution_receipt_amount"`
	Date                  string  `json:"contribution_receipt_date"`
	CommitteeName         string  `json:"committee_name,omitempty"`
	Committee             *struct {
		Name  string `json:"name"`
		Party string `json:"party_full"`
	} `json:"committee,omitempty"`
}

// Recipient is the committee name, from whichever field the API populated.
func (c Contribution) Recipient() string {
	if c.Committee != nil && c.Committee.Name != "" {
		return c.Committee.Name
	}
	return c.CommitteeName
}

// ContributionResults is a page of itemized contributions.
type ContributionResults struct {
	Results    []Contribution `json:"results"`
	Pagination struct {
		Count   int `json:"count"`
		Page    int `json:"page"`
		PerPage int `json:"per_page"`
	} `json:"pagination"`
}

// Total sums the page's contribution amounts.
func (r *ContributionResults) Total() float64 {
	var total float64
	for _, c := range r.Results {
		total += c.Amount
	}
	return total
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fec: unexpected status %d: %s", e.StatusCode, e.Body)
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

// WithRateLimit caps outgoing requests per second. The FEC allows 1,000
// calls per hour per key.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an FEC API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
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

func (c *httpClient) Contributions(ctx context.Context, q ContributionQuery) (*ContributionResults, error) {
	if q.ContributorName == "" {
		return nil, eris.New("fec: contributor name is required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fec: rate limit wait")
		}
	}

	perPage := q.PerPage
	if perPage <= 0 {
		perPage = 100
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("contributor_name", q.ContributorName)
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("sort", "-contribution_receipt_date")
	if q.State != "" {
		params.Set("contributor_state", q.State)
	}
	if q.Employer != "" {
		params.Set("contributor_employer", q.Employer)
	}
	if !q.MinDate.IsZero() {
		params.Set("min_date", q.MinDate.Format("2006-01-02"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/schedules/schedule_a/?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "fec: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fec: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fec: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var results ContributionResults
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "fec: unmarshal response")
	}
	return &results, nil
}
