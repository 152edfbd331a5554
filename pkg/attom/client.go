// Package attom looks up property records and valuations from the ATTOM
// Data API.
package attom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.gateway.attomdata.com/propertyapi/v1.0.0"

// Client looks up properties by address.
type Client interface {
	PropertyDetail(ctx context.Context, q PropertyQuery) (*Property, error)
}

// PropertyQuery identifies a property by split address: street line and
// "city, state zip" line.
type PropertyQuery struct {
	Address1 string
	Address2 string
}

// Property is one property record with its assessed and market values.
type Property struct {
	Address struct {
		OneLine string `json:"oneLine"`
	} `json:"address"`
	Summary struct {
		PropClass string `json:"propclass"`
		YearBuilt int    `json:"yearbuilt"`
	} `json:"summary"`
	Assessment struct {
		Assessed struct {
			TotalValue float64 `json:"assdttlvalue"`
		} `json:"assessed"`
		Market struct {
			TotalValue float64 `json:"mktttlvalue"`
		} `json:"market"`
	} `json:"assessment"`
	AVM struct {
		Amount struct {
			Value float64 `json:"value"`
		} `json:"amount"`
	} `json:"avm"`
}

// EstimatedValue prefers the AVM model value, then market, then assessed.
func (p *Property) EstimatedValue() float64 {
	if p.AVM.Amount.Value > 0 {
		return p.AVM.Amount.Value
	}
	if p.Assessment.Market.TotalValue > 0 {
		return p.Assessment.Market.TotalValue
	}
	return p.Assessment.Assessed.TotalValue
}

type detailResponse struct {
	Status struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"status"`
	Property []Property `json:"property"`
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("attom: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus implements the status interface retry predicates look for.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// ErrNotFound is returned when no property matches the address.
var ErrNotFound = eris.New("attom: no property found")

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
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an ATTOM API client.
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

func (c *httpClient) PropertyDetail(ctx context.Context, q PropertyQuery) (*Property, error) {
	if q.Address1 == "" || q.Address2 == "" {
		return nil, eris.New("attom: both address lines are required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "attom: rate limit wait")
		}
	}

	params := url.Values{}
	params.Set("address1", q.Address1)
	params.Set("address2", q.Address2)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/property/expandedprofile?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "attom: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "attom: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "attom: read response")
	}
	// ATTOM reports "no records" as a 400 with a SuccessWithoutResult body.
	if resp.StatusCode == http.StatusBadRequest && len(body) > 0 {
		var probe detailResponse
		if json.Unmarshal(body, &probe) == nil && probe.Status.Msg == "SuccessWithoutResult" {
			return nil, ErrNotFound
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result detailResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "attom: unmarshal response")
	}
	if len(result.Property) == 0 {
		return nil, ErrNotFound
	}
	return &result.Property[0], nil
}
