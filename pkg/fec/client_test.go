package fec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContributions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/schedules/schedule_a/", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("api_key"))
		assert.Equal(t, "Jane Doe", q.Get("contributor_name"))
		assert.Equal(t, "TX", q.Get("contributor_state"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"results": [
				{"contributor_name": "DOE, JANE", "contributor_city": "AUSTIN", "contributor_state": "TX",
				 "contributor_employer": "ACME CORP", "contribution_receipt_amount": 2800,
				 "contribution_receipt_date": "2024-03-15", "committee": {"name": "Campaign A", "party_full": "X"}},
				{"contributor_name": "DOE, JANE", "contributor_state": "TX",
				 "contribution_receipt_amount": 1000, "committee_name": "Campaign B"}
			],
			"pagination": {"count": 2, "page": 1, "per_page": 100}
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	results, err := client.Contributions(context.Background(), ContributionQuery{
		ContributorName: "Jane Doe",
		State:           "TX",
	})
	require.NoError(t, err)
	require.Len(t, results.Results, 2)
	assert.Equal(t, float64(3800), results.Total())
	assert.Equal(t, "Campaign A", results.Results[0].Recipient())
	assert.Equal(t, "Campaign B", results.Results[1].Recipient())
	assert.Equal(t, 2, results.Pagination.Count)
}

func TestContributionsRequiresName(t *testing.T) {
	client := NewClient("test-key")
	_, err := client.Contributions(context.Background(), ContributionQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contributor name is required")
}

func TestContributionsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"rate limit"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Contributions(context.Background(), ContributionQuery{ContributorName: "Jane Doe"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.HTTPStatus())
}

func TestContributionsEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [], "pagination": {"count": 0}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	results, err := client.Contributions(context.Background(), ContributionQuery{ContributorName: "Nobody"})
	require.NoError(t, err)
	assert.Empty(t, results.Results)
	assert.Zero(t, results.Total())
}
