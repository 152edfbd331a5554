package propublica

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchOrganizations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "austin community foundation", r.URL.Query().Get("q"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"total_results": 1,
			"organizations": [
				{"ein": 742345678, "name": "Austin Community Foundation", "city": "Austin", "state": "TX", "ntee_code": "T31"}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	results, err := client.SearchOrganizations(context.Background(), "austin community foundation")
	require.NoError(t, err)
	require.Len(t, results.Organizations, 1)
	assert.Equal(t, 742345678, results.Organizations[0].EIN)
	assert.Equal(t, "TX", results.Organizations[0].State)
}

func TestGetOrganization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organizations/742345678.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"organization": {"ein": 742345678, "name": "Austin Community Foundation"}}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	org, err := client.GetOrganization(context.Background(), 742345678)
	require.NoError(t, err)
	assert.Equal(t, "Austin Community Foundation", org.Name)
}

func TestSearchOrganizationsRequiresQuery(t *testing.T) {
	client := NewClient()
	_, err := client.SearchOrganizations(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query is required")
}

func TestServerErrorExposesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream error"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.SearchOrganizations(context.Background(), "anything")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.HTTPStatus())
}
