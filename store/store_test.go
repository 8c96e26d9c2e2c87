package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dev-debug-web-coder/Project-Portal/projects"
)

func TestFetchPageRequestsExplicitProjectionAndOrder(t *testing.T) {
	var request *http.Request

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
		request = rq.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sssht", "projects", 5*time.Second)

	_, hasMore, err := client.FetchPage(context.Background(), 0, 25)
	require.NoError(t, err)
	assert.False(t, hasMore)

	require.NotNil(t, request)
	assert.Equal(t, "/projects", request.URL.Path)

	query := request.URL.Query()
	assert.Equal(t, selection, query.Get("select"))
	assert.Equal(t, "serial.asc", query.Get("order"))
	assert.Equal(t, "0", query.Get("offset"))
	assert.Equal(t, "25", query.Get("limit"))
	assert.Equal(t, "is.null", query.Get("archived_at"))

	assert.Equal(t, "sssht", request.Header.Get("apikey"))
	assert.Equal(t, "Bearer sssht", request.Header.Get("Authorization"))
}

func TestFetchPageDecodesRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"serial": 1, "name": "Harbour Bridge Repaint", "status": "Active", "budget_allocated": 1000, "budget_spent": 200, "progress": 20, "updated_at": "2024-03-17T14:30:00Z"},
			{"serial": 2, "name": "Tunnel Ventilation", "status": "On Hold", "budget_allocated": 5000, "budget_spent": 4750, "progress": 95}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sssht", "projects", 5*time.Second)

	records, hasMore, err := client.FetchPage(context.Background(), 0, 25)
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, records, 2)

	assert.Equal(t, int64(1), records[0].Serial)
	assert.Equal(t, "Harbour Bridge Repaint", records[0].Name)
	assert.Equal(t, projects.StatusActive, records[0].Status)
	assert.Equal(t, float64(200), records[0].BudgetSpent)
	assert.Equal(t, time.Date(2024, time.March, 17, 14, 30, 0, 0, time.UTC), records[0].UpdatedAt.UTC())

	assert.Equal(t, int64(2), records[1].Serial)
	assert.True(t, records[1].UpdatedAt.IsZero())
}

func TestFetchPageReportsMorePages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"serial": 1, "name": "A"}, {"serial": 2, "name": "B"}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sssht", "projects", 5*time.Second)

	// a full page implies there may be more
	_, hasMore, err := client.FetchPage(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.True(t, hasMore)
}

func TestFetchAllPagesThroughTheTable(t *testing.T) {
	pages := []string{
		`[{"serial": 1, "name": "A"}, {"serial": 2, "name": "B"}]`,
		`[{"serial": 3, "name": "C"}]`,
	}

	offsets := []string{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
		offset := rq.URL.Query().Get("offset")
		offsets = append(offsets, offset)

		w.Header().Set("Content-Type", "application/json")
		if offset == "0" {
			w.Write([]byte(pages[0]))
		} else {
			w.Write([]byte(pages[1]))
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sssht", "projects", 5*time.Second)

	records, err := client.FetchAll(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, records, 3)

	for i, serial := range []int64{1, 2, 3} {
		assert.Equal(t, serial, records[i].Serial)
	}

	assert.Equal(t, []string{"0", "2"}, offsets)
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		status int
		check  func(t *testing.T, err error)
	}{
		{http.StatusUnauthorized, func(t *testing.T, err error) {
			assert.IsType(t, &AuthError{}, err)
		}},
		{http.StatusForbidden, func(t *testing.T, err error) {
			assert.IsType(t, &AuthError{}, err)
		}},
		{http.StatusTooManyRequests, func(t *testing.T, err error) {
			require.IsType(t, &RateLimitError{}, err)
			assert.Equal(t, 2*time.Second, err.(*RateLimitError).RetryAfter)
		}},
		{http.StatusInternalServerError, func(t *testing.T, err error) {
			require.IsType(t, &QueryError{}, err)
			assert.True(t, err.(*QueryError).Retryable())
		}},
		{http.StatusBadRequest, func(t *testing.T, err error) {
			require.IsType(t, &QueryError{}, err)
			assert.False(t, err.(*QueryError).Retryable())
		}},
	}

	for _, v := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
			if v.status == http.StatusTooManyRequests {
				w.Header().Set("Retry-After", "2")
			}

			w.WriteHeader(v.status)
		}))

		client := NewClient(srv.URL, "sssht", "projects", 5*time.Second)

		_, _, err := client.FetchPage(context.Background(), 0, 25)
		require.Error(t, err, "HTTP %d", v.status)
		v.check(t, err)

		srv.Close()
	}
}

func TestUpsertMergesDuplicates(t *testing.T) {
	var request *http.Request
	var body []row

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
		request = rq.Clone(context.Background())
		json.NewDecoder(rq.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sssht", "projects", 5*time.Second)

	records := []projects.ProjectRecord{
		{Serial: 1, Name: "Harbour Bridge Repaint", Status: projects.StatusActive, BudgetAllocated: 1000, BudgetSpent: 200, Progress: 20},
	}

	err := client.Upsert(context.Background(), records)
	require.NoError(t, err)

	require.NotNil(t, request)
	assert.Equal(t, http.MethodPost, request.Method)
	assert.Contains(t, request.Header.Get("Prefer"), "resolution=merge-duplicates")

	require.Len(t, body, 1)
	assert.Equal(t, int64(1), body[0].Serial)
	assert.Nil(t, body[0].ArchivedAt, "upserting a live record must clear any previous soft delete")
}

func TestDeleteFiltersBySerial(t *testing.T) {
	var request *http.Request

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
		request = rq.Clone(context.Background())
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sssht", "projects", 5*time.Second)

	err := client.Delete(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)

	require.NotNil(t, request)
	assert.Equal(t, http.MethodDelete, request.Method)
	assert.Equal(t, "in.(1,2,3)", request.URL.Query().Get("serial"))
}

func TestArchiveSetsArchivedAt(t *testing.T) {
	var request *http.Request
	var body map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, rq *http.Request) {
		request = rq.Clone(context.Background())
		json.NewDecoder(rq.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sssht", "projects", 5*time.Second)

	err := client.Archive(context.Background(), []int64{7})
	require.NoError(t, err)

	require.NotNil(t, request)
	assert.Equal(t, http.MethodPatch, request.Method)
	assert.Equal(t, "in.(7)", request.URL.Query().Get("serial"))
	assert.NotEmpty(t, body["archived_at"])
}

func TestNoopWritesSkipTheNetwork(t *testing.T) {
	client := NewClient("http://store.invalid", "sssht", "projects", time.Second)

	assert.NoError(t, client.Upsert(context.Background(), nil))
	assert.NoError(t, client.Delete(context.Background(), nil))
	assert.NoError(t, client.Archive(context.Background(), nil))
}
