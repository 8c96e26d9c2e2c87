// Package store implements the REST client for the backing store - a
// PostgREST-style row-oriented table API keyed by project serial, with
// 'select', 'order' and 'offset/limit' query parameters on reads and
// upsert-by-merge on writes.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Dev-debug-web-coder/Project-Portal/projects"
)

const defaultTimeout = 30 * time.Second

// selection is the explicit field projection requested on every read. Reads
// are never unconstrained so that schema additions cannot change the payload
// shape under the viewer.
const selection = "serial,name,status,budget_allocated,budget_spent,progress,updated_at"

// Client issues requests against one backing store table.
type Client struct {
	endpoint string
	apiKey   string
	table    string
	client   *http.Client
}

// row is the wire representation of a ProjectRecord in the backing store.
// ArchivedAt is a storage-only column used by the 'archive' removal policy
// and is deliberately marshalled without omitempty so that upserting a live
// record clears any previous soft delete.
type row struct {
	Serial          int64      `json:"serial"`
	Name            string     `json:"name"`
	Status          string     `json:"status"`
	BudgetAllocated float64    `json:"budget_allocated"`
	BudgetSpent     float64    `json:"budget_spent"`
	Progress        float64    `json:"progress"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
	ArchivedAt      *time.Time `json:"archived_at"`
}

func NewClient(endpoint, apiKey, table string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		table:    table,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchPage retrieves one page of live records ordered by serial ascending.
// The explicit ordering keeps pagination stable under concurrent writes.
// hasMore is a page-full heuristic: a final page of exactly 'limit' records
// costs one extra (empty) fetch.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) ([]projects.ProjectRecord, bool, error) {
	query := url.Values{}
	query.Set("select", selection)
	query.Set("order", "serial.asc")
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))
	query.Set("archived_at", "is.null")

	rq, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s?%s", c.endpoint, c.table, query.Encode()), nil)
	if err != nil {
		return nil, false, err
	}

	c.headers(rq)

	response, err := c.client.Do(rq)
	if err != nil {
		return nil, false, err
	}

	defer response.Body.Close()

	if err := c.check(response); err != nil {
		return nil, false, err
	}

	rows := []row{}
	if err := json.NewDecoder(response.Body).Decode(&rows); err != nil {
		return nil, false, fmt.Errorf("error decoding backing store response (%v)", err)
	}

	records := make([]projects.ProjectRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}

	return records, len(records) == limit, nil
}

// FetchAll walks FetchPage until the table is exhausted, returning the full
// snapshot ordered by serial ascending.
func (c *Client) FetchAll(ctx context.Context, pageSize int) ([]projects.ProjectRecord, error) {
	records := []projects.ProjectRecord{}
	offset := 0

	for {
		page, hasMore, err := c.FetchPage(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}

		records = append(records, page...)
		if !hasMore {
			break
		}

		offset += pageSize
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Serial < records[j].Serial })

	return records, nil
}

// Upsert inserts-or-updates a batch of records keyed by serial.
func (c *Client) Upsert(ctx context.Context, records []projects.ProjectRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]row, 0, len(records))
	for _, record := range records {
		rows = append(rows, makeRow(record))
	}

	body, err := json.Marshal(rows)
	if err != nil {
		return err
	}

	rq, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/%s", c.endpoint, c.table), bytes.NewReader(body))
	if err != nil {
		return err
	}

	c.headers(rq)
	rq.Header.Set("Content-Type", "application/json")
	rq.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	response, err := c.client.Do(rq)
	if err != nil {
		return err
	}

	defer response.Body.Close()

	return c.check(response)
}

// Delete removes the rows for the listed serials (hard delete policy).
func (c *Client) Delete(ctx context.Context, serials []int64) error {
	if len(serials) == 0 {
		return nil
	}

	rq, err := http.NewRequestWithContext(ctx, http.MethodDelete, fmt.Sprintf("%s/%s?serial=%s", c.endpoint, c.table, infilter(serials)), nil)
	if err != nil {
		return err
	}

	c.headers(rq)

	response, err := c.client.Do(rq)
	if err != nil {
		return err
	}

	defer response.Body.Close()

	return c.check(response)
}

// Archive soft-deletes the rows for the listed serials by setting
// archived_at (archive removal policy). Archived rows are invisible to
// reads but are revived by a subsequent upsert of the same serial.
func (c *Client) Archive(ctx context.Context, serials []int64) error {
	if len(serials) == 0 {
		return nil
	}

	now := time.Now().UTC()
	body, err := json.Marshal(map[string]any{"archived_at": now.Format(time.RFC3339)})
	if err != nil {
		return err
	}

	rq, err := http.NewRequestWithContext(ctx, http.MethodPatch, fmt.Sprintf("%s/%s?serial=%s", c.endpoint, c.table, infilter(serials)), bytes.NewReader(body))
	if err != nil {
		return err
	}

	c.headers(rq)
	rq.Header.Set("Content-Type", "application/json")
	rq.Header.Set("Prefer", "return=minimal")

	response, err := c.client.Do(rq)
	if err != nil {
		return err
	}

	defer response.Body.Close()

	return c.check(response)
}

func (c *Client) headers(rq *http.Request) {
	rq.Header.Set("apikey", c.apiKey)
	rq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	rq.Header.Set("Accept", "application/json")
}

// check maps a non-2xx response to the error taxonomy: 401/403 are fatal
// credential failures, 429 is a rate limit with an optional Retry-After
// hint and anything else is a QueryError (retryable for 5xx).
func (c *Client) check(response *http.Response) error {
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}

	switch response.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Status: response.StatusCode}

	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if v := response.Header.Get("Retry-After"); v != "" {
			if seconds, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}

		return &RateLimitError{RetryAfter: retryAfter}

	default:
		message := ""
		if b, err := io.ReadAll(io.LimitReader(response.Body, 512)); err == nil {
			message = strings.TrimSpace(string(b))
		}

		return &QueryError{Status: response.StatusCode, Message: message}
	}
}

func (r row) record() projects.ProjectRecord {
	record := projects.ProjectRecord{
		Serial:          r.Serial,
		Name:            r.Name,
		Status:          projects.Status(r.Status),
		BudgetAllocated: r.BudgetAllocated,
		BudgetSpent:     r.BudgetSpent,
		Progress:        r.Progress,
	}

	if r.UpdatedAt != nil {
		record.UpdatedAt = *r.UpdatedAt
	}

	return record
}

func makeRow(record projects.ProjectRecord) row {
	r := row{
		Serial:          record.Serial,
		Name:            record.Name,
		Status:          string(record.Status),
		BudgetAllocated: record.BudgetAllocated,
		BudgetSpent:     record.BudgetSpent,
		Progress:        record.Progress,
	}

	if !record.UpdatedAt.IsZero() {
		timestamp := record.UpdatedAt
		r.UpdatedAt = &timestamp
	}

	return r
}

func infilter(serials []int64) string {
	values := make([]string, len(serials))
	for i, serial := range serials {
		values[i] = strconv.FormatInt(serial, 10)
	}

	return fmt.Sprintf("in.(%s)", strings.Join(values, ","))
}
