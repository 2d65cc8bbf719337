// Package api is the client for the upstream expense persistence API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"kharcha/internal/cache"
	"kharcha/internal/core"
)

const (
	maxBodySize = 1 << 20 // 1 MB

	// wireDateLayout is the write encoding: midnight UTC regardless of the
	// submitted time-of-day, since only the date portion is user-editable.
	wireDateLayout = "2006-01-02T15:04:05.000Z"

	monthCacheSize = core.WindowMonths * 2
)

// Client talks to the upstream REST resource collection for expenses.
// Monthly reads go through a short-lived LRU cache that is purged on every
// successful write, so a refresh after a mutation always hits the backend.
type Client struct {
	baseURL string
	http    *http.Client
	months  *cache.LRU[[]core.Expense]
}

// NewClient creates a client for the given collection base URL
// (e.g. https://host/api/Expenses). A zero cacheTTL disables read caching.
func NewClient(baseURL string, timeout, cacheTTL time.Duration) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
	if cacheTTL > 0 {
		c.months = cache.NewLRU[[]core.Expense](monthCacheSize, cacheTTL)
	}
	return c
}

// MonthCache exposes the read cache for cleanup registration. May be nil.
func (c *Client) MonthCache() *cache.LRU[[]core.Expense] {
	return c.months
}

// ListMonthly fetches all expense records for one calendar month.
// Month is 1-indexed.
func (c *Client) ListMonthly(ctx context.Context, year, month int) ([]core.Expense, error) {
	key := strconv.Itoa(year) + "-" + strconv.Itoa(month)
	if c.months != nil {
		if cached, ok := c.months.Get(key); ok {
			return append([]core.Expense(nil), cached...), nil
		}
	}

	u := fmt.Sprintf("%s/monthly?year=%d&month=%d", c.baseURL, year, month)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build monthly request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var dtos []expenseDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, fmt.Errorf("parse monthly response: %w", err)
	}

	records := make([]core.Expense, 0, len(dtos))
	for _, d := range dtos {
		e, err := d.toExpense()
		if err != nil {
			return nil, fmt.Errorf("parse expense %q: %w", d.ID, err)
		}
		records = append(records, e)
	}

	if c.months != nil {
		c.months.Set(key, append([]core.Expense(nil), records...))
	}
	return records, nil
}

// Create posts a new expense and returns the created record including the
// backend-generated id. Expects 201.
func (c *Client) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	payload, err := json.Marshal(fromExpense(e, false))
	if err != nil {
		return core.Expense{}, fmt.Errorf("encode expense: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return core.Expense{}, fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, http.StatusCreated)
	if err != nil {
		return core.Expense{}, err
	}

	var dto expenseDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return core.Expense{}, fmt.Errorf("parse created expense: %w", err)
	}
	created, err := dto.toExpense()
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse created expense: %w", err)
	}

	c.purge()
	return created, nil
}

// Update puts the full record at /{id}. Expects 200.
func (c *Client) Update(ctx context.Context, e core.Expense) error {
	payload, err := json.Marshal(fromExpense(e, true))
	if err != nil {
		return fmt.Errorf("encode expense: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/"+url.PathEscape(e.ID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if _, err := c.do(req, http.StatusOK); err != nil {
		return err
	}
	c.purge()
	return nil
}

// Delete removes the record at /{id}. Expects 200.
func (c *Client) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if _, err := c.do(req, http.StatusOK); err != nil {
		return err
	}
	c.purge()
	return nil
}

// do executes the request and enforces the expected status. Any other
// status is a failure; the core never retries automatically.
func (c *Client) do(req *http.Request, wantStatus int) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode != wantStatus {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, snippet)
	}
	return body, nil
}

func (c *Client) purge() {
	if c.months != nil {
		c.months.Purge()
	}
}
