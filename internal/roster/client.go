package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a minimal REST client for the tabular roster store
// (Airtable-style API: bearer token, base/table/view addressing,
// offset-token pagination).
//
// List pagination is a bounded loop that stops when the server returns no
// offset token; a sequence is finite and not restartable mid-way. Page
// requests are self-throttled and retried with a fixed backoff up to a
// capped count, after which the whole listing fails.

const defaultBaseURL = "https://api.airtable.com/v0"

type ClientOptions struct {
	APIKey string

	HTTPClient *http.Client
	BaseURL    string

	// PageDelay is the fixed delay between page requests.
	PageDelay time.Duration

	// RetryBackoff and MaxRetries bound the transient-failure retry policy.
	RetryBackoff time.Duration
	MaxRetries   int
}

type Client struct {
	http   *http.Client
	apiKey string
	base   string

	pageDelay    time.Duration
	retryBackoff time.Duration
	maxRetries   int

	// sleep is injectable for deterministic tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("roster: api key is required")
	}
	c := &Client{
		http:         opts.HTTPClient,
		apiKey:       opts.APIKey,
		base:         opts.BaseURL,
		pageDelay:    opts.PageDelay,
		retryBackoff: opts.RetryBackoff,
		maxRetries:   opts.MaxRetries,
		sleep:        sleepCtx,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	if c.base == "" {
		c.base = defaultBaseURL
	}
	if c.pageDelay <= 0 {
		c.pageDelay = 250 * time.Millisecond
	}
	if c.retryBackoff <= 0 {
		c.retryBackoff = 2 * time.Second
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 5
	}
	return c, nil
}

// Record is one row of a table. Field typing is left to callers; the store
// layer maps rows into domain structs.
type Record struct {
	ID          string         `json:"id"`
	Fields      map[string]any `json:"fields"`
	CreatedTime string         `json:"createdTime,omitempty"`
}

type ListQuery struct {
	View            string
	FilterByFormula string
	PageSize        int
}

// APIError is a non-2xx store response.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("roster: store returned %d (%s): %s", e.Status, e.Type, e.Message)
}

// ListRecords fetches every page of a table listing.
func (c *Client) ListRecords(ctx context.Context, baseID, table string, q ListQuery) ([]Record, error) {
	var out []Record
	offset := ""
	retries := 0
	for page := 0; ; page++ {
		if page > 0 {
			if err := c.sleep(ctx, c.pageDelay); err != nil {
				return nil, err
			}
		}
		body, err := c.listPage(ctx, baseID, table, q, offset)
		if err != nil {
			retries++
			if retries > c.maxRetries {
				return nil, fmt.Errorf("roster: listing %s/%s failed after %d retries: %w", baseID, table, c.maxRetries, err)
			}
			if serr := c.sleep(ctx, c.retryBackoff); serr != nil {
				return nil, serr
			}
			page--
			continue
		}
		out = append(out, body.Records...)
		if body.Offset == "" {
			return out, nil
		}
		offset = body.Offset
	}
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

func (c *Client) listPage(ctx context.Context, baseID, table string, q ListQuery, offset string) (listResponse, error) {
	vals := url.Values{}
	if q.View != "" {
		vals.Set("view", q.View)
	}
	if q.FilterByFormula != "" {
		vals.Set("filterByFormula", q.FilterByFormula)
	}
	if q.PageSize > 0 {
		vals.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if offset != "" {
		vals.Set("offset", offset)
	}
	u := fmt.Sprintf("%s/%s/%s", c.base, baseID, url.PathEscape(table))
	if enc := vals.Encode(); enc != "" {
		u += "?" + enc
	}

	var body listResponse
	if err := c.do(ctx, http.MethodGet, u, nil, &body); err != nil {
		return listResponse{}, err
	}
	return body, nil
}

func (c *Client) CreateRecord(ctx context.Context, baseID, table string, fields map[string]any) (Record, error) {
	u := fmt.Sprintf("%s/%s/%s", c.base, baseID, url.PathEscape(table))
	var rec Record
	if err := c.do(ctx, http.MethodPost, u, map[string]any{"fields": fields}, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (c *Client) UpdateRecord(ctx context.Context, baseID, table, recordID string, fields map[string]any) (Record, error) {
	u := fmt.Sprintf("%s/%s/%s/%s", c.base, baseID, url.PathEscape(table), recordID)
	var rec Record
	if err := c.do(ctx, http.MethodPatch, u, map[string]any{"fields": fields}, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload any, out any) error {
	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var wire struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&wire); err == nil {
			apiErr.Type = wire.Error.Type
			apiErr.Message = wire.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
