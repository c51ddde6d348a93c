package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ============================================================
// PostgREST helpers for GET, POST, PATCH, DELETE
// ============================================================

const (
	preferRepresentation = "return=representation"
	preferMergeUpsert    = "resolution=merge-duplicates,return=minimal"
)

func restPath(table string, query url.Values) string {
	if len(query) == 0 {
		return "/rest/v1/" + table
	}
	return "/rest/v1/" + table + "?" + query.Encode()
}

func eq(v string) string {
	return "eq." + v
}

func (c *Client) doGet(ctx context.Context, table string, query url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, restPath(table, query), nil, "")
}

func (c *Client) doPost(ctx context.Context, table string, query url.Values, data any, prefer string) error {
	_, err := c.do(ctx, http.MethodPost, restPath(table, query), data, prefer)
	return err
}

// doPatch updates matching rows and returns how many were touched.
func (c *Client) doPatch(ctx context.Context, table string, query url.Values, data map[string]any) (int, error) {
	body, err := c.do(ctx, http.MethodPatch, restPath(table, query), data, preferRepresentation)
	if err != nil {
		return 0, err
	}
	return countRows(body)
}

// doDelete removes matching rows and returns how many were removed.
func (c *Client) doDelete(ctx context.Context, table string, query url.Values) (int, error) {
	body, err := c.do(ctx, http.MethodDelete, restPath(table, query), nil, preferRepresentation)
	if err != nil {
		return 0, err
	}
	return countRows(body)
}

func countRows(body []byte) (int, error) {
	if len(body) == 0 {
		return 0, nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, fmt.Errorf("decode representation: %w", err)
	}
	return len(rows), nil
}
