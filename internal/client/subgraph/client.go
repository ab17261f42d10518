// Package subgraph queries an external indexed-data service (a graph-node
// deployment) with cursor-based pagination and historical block pinning.
package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// Record is one decoded entity row. Scalar values arrive as JSON strings or
// numbers; decoding to typed model fields happens in the sync layer.
type Record map[string]any

// APIError is a non-2xx or error-envelope response from the remote service.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("subgraph error (%d): %s", e.Status, e.Body)
}

type Client struct {
	url        string
	pageLimit  int
	maxPages   int
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(httpClient *http.Client, url string, pageLimit, maxPages int, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if pageLimit <= 0 {
		pageLimit = 1000
	}
	if maxPages <= 0 {
		maxPages = 10000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:        url,
		pageLimit:  pageLimit,
		maxPages:   maxPages,
		httpClient: httpClient,
		logger:     logger,
	}
}

type gqlRequest struct {
	Query string `json:"query"`
}

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Fetch executes one page query and decodes the entity list for q.Method.
// A zero-row page is a valid result; transport failures, non-2xx statuses,
// malformed payloads and remote error envelopes all return an error.
func (c *Client) Fetch(ctx context.Context, q Query) ([]Record, error) {
	payload, err := json.Marshal(gqlRequest{Query: q.Document()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	var decoded gqlResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, &APIError{Status: resp.StatusCode, Body: decoded.Errors[0].Message}
	}
	raw, ok := decoded.Data[q.Method]
	if !ok {
		return nil, fmt.Errorf("response missing %q entity set", q.Method)
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s records: %w", q.Method, err)
	}
	return records, nil
}

// LoadAll drains the full paginated result set for q. The cursor is seeded
// from paginationField's caller-supplied lower bound (if any), pages are
// requested in ascending order of that field with a >= cursor condition, and
// the cursor advances to the last row of each page. Rows already seen (by id)
// are dropped, since the >= bound re-fetches the boundary row. The loop stops
// on a short page or when the page cap is hit.
func (c *Client) LoadAll(ctx context.Context, q Query, paginationField string) ([]Record, error) {
	q.OrderBy = paginationField
	q.OrderDirection = "asc"

	seen := make(map[string]struct{})
	var out []Record
	cursor := ""
	for page := 0; page < c.maxPages; page++ {
		pageQuery := q
		pageQuery.First = c.pageLimit
		if cursor != "" {
			pageQuery.Conditions = append(append([]Condition{}, q.Conditions...),
				Condition{Field: paginationField, Op: "gte", Value: cursor})
		}
		records, err := c.Fetch(ctx, pageQuery)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			id, _ := rec["id"].(string)
			if id != "" {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
			}
			out = append(out, rec)
		}
		if len(records) < c.pageLimit {
			break
		}
		last := records[len(records)-1]
		next := stringValue(last[paginationField])
		if next == "" {
			c.logger.Warn("pagination field missing on last row, stopping",
				zap.String("method", q.Method), zap.String("field", paginationField))
			break
		}
		cursor = next
	}
	return out, nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return ""
	}
}
