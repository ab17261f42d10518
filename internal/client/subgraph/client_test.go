package subgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestCollapseConditions(t *testing.T) {
	conds := []Condition{
		{Field: "timestamp", Op: "gte", Value: "100"},
		{Field: "timestamp", Op: "gte", Value: "250"},
		{Field: "accountSource", Value: "0xabc"},
	}
	got := CollapseConditions(conds)
	want := []Condition{
		{Field: "timestamp", Op: "gte", Value: "250"},
		{Field: "accountSource", Value: "0xabc"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("collapse = %+v, want %+v", got, want)
	}
}

func TestCollapseConditionsBigValues(t *testing.T) {
	// Values beyond int64 must still compare numerically, not lexically.
	conds := []Condition{
		{Field: "quantity", Op: "gte", Value: "9000000000000000000000"},
		{Field: "quantity", Op: "gte", Value: "10000000000000000000000"},
	}
	got := CollapseConditions(conds)
	if len(got) != 1 || got[0].Value != "10000000000000000000000" {
		t.Fatalf("collapse = %+v", got)
	}
}

func TestQueryDocument(t *testing.T) {
	q := Query{
		Method:         "quotes",
		Fields:         []string{"id", "timestamp"},
		First:          500,
		Conditions:     []Condition{{Field: "timestamp", Op: "gte", Value: "42"}},
		ChangeBlockGTE: 900,
		BlockNumber:    1000,
		OrderBy:        "timestamp",
	}
	doc := q.Document()
	for _, want := range []string{
		"quotes(",
		"first: 500",
		"orderBy: timestamp, orderDirection: asc",
		`timestamp_gte: "42"`,
		"_change_block: {number_gte: 900}",
		"block: {number: 1000}",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("document missing %q:\n%s", want, doc)
		}
	}
}

func TestFetchErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"indexer behind"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, 100, 10, zap.NewNop())
	_, err := c.Fetch(context.Background(), Query{Method: "users", Fields: []string{"id"}})
	if err == nil || !strings.Contains(err.Error(), "indexer behind") {
		t.Fatalf("expected error envelope to surface, got %v", err)
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, 100, 10, zap.NewNop())
	_, err := c.Fetch(context.Background(), Query{Method: "users", Fields: []string{"id"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected APIError 502, got %v", err)
	}
}

func TestFetchMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": not-json`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, 100, 10, zap.NewNop())
	if _, err := c.Fetch(context.Background(), Query{Method: "users", Fields: []string{"id"}}); err == nil {
		t.Fatal("expected malformed payload to error")
	}
}

func TestFetchEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"users":[]}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, 100, 10, zap.NewNop())
	records, err := c.Fetch(context.Background(), Query{Method: "users", Fields: []string{"id"}})
	if err != nil {
		t.Fatalf("empty page must not error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected zero records, got %d", len(records))
	}
}

// pagingServer serves n synthetic rows ordered by timestamp, honoring the
// timestamp_gte cursor condition embedded in the query document.
func pagingServer(t *testing.T, total, pageSize int, requests *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		*requests = append(*requests, req.Query)

		from := 0
		if i := strings.Index(req.Query, `timestamp_gte: "`); i >= 0 {
			rest := req.Query[i+len(`timestamp_gte: "`):]
			v, _ := strconv.Atoi(rest[:strings.Index(rest, `"`)])
			from = v
		}
		var rows []map[string]any
		for ts := from; ts < total && len(rows) < pageSize; ts++ {
			rows = append(rows, map[string]any{
				"id":        fmt.Sprintf("u%d", ts),
				"timestamp": strconv.Itoa(ts),
			})
		}
		resp := map[string]any{"data": map[string]any{"users": rows}}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
}

func TestLoadAllDrainsAllPages(t *testing.T) {
	var requests []string
	srv := pagingServer(t, 25, 10, &requests)
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, 10, 100, zap.NewNop())
	records, err := c.LoadAll(context.Background(), Query{Method: "users", Fields: []string{"id", "timestamp"}}, "timestamp")
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(records) != 25 {
		t.Fatalf("expected 25 unique records, got %d", len(records))
	}
	// The >= cursor re-fetches the boundary row on every page after the
	// first; the dedupe by id must have dropped those.
	ids := make(map[string]struct{})
	for _, rec := range records {
		id := rec["id"].(string)
		if _, dup := ids[id]; dup {
			t.Fatalf("duplicate id %s in results", id)
		}
		ids[id] = struct{}{}
	}
	// Cursor must be non-decreasing across requests.
	prev := -1
	for _, q := range requests {
		cur := 0
		if i := strings.Index(q, `timestamp_gte: "`); i >= 0 {
			rest := q[i+len(`timestamp_gte: "`):]
			cur, _ = strconv.Atoi(rest[:strings.Index(rest, `"`)])
		}
		if cur < prev {
			t.Fatalf("cursor went backwards: %d after %d", cur, prev)
		}
		prev = cur
	}
	if len(requests) != 3 {
		t.Fatalf("expected 3 page requests, got %d", len(requests))
	}
}

func TestLoadAllStopsOnShortPage(t *testing.T) {
	var requests []string
	srv := pagingServer(t, 4, 10, &requests)
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, 10, 100, zap.NewNop())
	records, err := c.LoadAll(context.Background(), Query{Method: "users", Fields: []string{"id", "timestamp"}}, "timestamp")
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(records) != 4 || len(requests) != 1 {
		t.Fatalf("expected one short page with 4 rows, got %d rows over %d requests", len(records), len(requests))
	}
}

func TestLoadAllRespectsPageCap(t *testing.T) {
	var requests []string
	srv := pagingServer(t, 1000, 10, &requests)
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, 10, 3, zap.NewNop())
	if _, err := c.LoadAll(context.Background(), Query{Method: "users", Fields: []string{"id", "timestamp"}}, "timestamp"); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(requests) != 3 {
		t.Fatalf("expected the page cap to stop at 3 requests, got %d", len(requests))
	}
}

func TestBlockPinnedQueriesAreDeterministic(t *testing.T) {
	// Canned per-block responses: the same pinned block must yield the same
	// bytes regardless of how many times it is queried.
	perBlock := map[uint64]string{
		100: `{"data":{"users":[{"id":"u1","timestamp":"1"}]}}`,
		200: `{"data":{"users":[{"id":"u1","timestamp":"1"},{"id":"u2","timestamp":"2"}]}}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for block, resp := range perBlock {
			if strings.Contains(req.Query, fmt.Sprintf("block: {number: %d}", block)) {
				fmt.Fprint(w, resp)
				return
			}
		}
		fmt.Fprint(w, `{"data":{"users":[]}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, 10, 100, zap.NewNop())
	q := Query{Method: "users", Fields: []string{"id", "timestamp"}, BlockNumber: 100}
	first, err := c.LoadAll(context.Background(), q, "timestamp")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := c.LoadAll(context.Background(), q, "timestamp")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("pinned-block runs diverged:\n%v\n%v", first, second)
	}
	if len(first) != 1 || first[0]["id"] != "u1" {
		t.Fatalf("unexpected pinned result: %v", first)
	}
}
