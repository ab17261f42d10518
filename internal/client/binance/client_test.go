package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAccountSignsRequest(t *testing.T) {
	const secret = "test-secret"
	now := time.UnixMilli(1700000000000)

	var gotQuery url.Values
	var gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAPIKey = r.Header.Get("X-MBX-APIKEY")
		fmt.Fprint(w, `{
			"totalMarginBalance": "1234.5678901234",
			"totalWalletBalance": "1200.00",
			"availableBalance": "900.10",
			"totalUnrealizedProfit": "-34.56",
			"totalMaintMargin": "12.01"
		}`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "test-key", secret).WithNow(fixedClock(now))
	summary, err := c.Account(context.Background())
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if gotAPIKey != "test-key" {
		t.Fatalf("missing API key header, got %q", gotAPIKey)
	}
	if ts := gotQuery.Get("timestamp"); ts != "1700000000000" {
		t.Fatalf("timestamp = %q", ts)
	}
	// Recompute the signature over the query minus the signature itself.
	unsigned := url.Values{}
	for k, vs := range gotQuery {
		if k == "signature" {
			continue
		}
		unsigned[k] = vs
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(unsigned.Encode()))
	if want := hex.EncodeToString(mac.Sum(nil)); gotQuery.Get("signature") != want {
		t.Fatalf("signature = %q, want %q", gotQuery.Get("signature"), want)
	}
	if !summary.TotalMarginBalance.Equal(decimal.RequireFromString("1234.5678901234")) {
		t.Fatalf("TotalMarginBalance = %s", summary.TotalMarginBalance)
	}
	if !summary.TotalUnrealizedProfit.Equal(decimal.RequireFromString("-34.56")) {
		t.Fatalf("TotalUnrealizedProfit = %s", summary.TotalUnrealizedProfit)
	}
}

func TestGetPremiumIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/premiumIndex" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-MBX-APIKEY") != "" {
			t.Error("premiumIndex must not be signed")
		}
		fmt.Fprintf(w, `{"symbol":%q,"markPrice":"42123.40000000","lastFundingRate":"0.00010000"}`,
			r.URL.Query().Get("symbol"))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "", "")
	index, err := c.GetPremiumIndex(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetPremiumIndex: %v", err)
	}
	if index.Symbol != "BTCUSDT" || !index.MarkPrice.Equal(decimal.RequireFromString("42123.4")) {
		t.Fatalf("unexpected index %+v", index)
	}
}

func TestAPIErrorSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":-1022,"msg":"Signature for this request is not valid."}`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "k", "s")
	_, err := c.Account(context.Background())
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected APIError 400, got %v", err)
	}
}

func TestFundingCacheTTL(t *testing.T) {
	calls := 0
	rate := "0.00010000"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprintf(w, `{"symbol":"ETHUSDT","markPrice":"2000.0","lastFundingRate":%q}`, rate)
	}))
	defer srv.Close()

	now := time.UnixMilli(1700000000000)
	clock := func() time.Time { return now }
	c := NewClient(srv.Client(), srv.URL, "", "")
	cache := NewFundingCache(c, 10*time.Minute).WithNow(clock)

	first, err := cache.Rate(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if _, err := cache.Rate(context.Background(), "ETHUSDT"); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cached second read, got %d upstream calls", calls)
	}

	// Past the TTL the next read refreshes.
	rate = "0.00050000"
	now = now.Add(11 * time.Minute)
	second, err := cache.Rate(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected refresh after TTL, got %d upstream calls", calls)
	}
	if first.Equal(second) {
		t.Fatalf("expected refreshed rate, got %s twice", first)
	}

	// Mark price shares the cached premium-index read.
	price, err := cache.MarkPrice(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("MarkPrice: %v", err)
	}
	if calls != 2 {
		t.Fatalf("mark price must reuse the cached read, got %d upstream calls", calls)
	}
	if price.IsZero() {
		t.Fatalf("price = %s", price)
	}
}
