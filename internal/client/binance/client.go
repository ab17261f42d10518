// Package binance is a minimal futures REST client covering the account,
// mark-price and income endpoints the hedger snapshots need.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://fapi.binance.com"

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance error (%d): %s", e.Status, e.Body)
}

type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(httpClient *http.Client, baseURL, apiKey, apiSecret string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// WithNow overrides the clock used for request timestamps. For tests.
func (c *Client) WithNow(now func() time.Time) *Client {
	c.now = now
	return c
}

func (c *Client) sign(query url.Values) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values, signed bool) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	if signed {
		query.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		query.Set("signature", c.sign(query))
	}
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}
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
	return body, nil
}

// AccountSummary is the slice of GET /fapi/v2/account the snapshots persist.
type AccountSummary struct {
	TotalMarginBalance    decimal.Decimal `json:"totalMarginBalance"`
	TotalWalletBalance    decimal.Decimal `json:"totalWalletBalance"`
	AvailableBalance      decimal.Decimal `json:"availableBalance"`
	TotalUnrealizedProfit decimal.Decimal `json:"totalUnrealizedProfit"`
	TotalMaintMargin      decimal.Decimal `json:"totalMaintMargin"`
}

// Account fetches the futures account summary for the keyed hedger.
func (c *Client) Account(ctx context.Context) (*AccountSummary, error) {
	body, err := c.doRequest(ctx, "/fapi/v2/account", nil, true)
	if err != nil {
		return nil, err
	}
	var summary AccountSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode account summary: %w", err)
	}
	return &summary, nil
}

// PremiumIndex is one symbol's mark price and current funding rate.
type PremiumIndex struct {
	Symbol          string          `json:"symbol"`
	MarkPrice       decimal.Decimal `json:"markPrice"`
	LastFundingRate decimal.Decimal `json:"lastFundingRate"`
	NextFundingTime int64           `json:"nextFundingTime"`
}

// GetPremiumIndex fetches the mark price and funding rate for one symbol.
func (c *Client) GetPremiumIndex(ctx context.Context, symbol string) (*PremiumIndex, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	query := url.Values{}
	query.Set("symbol", symbol)
	body, err := c.doRequest(ctx, "/fapi/v1/premiumIndex", query, false)
	if err != nil {
		return nil, err
	}
	var index PremiumIndex
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("failed to decode premium index: %w", err)
	}
	return &index, nil
}

// MarkPrice returns the current mark price for one symbol.
func (c *Client) MarkPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	index, err := c.GetPremiumIndex(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return index.MarkPrice, nil
}

// Income is one row of GET /fapi/v1/income.
type Income struct {
	Symbol     string          `json:"symbol"`
	IncomeType string          `json:"incomeType"`
	Income     decimal.Decimal `json:"income"`
	Asset      string          `json:"asset"`
	Time       int64           `json:"time"`
}

// GetIncome fetches income history rows of one type since startTime.
func (c *Client) GetIncome(ctx context.Context, incomeType string, startTime time.Time, limit int) ([]Income, error) {
	query := url.Values{}
	if incomeType != "" {
		query.Set("incomeType", incomeType)
	}
	if !startTime.IsZero() {
		query.Set("startTime", strconv.FormatInt(startTime.UnixMilli(), 10))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.doRequest(ctx, "/fapi/v1/income", query, true)
	if err != nil {
		return nil, err
	}
	var rows []Income
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode income history: %w", err)
	}
	return rows, nil
}
