package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/finch-ai/finch/internal/config"
	"github.com/finch-ai/finch/internal/domain/tool"
)

// Quote is a point-in-time market snapshot for one ticker.
type Quote struct {
	Ticker        string  `json:"ticker"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	MarketCap     int64   `json:"market_cap"`
	DayHigh       float64 `json:"day_high"`
	DayLow        float64 `json:"day_low"`
	Week52High    float64 `json:"week_52_high"`
	Week52Low     float64 `json:"week_52_low"`
	Timestamp     string  `json:"timestamp"`
}

// QuoteClient fetches quotes from a Yahoo-compatible quote endpoint.
type QuoteClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewQuoteClient creates a quote client from market data config.
func NewQuoteClient(cfg config.MarketData) *QuoteClient {
	return &QuoteClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string  `json:"symbol"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketChange        float64 `json:"regularMarketChange"`
			RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
			RegularMarketVolume        int64   `json:"regularMarketVolume"`
			MarketCap                  int64   `json:"marketCap"`
			RegularMarketDayHigh       float64 `json:"regularMarketDayHigh"`
			RegularMarketDayLow        float64 `json:"regularMarketDayLow"`
			FiftyTwoWeekHigh           float64 `json:"fiftyTwoWeekHigh"`
			FiftyTwoWeekLow            float64 `json:"fiftyTwoWeekLow"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"quoteResponse"`
}

// Quote fetches the current quote for one ticker.
func (c *QuoteClient) Quote(ctx context.Context, ticker string) (*Quote, error) {
	u := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", c.baseURL, url.QueryEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "finchd/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read quote response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("quote API error %d for %s", resp.StatusCode, ticker)
	}

	var parsed quoteResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal quote response: %w", err)
	}
	if len(parsed.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote data for %s", ticker)
	}

	r := parsed.QuoteResponse.Result[0]
	return &Quote{
		Ticker:        r.Symbol,
		Price:         r.RegularMarketPrice,
		Change:        r.RegularMarketChange,
		ChangePercent: r.RegularMarketChangePercent,
		Volume:        r.RegularMarketVolume,
		MarketCap:     r.MarketCap,
		DayHigh:       r.RegularMarketDayHigh,
		DayLow:        r.RegularMarketDayLow,
		Week52High:    r.FiftyTwoWeekHigh,
		Week52Low:     r.FiftyTwoWeekLow,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// StockPrice returns the get_stock_price tool backed by the given client.
func StockPrice(client *QuoteClient) *tool.Spec {
	return &tool.Spec{
		Name:        "get_stock_price",
		Description: "Get the current market snapshot for a stock ticker: price, change, volume, market cap, and 52-week range.",
		Schema: tool.Schema{Fields: []tool.Field{
			{Name: "ticker", Type: tool.TypeString, Required: true, Description: "Stock ticker symbol, e.g. AAPL"},
		}},
		Handler: func(ctx context.Context, args tool.Args) (any, error) {
			ticker, _ := args["ticker"].(string)
			return client.Quote(ctx, ticker)
		},
		Idempotent: true,
		Cacheable:  true,
		Cost:       tool.CostCheap,
	}
}
