package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finch-ai/finch/internal/config"
	"github.com/finch-ai/finch/internal/domain/tool"
	"github.com/finch-ai/finch/internal/port/retriever"
)

func quoteServer(t *testing.T, known map[string]float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbols")
		price, ok := known[symbol]
		if !ok {
			_, _ = fmt.Fprint(w, `{"quoteResponse":{"result":[]}}`)
			return
		}
		_, _ = fmt.Fprintf(w, `{"quoteResponse":{"result":[{
			"symbol":%q,
			"regularMarketPrice":%f,
			"regularMarketChange":1.5,
			"regularMarketChangePercent":0.65,
			"regularMarketVolume":1000000,
			"marketCap":3000000000,
			"regularMarketDayHigh":%f,
			"regularMarketDayLow":%f,
			"fiftyTwoWeekHigh":%f,
			"fiftyTwoWeekLow":%f
		}]}}`, symbol, price, price+1, price-1, price+50, price-50)
	}))
}

func newClient(url string) *QuoteClient {
	return NewQuoteClient(config.MarketData{BaseURL: url, Timeout: 5 * time.Second})
}

func TestQuote(t *testing.T) {
	srv := quoteServer(t, map[string]float64{"AAPL": 231.5})
	defer srv.Close()

	q, err := newClient(srv.URL).Quote(context.Background(), "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if q.Ticker != "AAPL" {
		t.Errorf("expected AAPL, got %s", q.Ticker)
	}
	if q.Price != 231.5 {
		t.Errorf("expected price 231.5, got %f", q.Price)
	}
	if q.Volume != 1000000 || q.MarketCap != 3000000000 {
		t.Errorf("volume/cap not parsed: %+v", q)
	}
	if q.Timestamp == "" {
		t.Error("expected timestamp set")
	}
}

func TestQuoteUnknownTicker(t *testing.T) {
	srv := quoteServer(t, nil)
	defer srv.Close()

	if _, err := newClient(srv.URL).Quote(context.Background(), "ZZZZ"); err == nil {
		t.Fatal("expected error for unknown ticker")
	}
}

func TestQuoteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := newClient(srv.URL).Quote(context.Background(), "AAPL"); err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestEchoSpec(t *testing.T) {
	spec := Echo()
	args, err := spec.Schema.Validate(tool.Args{"text": "hello"})
	if err != nil {
		t.Fatal(err)
	}
	out, err := spec.Handler(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello" {
		t.Errorf("expected hello, got %v", out)
	}
}

func TestStockPriceSpec(t *testing.T) {
	srv := quoteServer(t, map[string]float64{"MSFT": 420})
	defer srv.Close()

	spec := StockPrice(newClient(srv.URL))
	out, err := spec.Handler(context.Background(), tool.Args{"ticker": "MSFT"})
	if err != nil {
		t.Fatal(err)
	}
	q, ok := out.(*Quote)
	if !ok {
		t.Fatalf("expected *Quote, got %T", out)
	}
	if q.Price != 420 {
		t.Errorf("expected 420, got %f", q.Price)
	}
	if !spec.Cacheable || !spec.Idempotent {
		t.Error("stock price should be cacheable and idempotent")
	}
}

// fakeSearcher records the last search and returns a canned answer.
type fakeSearcher struct {
	question string
	filters  map[string]string
}

func (f *fakeSearcher) Search(_ context.Context, question string, filters map[string]string) (*retriever.Answer, error) {
	f.question = question
	f.filters = filters
	return &retriever.Answer{
		Text:    "revenue grew 8%",
		Sources: []retriever.Source{{Ticker: "AAPL", FilingType: "10-K", Section: "md&a"}},
	}, nil
}

func TestSearchFilingsSpec(t *testing.T) {
	fs := &fakeSearcher{}
	spec := SearchFilings(fs)

	out, err := spec.Handler(context.Background(), tool.Args{
		"question": "how did revenue develop?",
		"ticker":   "AAPL",
		"section":  "md&a",
	})
	if err != nil {
		t.Fatal(err)
	}
	ans, ok := out.(*retriever.Answer)
	if !ok {
		t.Fatalf("expected *retriever.Answer, got %T", out)
	}
	if ans.Text != "revenue grew 8%" {
		t.Errorf("unexpected answer %q", ans.Text)
	}
	if fs.filters["ticker"] != "AAPL" || fs.filters["section"] != "md&a" {
		t.Errorf("filters not forwarded: %v", fs.filters)
	}
}

func TestSearchFilingsNoFilters(t *testing.T) {
	fs := &fakeSearcher{}
	spec := SearchFilings(fs)

	if _, err := spec.Handler(context.Background(), tool.Args{"question": "q"}); err != nil {
		t.Fatal(err)
	}
	if len(fs.filters) != 0 {
		t.Errorf("expected no filters, got %v", fs.filters)
	}
}

func TestCompareFinancials(t *testing.T) {
	srv := quoteServer(t, map[string]float64{"AAPL": 231.5, "MSFT": 420})
	defer srv.Close()

	fs := &fakeSearcher{}
	spec := CompareFinancials(newClient(srv.URL), fs)

	out, err := spec.Handler(context.Background(), tool.Args{
		"ticker_a": "AAPL",
		"ticker_b": "MSFT",
		"question": "revenue growth",
	})
	if err != nil {
		t.Fatal(err)
	}
	cmp, ok := out.(*Comparison)
	if !ok {
		t.Fatalf("expected *Comparison, got %T", out)
	}
	if cmp.A == nil || cmp.A.Ticker != "AAPL" || cmp.B == nil || cmp.B.Ticker != "MSFT" {
		t.Errorf("quotes not assigned in order: %+v", cmp)
	}
	if cmp.Filings == nil || cmp.Filings.Text == "" {
		t.Error("expected filing context attached")
	}
}

func TestCompareFinancialsSpec(t *testing.T) {
	spec := CompareFinancials(nil, nil)
	if !spec.Idempotent {
		t.Error("compare should be idempotent")
	}
	// The composed quote and filing lookups are cached on their own; caching
	// the composition too would just duplicate entries.
	if spec.Cacheable {
		t.Error("compare should not be cacheable at the tool tier")
	}
}

func TestCompareFinancialsSameTicker(t *testing.T) {
	srv := quoteServer(t, map[string]float64{"AAPL": 231.5})
	defer srv.Close()

	spec := CompareFinancials(newClient(srv.URL), nil)
	if _, err := spec.Handler(context.Background(), tool.Args{"ticker_a": "AAPL", "ticker_b": "AAPL"}); err == nil {
		t.Fatal("expected error comparing a ticker with itself")
	}
}

func TestCompareFinancialsQuoteFailure(t *testing.T) {
	srv := quoteServer(t, map[string]float64{"AAPL": 231.5})
	defer srv.Close()

	spec := CompareFinancials(newClient(srv.URL), nil)
	if _, err := spec.Handler(context.Background(), tool.Args{"ticker_a": "AAPL", "ticker_b": "ZZZZ"}); err == nil {
		t.Fatal("expected error when one quote fails")
	}
}
