package rag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/finch-ai/finch/internal/config"
)

func newTestClient(url string) *Client {
	return NewClient(config.Retriever{
		URL:     url,
		APIKey:  "test-key",
		Timeout: time.Second,
	})
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Question != "revenue growth" {
			t.Errorf("unexpected question %q", req.Question)
		}
		if req.Filters["ticker"] != "AAPL" {
			t.Errorf("filters not forwarded: %v", req.Filters)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"Revenue grew 8% YoY.","sources":[{"ticker":"AAPL","filing_type":"10-K"}]}`))
	}))
	defer srv.Close()

	ans, err := newTestClient(srv.URL).Search(t.Context(), "revenue growth", map[string]string{"ticker": "AAPL"})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != "Revenue grew 8% YoY." {
		t.Errorf("unexpected answer text %q", ans.Text)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].Ticker != "AAPL" {
		t.Errorf("unexpected sources %+v", ans.Sources)
	}
}

func TestSearchNoFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Filters != nil {
			t.Errorf("expected no filters, got %v", req.Filters)
		}
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Search(t.Context(), "anything", nil); err != nil {
		t.Fatal(err)
	}
}

func TestSearchServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "index rebuilding", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Search(t.Context(), "anything", nil)
	if err == nil {
		t.Fatal("expected error on 503")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error should carry the status code: %v", err)
	}
}

func TestSearchMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Search(t.Context(), "anything", nil); err == nil {
		t.Fatal("expected error for malformed response")
	}
}
