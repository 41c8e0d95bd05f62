// Package rag implements the retriever port against an HTTP retrieval
// service. Parsing, chunking, embedding, and vector search all live on the
// remote side; this client only ships questions over and answers back.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/finch-ai/finch/internal/config"
	"github.com/finch-ai/finch/internal/port/retriever"
)

// Client calls a retrieval service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a retrieval client from config.
func NewClient(cfg config.Retriever) *Client {
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type searchRequest struct {
	Question string            `json:"question"`
	Filters  map[string]string `json:"filters,omitempty"`
}

// Search asks the retrieval service for an answer with sources.
func (c *Client) Search(ctx context.Context, question string, filters map[string]string) (*retriever.Answer, error) {
	body, err := json.Marshal(searchRequest{Question: question, Filters: filters})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("retrieval service error %d: %s", resp.StatusCode, truncate(data, 200))
	}

	var answer retriever.Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		return nil, fmt.Errorf("unmarshal search response: %w", err)
	}
	return &answer, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
