// Package retriever defines the port interface for the document retrieval
// engine backing the filings search tool. Parsing, chunking, embedding, and
// vector search live behind this boundary.
package retriever

import "context"

// Source identifies where a retrieved passage came from.
type Source struct {
	Ticker     string `json:"ticker"`
	FilingType string `json:"filing_type,omitempty"`
	Section    string `json:"section,omitempty"`
}

// Answer is a retrieval-augmented answer with its supporting sources.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources,omitempty"`
}

// Searcher answers questions against the filing corpus. Filters narrow the
// search (e.g. ticker, section); a nil map means no filtering.
type Searcher interface {
	Search(ctx context.Context, question string, filters map[string]string) (*Answer, error)
}
