package tools

import (
	"context"

	"github.com/finch-ai/finch/internal/domain/tool"
	"github.com/finch-ai/finch/internal/port/retriever"
)

// SearchFilings returns the search_sec_filings tool backed by a retrieval
// engine. Optional ticker and section arguments narrow the corpus.
func SearchFilings(searcher retriever.Searcher) *tool.Spec {
	return &tool.Spec{
		Name:        "search_sec_filings",
		Description: "Answer a question from indexed SEC filings (10-K, 10-Q). Optionally restrict to a ticker or a filing section.",
		Schema: tool.Schema{Fields: []tool.Field{
			{Name: "question", Type: tool.TypeString, Required: true, Description: "Question to answer from the filings"},
			{Name: "ticker", Type: tool.TypeString, Description: "Restrict to one company's filings"},
			{Name: "section", Type: tool.TypeString, Description: "Restrict to a filing section, e.g. risk_factors"},
		}},
		Handler: func(ctx context.Context, args tool.Args) (any, error) {
			question, _ := args["question"].(string)
			filters := make(map[string]string)
			if ticker, ok := args["ticker"].(string); ok && ticker != "" {
				filters["ticker"] = ticker
			}
			if section, ok := args["section"].(string); ok && section != "" {
				filters["section"] = section
			}
			return searcher.Search(ctx, question, filters)
		},
		Idempotent: true,
		Cacheable:  true,
		Cost:       tool.CostModerate,
	}
}
