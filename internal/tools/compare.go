package tools

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/finch-ai/finch/internal/domain/tool"
	"github.com/finch-ai/finch/internal/port/retriever"
)

// Comparison is the structured output of compare_financials.
type Comparison struct {
	A       *Quote            `json:"a"`
	B       *Quote            `json:"b"`
	Filings *retriever.Answer `json:"filings,omitempty"`
}

// CompareFinancials returns the compare_financials tool: it fetches quotes
// for two tickers concurrently and, when a retrieval engine is available and
// a question is given, adds filing context.
func CompareFinancials(client *QuoteClient, searcher retriever.Searcher) *tool.Spec {
	return &tool.Spec{
		Name:        "compare_financials",
		Description: "Compare two companies: current quotes side by side, optionally with context from their SEC filings.",
		Schema: tool.Schema{Fields: []tool.Field{
			{Name: "ticker_a", Type: tool.TypeString, Required: true, Description: "First ticker"},
			{Name: "ticker_b", Type: tool.TypeString, Required: true, Description: "Second ticker"},
			{Name: "question", Type: tool.TypeString, Description: "Aspect to compare using filings, e.g. revenue growth"},
		}},
		Handler: func(ctx context.Context, args tool.Args) (any, error) {
			tickerA, _ := args["ticker_a"].(string)
			tickerB, _ := args["ticker_b"].(string)
			if tickerA == tickerB {
				return nil, fmt.Errorf("cannot compare %s with itself", tickerA)
			}

			cmp := &Comparison{}
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				q, err := client.Quote(gctx, tickerA)
				cmp.A = q
				return err
			})
			g.Go(func() error {
				q, err := client.Quote(gctx, tickerB)
				cmp.B = q
				return err
			})
			if err := g.Wait(); err != nil {
				return nil, err
			}

			if question, _ := args["question"].(string); question != "" && searcher != nil {
				// Filing context is additive: a retrieval failure does not
				// void the quote comparison.
				if ans, err := searcher.Search(ctx, fmt.Sprintf("%s (compare %s and %s)", question, tickerA, tickerB), nil); err == nil {
					cmp.Filings = ans
				}
			}
			return cmp, nil
		},
		Idempotent: true,
		// Not cached at the tool tier: the quote and filing lookups it
		// composes are cached individually.
		Cacheable:  false,
		Cost:       tool.CostModerate,
	}
}
