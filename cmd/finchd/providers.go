package main

import (
	"github.com/finch-ai/finch/internal/adapter/rag"
	"github.com/finch-ai/finch/internal/config"
	"github.com/finch-ai/finch/internal/domain/tool"
	"github.com/finch-ai/finch/internal/port/retriever"
	"github.com/finch-ai/finch/internal/tools"
)

// buildRegistry registers the built-in tools. The filings search tool only
// appears when a retrieval endpoint is configured; compare_financials picks
// up filing context through the same searcher.
func buildRegistry(cfg *config.Config) (*tool.Registry, error) {
	reg := tool.NewRegistry()
	quotes := tools.NewQuoteClient(cfg.MarketData)

	var searcher retriever.Searcher
	if cfg.Retriever.URL != "" {
		searcher = rag.NewClient(cfg.Retriever)
	}

	specs := []*tool.Spec{
		tools.Echo(),
		tools.StockPrice(quotes),
		tools.CompareFinancials(quotes, searcher),
	}
	if searcher != nil {
		specs = append(specs, tools.SearchFilings(searcher))
	}

	for _, spec := range specs {
		if err := reg.Register(spec); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
