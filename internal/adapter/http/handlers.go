package http

import (
	"net/http"
	"strconv"

	"github.com/finch-ai/finch/internal/domain/agent"
	"github.com/finch-ai/finch/internal/domain/tool"
	"github.com/finch-ai/finch/internal/port/cache"
	"github.com/finch-ai/finch/internal/port/runstore"
	"github.com/finch-ai/finch/internal/service"
)

const (
	queryBodyLimit   = 64 << 10 // 64 KiB
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	agent    *service.Agent
	store    runstore.Store // nil when persistence is not configured
	registry *tool.Registry
	recorder *cache.Recorder
	// cacheSize reports the live entry count of the tool cache, when the
	// backend can provide one.
	cacheSize func() int
}

// NewHandlers creates the API handler set.
func NewHandlers(a *service.Agent, store runstore.Store, reg *tool.Registry,
	recorder *cache.Recorder, cacheSize func() int,
) *Handlers {
	if cacheSize == nil {
		cacheSize = func() int { return 0 }
	}
	return &Handlers{
		agent:     a,
		store:     store,
		registry:  reg,
		recorder:  recorder,
		cacheSize: cacheSize,
	}
}

type queryRequest struct {
	Query   string        `json:"query"`
	Options agent.Options `json:"options"`
}

// QueryAgent handles POST /api/v1/agent/query. A run that fails (oracle
// exhaustion, cancellation) is still a 200: the failure is part of the
// result, not a transport error.
func (h *Handlers) QueryAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[queryRequest](w, r, queryBodyLimit)
	if !ok {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := h.agent.Run(r.Context(), agent.Query{Text: req.Query, Options: req.Options})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetRun handles GET /api/v1/runs/{id}.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	id := urlParam(r, "id")

	result, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListRuns handles GET /api/v1/runs?limit=N.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}

	limit := defaultRunsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err, "runs not found")
		return
	}
	if runs == nil {
		runs = []agent.RunResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      tool.Schema    `json:"schema"`
	Cost        tool.CostClass `json:"cost"`
	Cacheable   bool           `json:"cacheable"`
	Idempotent  bool           `json:"idempotent"`
}

// ListTools handles GET /api/v1/tools.
func (h *Handlers) ListTools(w http.ResponseWriter, _ *http.Request) {
	specs := h.registry.List()
	infos := make([]toolInfo, 0, len(specs))
	for _, s := range specs {
		infos = append(infos, toolInfo{
			Name:        s.Name,
			Description: s.Description,
			Schema:      s.Schema,
			Cost:        s.Cost,
			Cacheable:   s.Cacheable,
			Idempotent:  s.Idempotent,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": infos, "count": len(infos)})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handlers) CacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.recorder.Snapshot(h.cacheSize()))
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
