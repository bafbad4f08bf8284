package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"PadaOne/internal/metrics"
)

// RouterDeps wires everything the API router needs. Metrics and Limiter are optional.
type RouterDeps struct {
	Catalog Catalog
	Curator Curator
	Metrics *metrics.Metrics
	Limiter *RateLimiter
	Logger  *slog.Logger
}

// NewRouter registers the JSON API, health and metrics endpoints.
// Callers may add further routes (the HTML pages) to the returned router.
func NewRouter(deps RouterDeps) *mux.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := NewHandlers(deps.Catalog, deps.Curator, logger)

	chain := []mux.MiddlewareFunc{RequestID, Recover(logger), AccessLog(logger)}
	if deps.Metrics != nil {
		chain = append(chain, Metrics(deps.Metrics))
	}

	r := mux.NewRouter()
	r.Use(chain...)
	// mux skips r.Use middleware for its fallback handlers.
	r.NotFoundHandler = wrap(http.HandlerFunc(h.notFound), chain)
	r.MethodNotAllowedHandler = wrap(http.HandlerFunc(h.methodNotAllowed), chain)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	if deps.Limiter != nil {
		api.Use(deps.Limiter.Handler)
	}

	api.HandleFunc("/papers", h.searchPapers).Methods(http.MethodGet)
	api.HandleFunc("/papers/{pmid}", h.getPaper).Methods(http.MethodGet)
	api.HandleFunc("/papers/{pmid}/genes", h.listGenes).Methods(http.MethodGet)
	api.HandleFunc("/taxa/{taxid}", h.getTaxon).Methods(http.MethodGet)
	api.HandleFunc("/suggest/{kind}", h.suggest).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.stats).Methods(http.MethodGet)

	api.HandleFunc("/curation", h.listCuration).Methods(http.MethodGet)
	api.HandleFunc("/curation", h.markCuration).Methods(http.MethodPost)
	api.HandleFunc("/curation/sync", h.syncCuration).Methods(http.MethodPost)
	api.HandleFunc("/curation/{pmid}", h.curationStatus).Methods(http.MethodGet)

	return r
}

func wrap(h http.Handler, chain []mux.MiddlewareFunc) http.Handler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}
