package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"PadaOne/internal/domain"
	"PadaOne/internal/usecase"
)

const maxCurationBody = 1 << 10

// Catalog is the read side consumed by the API and the pages.
type Catalog interface {
	Search(ctx context.Context, filter domain.PaperFilter, sort domain.Sort, page domain.Page) (domain.ResultPage, error)
	Detail(ctx context.Context, pmid int64, enrich bool) (domain.PaperDetail, error)
	Genes(ctx context.Context, pmid int64) ([]domain.GeneAccession, error)
	Taxon(ctx context.Context, taxID int64) (usecase.TaxonSummary, error)
	Suggest(ctx context.Context, kind usecase.SuggestKind, prefix string, limit int) ([]string, error)
	Stats(ctx context.Context) (domain.Stats, error)
	Ping(ctx context.Context) error
}

// Curator is the manual curation workflow.
type Curator interface {
	Mark(ctx context.Context, pmid int64, outcome domain.Outcome) (domain.CurationStatus, bool, error)
	Status(ctx context.Context, pmid int64) (domain.CurationStatus, error)
	List(ctx context.Context, outcome domain.Outcome) ([]domain.CurationStatus, error)
	Sync(ctx context.Context) (int, error)
}

// Handlers serves the JSON API.
type Handlers struct {
	catalog Catalog
	curator Curator
	logger  *slog.Logger
}

// NewHandlers wires the API handlers.
func NewHandlers(catalog Catalog, curator Curator, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{catalog: catalog, curator: curator, logger: logger}
}

func (h *Handlers) searchPapers(w http.ResponseWriter, r *http.Request) {
	req, err := ParseSearchQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.catalog.Search(r.Context(), req.Filter, req.Sort, req.Page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) getPaper(w http.ResponseWriter, r *http.Request) {
	pmid, err := ParsePMID(mux.Vars(r)["pmid"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	enrich, _ := strconv.ParseBool(r.URL.Query().Get("enrich"))
	detail, err := h.catalog.Detail(r.Context(), pmid, enrich)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handlers) listGenes(w http.ResponseWriter, r *http.Request) {
	pmid, err := ParsePMID(mux.Vars(r)["pmid"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	genes, err := h.catalog.Genes(r.Context(), pmid)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, genes)
}

func (h *Handlers) getTaxon(w http.ResponseWriter, r *http.Request) {
	taxID, err := strconv.ParseInt(mux.Vars(r)["taxid"], 10, 64)
	if err != nil || taxID <= 0 {
		writeError(w, r, h.logger, fmt.Errorf("%w: invalid taxon id", domain.ErrInvalidArgument))
		return
	}

	summary, err := h.catalog.Taxon(r.Context(), taxID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handlers) suggest(w http.ResponseWriter, r *http.Request) {
	kind, err := usecase.ParseSuggestKind(mux.Vars(r)["kind"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := intParam(r.URL.Query(), "limit")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	values, err := h.catalog.Suggest(r.Context(), kind, r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Stats(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type curationRequest struct {
	PMID    int64  `json:"pmid"`
	Outcome string `json:"outcome"`
}

func (h *Handlers) markCuration(w http.ResponseWriter, r *http.Request) {
	var body curationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCurationBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: malformed body: %v", domain.ErrInvalidArgument, err))
		return
	}

	outcome, err := domain.ParseOutcome(body.Outcome)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if body.PMID <= 0 {
		writeError(w, r, h.logger, fmt.Errorf("%w: pmid must be positive", domain.ErrInvalidArgument))
		return
	}

	status, created, err := h.curator.Mark(r.Context(), body.PMID, outcome)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, status)
}

func (h *Handlers) curationStatus(w http.ResponseWriter, r *http.Request) {
	pmid, err := ParsePMID(mux.Vars(r)["pmid"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	status, err := h.curator.Status(r.Context(), pmid)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handlers) listCuration(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.curator.List(r.Context(), domain.Outcome(r.URL.Query().Get("outcome")))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (h *Handlers) syncCuration(w http.ResponseWriter, r *http.Request) {
	n, err := h.curator.Sync(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"synced": n})
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.catalog.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, h.logger, fmt.Errorf("%s: %w", r.URL.Path, domain.ErrNotFound))
}

func (h *Handlers) methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeErrorMessage(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
}
