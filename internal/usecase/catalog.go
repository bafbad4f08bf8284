package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"PadaOne/internal/domain"
	"PadaOne/internal/metrics"
	"PadaOne/internal/ports"
)

const (
	defaultSuggestLimit = 10
	maxSuggestLimit     = 50
	minSuggestRunes     = 2
	positiveThreshold   = 0.5
)

// SuggestKind selects which column an autocomplete request completes.
type SuggestKind string

const (
	SuggestTaxon   SuggestKind = "taxon"
	SuggestJournal SuggestKind = "journal"
	SuggestGene    SuggestKind = "gene"
)

// CatalogDeps wires the driven adapters used by Catalog.
type CatalogDeps struct {
	Papers       ports.PaperRepository
	Curation     ports.CurationStore
	PubMed       ports.PubMedFetcher
	Cache        ports.Cache
	CacheTTL     time.Duration
	DefaultLimit int
	MaxLimit     int
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Catalog implements the read side: browse, search, detail, autocomplete, stats.
type Catalog struct {
	papers       ports.PaperRepository
	curation     ports.CurationStore
	pubmed       ports.PubMedFetcher
	cache        ports.Cache
	cacheTTL     time.Duration
	defaultLimit int
	maxLimit     int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// TaxonSummary is a taxon plus the number of papers mentioning it.
type TaxonSummary struct {
	Taxon  domain.Taxon `json:"taxon"`
	Path   []string     `json:"path"`
	Papers int64        `json:"papers"`
}

// NewCatalog constructs the read-side use case.
func NewCatalog(deps CatalogDeps) *Catalog {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Catalog{
		papers:       deps.Papers,
		curation:     deps.Curation,
		pubmed:       deps.PubMed,
		cache:        deps.Cache,
		cacheTTL:     ttl,
		defaultLimit: deps.DefaultLimit,
		maxLimit:     deps.MaxLimit,
		metrics:      deps.Metrics,
		logger:       logger,
	}
}

// Search validates the request and returns one page of matching papers.
func (c *Catalog) Search(ctx context.Context, filter domain.PaperFilter, sort domain.Sort, page domain.Page) (domain.ResultPage, error) {
	if err := filter.Validate(); err != nil {
		return domain.ResultPage{}, err
	}
	page, err := page.Normalize(c.defaultLimit, c.maxLimit)
	if err != nil {
		return domain.ResultPage{}, err
	}

	result, err := c.papers.SearchPapers(ctx, filter, sort, page)
	if err != nil {
		return domain.ResultPage{}, fmt.Errorf("search papers: %w", err)
	}
	return result, nil
}

// Detail loads a paper with its genes, taxa and curation state.
// PubMed enrichment failures are logged and otherwise ignored.
func (c *Catalog) Detail(ctx context.Context, pmid int64, enrich bool) (domain.PaperDetail, error) {
	if pmid <= 0 {
		return domain.PaperDetail{}, fmt.Errorf("%w: pmid must be positive", domain.ErrInvalidArgument)
	}

	detail, err := c.papers.GetPaper(ctx, pmid)
	if err != nil {
		return domain.PaperDetail{}, err
	}

	if detail.Genes, err = c.papers.ListGenes(ctx, pmid); err != nil {
		return domain.PaperDetail{}, fmt.Errorf("load genes: %w", err)
	}
	if detail.Taxa, err = c.papers.ListTaxaForPaper(ctx, pmid); err != nil {
		return domain.PaperDetail{}, fmt.Errorf("load taxa: %w", err)
	}

	detail.Curation = domain.CurationStatus{PMID: pmid}
	if c.curation != nil {
		if detail.Curation, err = c.curation.Status(ctx, pmid); err != nil {
			return domain.PaperDetail{}, fmt.Errorf("load curation: %w", err)
		}
	}

	if enrich && c.pubmed != nil {
		record, err := c.pubmed.Fetch(ctx, pmid)
		if err != nil {
			c.logger.Warn("pubmed enrichment failed", "pmid", pmid, "error", err)
		} else {
			detail.PubMed = &record
		}
	}

	return detail, nil
}

// Genes lists the accessions of an existing paper.
func (c *Catalog) Genes(ctx context.Context, pmid int64) ([]domain.GeneAccession, error) {
	if pmid <= 0 {
		return nil, fmt.Errorf("%w: pmid must be positive", domain.ErrInvalidArgument)
	}
	if _, err := c.papers.GetPaper(ctx, pmid); err != nil {
		return nil, err
	}
	return c.papers.ListGenes(ctx, pmid)
}

// Taxon returns a taxon summary.
func (c *Catalog) Taxon(ctx context.Context, taxID int64) (TaxonSummary, error) {
	if taxID <= 0 {
		return TaxonSummary{}, fmt.Errorf("%w: taxon id must be positive", domain.ErrInvalidArgument)
	}
	taxon, papers, err := c.papers.GetTaxon(ctx, taxID)
	if err != nil {
		return TaxonSummary{}, err
	}
	return TaxonSummary{Taxon: taxon, Path: taxon.LineagePath(), Papers: papers}, nil
}

// ParseSuggestKind validates an autocomplete kind.
func ParseSuggestKind(value string) (SuggestKind, error) {
	switch k := SuggestKind(strings.ToLower(strings.TrimSpace(value))); k {
	case SuggestTaxon, SuggestJournal, SuggestGene:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown suggestion kind %q", domain.ErrInvalidArgument, value)
	}
}

// Suggest completes a prefix. Prefixes under two characters yield an empty list.
func (c *Catalog) Suggest(ctx context.Context, kind SuggestKind, prefix string, limit int) ([]string, error) {
	if _, err := ParseSuggestKind(string(kind)); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", domain.ErrInvalidArgument)
	}
	if limit == 0 {
		limit = defaultSuggestLimit
	}
	limit = min(limit, maxSuggestLimit)

	prefix = strings.TrimSpace(prefix)
	if utf8.RuneCountInString(prefix) < minSuggestRunes {
		return []string{}, nil
	}

	key := fmt.Sprintf("suggest:%s:%d:%s", kind, limit, strings.ToLower(prefix))
	if values, ok := c.cached(ctx, key); ok {
		return values, nil
	}

	var (
		values []string
		err    error
	)
	switch kind {
	case SuggestTaxon:
		values, err = c.papers.SuggestTaxa(ctx, prefix, limit)
	case SuggestJournal:
		values, err = c.papers.SuggestJournals(ctx, prefix, limit)
	case SuggestGene:
		values, err = c.papers.SuggestGenes(ctx, prefix, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("suggest %s: %w", kind, err)
	}

	c.store(ctx, key, values)
	return values, nil
}

// Stats reports catalog counters using the 0.5 probability threshold.
func (c *Catalog) Stats(ctx context.Context) (domain.Stats, error) {
	stats, err := c.papers.Stats(ctx, positiveThreshold)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats: %w", err)
	}
	stats.GeneratedAt = time.Now().UTC()
	return stats, nil
}

// Ping checks the repository.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.papers.Ping(ctx)
}

func (c *Catalog) cached(ctx context.Context, key string) ([]string, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	c.metrics.CacheLookup(ok)
	if !ok {
		return nil, false
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		c.logger.Warn("cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return values, true
}

func (c *Catalog) store(ctx context.Context, key string, values []string) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.cacheTTL); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}
