package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"PadaOne/internal/domain"
	"PadaOne/internal/metrics"
	"PadaOne/internal/ports"
)

// CuratorDeps wires the curation workflow.
type CuratorDeps struct {
	Store   ports.CurationStore
	Index   ports.CurationIndex
	Papers  ports.PaperRepository
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Curator records manual verdicts and mirrors them into the database.
type Curator struct {
	store   ports.CurationStore
	index   ports.CurationIndex
	papers  ports.PaperRepository
	metrics *metrics.Metrics
	logger  *slog.Logger

	syncMu sync.Mutex
}

// NewCurator constructs the curation use case.
func NewCurator(deps CuratorDeps) *Curator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Curator{
		store:   deps.Store,
		index:   deps.Index,
		papers:  deps.Papers,
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// Mark flags an existing paper. created is false when the flag already existed.
func (c *Curator) Mark(ctx context.Context, pmid int64, outcome domain.Outcome) (domain.CurationStatus, bool, error) {
	if pmid <= 0 {
		return domain.CurationStatus{}, false, fmt.Errorf("%w: pmid must be positive", domain.ErrInvalidArgument)
	}
	if _, err := domain.ParseOutcome(string(outcome)); err != nil {
		return domain.CurationStatus{}, false, err
	}
	if c.papers != nil {
		if _, err := c.papers.GetPaper(ctx, pmid); err != nil {
			return domain.CurationStatus{}, false, err
		}
	}

	status, created, err := c.store.Mark(ctx, pmid, outcome)
	if err != nil {
		return domain.CurationStatus{}, false, err
	}
	if created {
		c.metrics.FlagCreated(string(outcome))
		c.logger.Info("paper curated", "pmid", pmid, "outcome", outcome)
	}
	return status, created, nil
}

// Status reports the flag-file state of pmid.
func (c *Curator) Status(ctx context.Context, pmid int64) (domain.CurationStatus, error) {
	if pmid <= 0 {
		return domain.CurationStatus{}, fmt.Errorf("%w: pmid must be positive", domain.ErrInvalidArgument)
	}
	return c.store.Status(ctx, pmid)
}

// List returns all flags, or those of one outcome when outcome is non-empty.
func (c *Curator) List(ctx context.Context, outcome domain.Outcome) ([]domain.CurationStatus, error) {
	outcomes := domain.Outcomes
	if outcome != "" {
		parsed, err := domain.ParseOutcome(string(outcome))
		if err != nil {
			return nil, err
		}
		outcomes = []domain.Outcome{parsed}
	}

	all := []domain.CurationStatus{}
	for _, o := range outcomes {
		statuses, err := c.store.List(ctx, o)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", o, err)
		}
		all = append(all, statuses...)
	}
	return all, nil
}

// Sync upserts every flag into the curation index and returns how many rows were written.
// When a PMID carries both outcomes the most recent flag wins.
func (c *Curator) Sync(ctx context.Context) (int, error) {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	n, err := c.sync(ctx)
	c.metrics.SyncFinished(err)
	if err != nil {
		c.logger.Error("curation sync failed", "error", err)
		return 0, err
	}
	c.logger.Info("curation synced", "flags", n)
	return n, nil
}

func (c *Curator) sync(ctx context.Context) (int, error) {
	if c.index == nil {
		return 0, fmt.Errorf("curation index is not configured")
	}

	all, err := c.List(ctx, "")
	if err != nil {
		return 0, err
	}

	latest := make(map[int64]domain.CurationStatus, len(all))
	order := make([]int64, 0, len(all))
	for _, s := range all {
		prev, seen := latest[s.PMID]
		if !seen {
			order = append(order, s.PMID)
			latest[s.PMID] = s
			continue
		}
		c.logger.Warn("pmid flagged with both outcomes", "pmid", s.PMID)
		if s.CuratedAt.After(prev.CuratedAt) {
			latest[s.PMID] = s
		}
	}

	statuses := make([]domain.CurationStatus, 0, len(order))
	for _, pmid := range order {
		statuses = append(statuses, latest[pmid])
	}

	if err := c.index.UpsertCuration(ctx, statuses); err != nil {
		return 0, fmt.Errorf("upsert curation index: %w", err)
	}
	return len(statuses), nil
}
