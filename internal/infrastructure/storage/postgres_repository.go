package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"PadaOne/internal/domain"
	"PadaOne/internal/ports"
)

const upsertBatchSize = 500

// PostgresRepository reads the PAg catalog from Postgres.
type PostgresRepository struct {
	db *sqlx.DB
}

var (
	_ ports.PaperRepository = (*PostgresRepository)(nil)
	_ ports.CurationIndex   = (*PostgresRepository)(nil)
)

// NewPostgresRepository wires a sqlx.DB implementation.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Ping checks database reachability.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SearchPapers counts the matches and returns the requested window of them.
func (r *PostgresRepository) SearchPapers(ctx context.Context, filter domain.PaperFilter, sort domain.Sort, page domain.Page) (domain.ResultPage, error) {
	result := domain.ResultPage{Offset: page.Offset, Limit: page.Limit, Papers: []domain.PaperRow{}}

	query, args, err := countQuery(filter).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := r.db.GetContext(ctx, &result.Total, query, args...); err != nil {
		return result, fmt.Errorf("count papers: %w", err)
	}
	if result.Total == 0 || int64(page.Offset) >= result.Total {
		return result, nil
	}

	query, args, err = searchQuery(filter, sort, page).ToSql()
	if err != nil {
		return result, fmt.Errorf("build search query: %w", err)
	}
	if err := r.db.SelectContext(ctx, &result.Papers, query, args...); err != nil {
		return result, fmt.Errorf("select papers: %w", err)
	}

	return result, nil
}

// GetPaper loads one paper with both classifier scores.
func (r *PostgresRepository) GetPaper(ctx context.Context, pmid int64) (domain.PaperDetail, error) {
	query, args, err := psql.Select(
		"p.pmid",
		"p.title",
		"COALESCE(p.year, 0) AS year",
		"COALESCE(p.authors, '') AS authors",
		"p.citations",
		"COALESCE(p.journal, '') AS journal",
		"COALESCE(p.abstract, '') AS abstract",
		"COALESCE(p.language, '') AS language",
		"f.probability AS first_layer",
		"s.probability AS second_layer",
	).
		From("papers p").
		LeftJoin("first_layer f ON f.pmid = p.pmid").
		LeftJoin("second_layer s ON s.pmid = p.pmid").
		Where(sq.Eq{"p.pmid": pmid}).
		ToSql()
	if err != nil {
		return domain.PaperDetail{}, fmt.Errorf("build paper query: %w", err)
	}

	var detail domain.PaperDetail
	if err := r.db.GetContext(ctx, &detail, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PaperDetail{}, fmt.Errorf("paper %d: %w", pmid, domain.ErrNotFound)
		}
		return domain.PaperDetail{}, fmt.Errorf("get paper %d: %w", pmid, err)
	}

	return detail, nil
}

// ListGenes returns the gene accessions mentioned by a paper.
func (r *PostgresRepository) ListGenes(ctx context.Context, pmid int64) ([]domain.GeneAccession, error) {
	query, args, err := psql.Select(
		"g.pmid",
		"g.gene_id",
		"COALESCE(g.tax_id, 0) AS tax_id",
		"COALESCE(t.name, '') AS taxon_name",
	).
		From("gene_accessions g").
		LeftJoin("taxonomy t ON t.tax_id = g.tax_id").
		Where(sq.Eq{"g.pmid": pmid}).
		OrderBy("g.gene_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build genes query: %w", err)
	}

	genes := []domain.GeneAccession{}
	if err := r.db.SelectContext(ctx, &genes, query, args...); err != nil {
		return nil, fmt.Errorf("select genes for %d: %w", pmid, err)
	}
	return genes, nil
}

// ListTaxaForPaper returns the distinct taxa reached through a paper's genes.
func (r *PostgresRepository) ListTaxaForPaper(ctx context.Context, pmid int64) ([]domain.Taxon, error) {
	query, args, err := psql.Select("DISTINCT t.tax_id", "t.name", "COALESCE(t.lineage, '') AS lineage").
		From("taxonomy t").
		Join("gene_accessions g ON g.tax_id = t.tax_id").
		Where(sq.Eq{"g.pmid": pmid}).
		OrderBy("t.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build taxa query: %w", err)
	}

	taxa := []domain.Taxon{}
	if err := r.db.SelectContext(ctx, &taxa, query, args...); err != nil {
		return nil, fmt.Errorf("select taxa for %d: %w", pmid, err)
	}
	return taxa, nil
}

// GetTaxon returns a taxon and the number of papers linked to it.
func (r *PostgresRepository) GetTaxon(ctx context.Context, taxID int64) (domain.Taxon, int64, error) {
	query, args, err := psql.Select("t.tax_id", "t.name", "COALESCE(t.lineage, '') AS lineage").
		From("taxonomy t").
		Where(sq.Eq{"t.tax_id": taxID}).
		ToSql()
	if err != nil {
		return domain.Taxon{}, 0, fmt.Errorf("build taxon query: %w", err)
	}

	var taxon domain.Taxon
	if err := r.db.GetContext(ctx, &taxon, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Taxon{}, 0, fmt.Errorf("taxon %d: %w", taxID, domain.ErrNotFound)
		}
		return domain.Taxon{}, 0, fmt.Errorf("get taxon %d: %w", taxID, err)
	}

	query, args, err = psql.Select("COUNT(DISTINCT g.pmid)").
		From("gene_accessions g").
		Where(sq.Eq{"g.tax_id": taxID}).
		ToSql()
	if err != nil {
		return domain.Taxon{}, 0, fmt.Errorf("build taxon count query: %w", err)
	}

	var papers int64
	if err := r.db.GetContext(ctx, &papers, query, args...); err != nil {
		return domain.Taxon{}, 0, fmt.Errorf("count papers for taxon %d: %w", taxID, err)
	}

	return taxon, papers, nil
}

// SuggestTaxa completes taxon names by prefix.
func (r *PostgresRepository) SuggestTaxa(ctx context.Context, value string, limit int) ([]string, error) {
	return r.suggest(ctx, "t.name", "taxonomy t", value, limit)
}

// SuggestJournals completes journal titles by prefix.
func (r *PostgresRepository) SuggestJournals(ctx context.Context, value string, limit int) ([]string, error) {
	return r.suggest(ctx, "p.journal", "papers p", value, limit)
}

// SuggestGenes completes gene identifiers by prefix.
func (r *PostgresRepository) SuggestGenes(ctx context.Context, value string, limit int) ([]string, error) {
	return r.suggest(ctx, "g.gene_id", "gene_accessions g", value, limit)
}

func (r *PostgresRepository) suggest(ctx context.Context, column, table, value string, limit int) ([]string, error) {
	query, args, err := psql.Select("DISTINCT " + column).
		From(table).
		Where(sq.ILike{column: prefix(strings.TrimSpace(value))}).
		OrderBy(column).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build suggest query: %w", err)
	}

	values := []string{}
	if err := r.db.SelectContext(ctx, &values, query, args...); err != nil {
		return nil, fmt.Errorf("suggest %s: %w", column, err)
	}
	return values, nil
}

type statsRow struct {
	Papers          int64 `db:"papers"`
	FirstPositive   int64 `db:"first_positive"`
	SecondPositive  int64 `db:"second_positive"`
	CuratedPositive int64 `db:"curated_positive"`
	CuratedNegative int64 `db:"curated_negative"`
}

// Stats aggregates catalog counters and the per-year histogram.
func (r *PostgresRepository) Stats(ctx context.Context, threshold float64) (domain.Stats, error) {
	query, args, err := fromCatalog(psql.Select().
		Column("COUNT(*) AS papers").
		Column(sq.Expr("COUNT(*) FILTER (WHERE f.probability >= ?) AS first_positive", threshold)).
		Column(sq.Expr("COUNT(*) FILTER (WHERE s.probability >= ?) AS second_positive", threshold)).
		Column("COUNT(*) FILTER (WHERE c.outcome = 'positive') AS curated_positive").
		Column("COUNT(*) FILTER (WHERE c.outcome = 'negative') AS curated_negative")).
		ToSql()
	if err != nil {
		return domain.Stats{}, fmt.Errorf("build stats query: %w", err)
	}

	var row statsRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return domain.Stats{}, fmt.Errorf("select stats: %w", err)
	}

	query, args, err = psql.Select("p.year", "COUNT(*) AS count").
		From("papers p").
		Where(sq.NotEq{"p.year": nil}).
		GroupBy("p.year").
		OrderBy("p.year").
		ToSql()
	if err != nil {
		return domain.Stats{}, fmt.Errorf("build histogram query: %w", err)
	}

	byYear := []domain.YearCount{}
	if err := r.db.SelectContext(ctx, &byYear, query, args...); err != nil {
		return domain.Stats{}, fmt.Errorf("select histogram: %w", err)
	}

	return domain.Stats{
		Papers:              row.Papers,
		FirstLayerPositive:  row.FirstPositive,
		SecondLayerPositive: row.SecondPositive,
		CuratedPositive:     row.CuratedPositive,
		CuratedNegative:     row.CuratedNegative,
		Threshold:           threshold,
		ByYear:              byYear,
	}, nil
}

// UpsertCuration mirrors flag files into the curation table in one transaction.
func (r *PostgresRepository) UpsertCuration(ctx context.Context, statuses []domain.CurationStatus) error {
	if len(statuses) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin curation tx: %w", err)
	}

	for start := 0; start < len(statuses); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(statuses))

		insert := psql.Insert("curation").Columns("pmid", "outcome", "curated_at")
		for _, s := range statuses[start:end] {
			insert = insert.Values(s.PMID, string(s.Outcome), s.CuratedAt)
		}
		query, args, err := insert.
			Suffix("ON CONFLICT (pmid) DO UPDATE SET outcome = EXCLUDED.outcome, curated_at = EXCLUDED.curated_at").
			ToSql()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("build curation upsert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert curation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit curation: %w", err)
	}
	return nil
}
