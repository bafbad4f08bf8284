package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PadaOne/internal/domain"
)

func newMockRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func float(v float64) *float64 { return &v }

var paperRowFields = []string{"pmid", "title", "year", "authors", "citations", "journal", "language", "first_layer", "second_layer", "curation"}

func TestSearchPapersBuildsConjunctiveFilter(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)

	filter := domain.PaperFilter{
		Query:          "antigen",
		YearFrom:       2000,
		MinSecondLayer: float(0.5),
		Curation:       domain.CurationPositive,
	}
	sort := domain.Sort{Field: domain.SortCitations, Desc: true}
	page := domain.Page{Offset: 0, Limit: 10}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM papers p LEFT JOIN first_layer f .* LEFT JOIN curation c ON c\.pmid = p\.pmid WHERE .*p\.title ILIKE \$1 OR p\.abstract ILIKE \$2.*p\.year >= \$3.*s\.probability >= \$4.*c\.outcome = \$5`).
		WithArgs("%antigen%", "%antigen%", int64(2000), 0.5, "positive").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))

	mock.ExpectQuery(`SELECT p\.pmid, p\.title, .* FROM papers p .* ORDER BY p\.citations DESC NULLS LAST, p\.pmid ASC LIMIT 10 OFFSET 0`).
		WithArgs("%antigen%", "%antigen%", int64(2000), 0.5, "positive").
		WillReturnRows(sqlmock.NewRows(paperRowFields).
			AddRow(int64(101), "Protective antigen A", 2004, "Doe J", 40, "Vaccine", "eng", 0.91, 0.88, "positive").
			AddRow(int64(102), "Protective antigen B", 2010, "Roe R", 12, "Infect Immun", "eng", nil, 0.71, "positive"))

	result, err := repo.SearchPapers(context.Background(), filter, sort, page)
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Total)
	require.Len(t, result.Papers, 2)
	assert.Equal(t, int64(101), result.Papers[0].PMID)
	require.NotNil(t, result.Papers[0].FirstLayer)
	assert.InDelta(t, 0.91, *result.Papers[0].FirstLayer, 1e-9)
	assert.Nil(t, result.Papers[1].FirstLayer)
	assert.Equal(t, "positive", result.Papers[1].Curation)
	assert.False(t, result.HasNext())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchPapersSkipsPageQueryPastTotal(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM papers p`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5)))

	result, err := repo.SearchPapers(context.Background(), domain.PaperFilter{}, domain.DefaultSort, domain.Page{Offset: 50, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Total)
	assert.Empty(t, result.Papers)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchPapersUncuratedAndTaxonFilters(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)

	filter := domain.PaperFilter{TaxID: 562, GeneID: "b0001", Curation: domain.CurationUncurated, Language: "ENG"}

	mock.ExpectQuery(`WHERE .*LOWER\(p\.language\) = LOWER\(\$1\).*EXISTS \(SELECT 1 FROM gene_accessions g WHERE g\.pmid = p\.pmid AND g\.tax_id = \$2\).*g\.gene_id = \$3.*c\.outcome IS NULL`).
		WithArgs("ENG", int64(562), "b0001").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	result, err := repo.SearchPapers(context.Background(), filter, domain.DefaultSort, domain.Page{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, result.Total)
	assert.NotNil(t, result.Papers)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchPapersTaxonNameMatchesLineageSegments(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`JOIN taxonomy t ON t\.tax_id = g\.tax_id WHERE g\.pmid = p\.pmid AND ` +
		`\(LOWER\(t\.name\) = LOWER\(\$1\) OR LOWER\(\$2\) = ANY \(SELECT LOWER\(BTRIM\(seg\)\) FROM UNNEST\(STRING_TO_ARRAY\(t\.lineage, ';'\)\) AS seg\)\)`).
		WithArgs("Bacillus_x", "Bacillus_x").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	_, err := repo.SearchPapers(context.Background(), domain.PaperFilter{TaxonName: " Bacillus_x "}, domain.DefaultSort, domain.Page{Limit: 10})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPaperNotFound(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`FROM papers p .* WHERE p\.pmid = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"pmid"}))

	_, err := repo.GetPaper(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPaperLoadsLayers(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`FROM papers p .* WHERE p\.pmid = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"pmid", "title", "year", "authors", "citations", "journal", "abstract", "language", "first_layer", "second_layer"}).
			AddRow(int64(7), "Title", 1999, "A B", 3, "J", "Abstract", "eng", 0.6, nil))

	detail, err := repo.GetPaper(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Abstract", detail.Abstract)
	require.NotNil(t, detail.FirstLayer)
	assert.Nil(t, detail.SecondLayer)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTaxonCountsPapers(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`FROM taxonomy t WHERE t\.tax_id = \$1`).
		WithArgs(int64(562)).
		WillReturnRows(sqlmock.NewRows([]string{"tax_id", "name", "lineage"}).AddRow(int64(562), "Escherichia coli", "Bacteria; Proteobacteria"))
	mock.ExpectQuery(`SELECT COUNT\(DISTINCT g\.pmid\) FROM gene_accessions g WHERE g\.tax_id = \$1`).
		WithArgs(int64(562)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(17)))

	taxon, papers, err := repo.GetTaxon(context.Background(), 562)
	require.NoError(t, err)
	assert.Equal(t, "Escherichia coli", taxon.Name)
	assert.Equal(t, int64(17), papers)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSuggestEscapesPrefix(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT DISTINCT t\.name FROM taxonomy t WHERE t\.name ILIKE \$1 ORDER BY t\.name LIMIT 5`).
		WithArgs(`Esch\_%`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Esch_x"))

	names, err := repo.SuggestTaxa(context.Background(), "Esch_", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Esch_x"}, names)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`COUNT\(\*\) FILTER \(WHERE f\.probability >= \$1\) AS first_positive, COUNT\(\*\) FILTER \(WHERE s\.probability >= \$2\)`).
		WithArgs(0.5, 0.5).
		WillReturnRows(sqlmock.NewRows([]string{"papers", "first_positive", "second_positive", "curated_positive", "curated_negative"}).
			AddRow(int64(100), int64(60), int64(30), int64(4), int64(2)))
	mock.ExpectQuery(`SELECT p\.year, COUNT\(\*\) AS count FROM papers p WHERE p\.year IS NOT NULL GROUP BY p\.year`).
		WillReturnRows(sqlmock.NewRows([]string{"year", "count"}).AddRow(2001, int64(40)).AddRow(2002, int64(60)))

	stats, err := repo.Stats(context.Background(), 0.5)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stats.Papers)
	assert.Equal(t, int64(30), stats.SecondLayerPositive)
	assert.Equal(t, int64(2), stats.CuratedNegative)
	assert.Len(t, stats.ByYear, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCurationRunsInTransaction(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO curation \(pmid,outcome,curated_at\) VALUES \(\$1,\$2,\$3\),\(\$4,\$5,\$6\) ON CONFLICT \(pmid\) DO UPDATE`).
		WithArgs(int64(1), "positive", sqlmock.AnyArg(), int64(2), "negative", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := repo.UpsertCuration(context.Background(), []domain.CurationStatus{
		{PMID: 1, Outcome: domain.OutcomePositive, CuratedAt: now},
		{PMID: 2, Outcome: domain.OutcomeNegative, CuratedAt: now},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCurationRollsBackOnError(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO curation`).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.UpsertCuration(context.Background(), []domain.CurationStatus{{PMID: 1, Outcome: domain.OutcomePositive}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderByFallsBackToDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"p.pmid ASC NULLS LAST"}, orderBy(domain.Sort{Field: domain.SortPMID}))
	assert.Equal(t, []string{"s.probability DESC NULLS LAST", "p.pmid ASC"}, orderBy(domain.Sort{Field: "bogus"}))
}

func TestMigrationsArePaired(t *testing.T) {
	t.Parallel()

	entries, err := migrationFiles.ReadDir("sql")
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case len(name) > 7 && name[len(name)-7:] == ".up.sql":
			ups[name[:len(name)-7]] = true
		case len(name) > 9 && name[len(name)-9:] == ".down.sql":
			downs[name[:len(name)-9]] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}
