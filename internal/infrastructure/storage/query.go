package storage

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"PadaOne/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var sortColumns = map[domain.SortField]string{
	domain.SortPMID:        "p.pmid",
	domain.SortTitle:       "p.title",
	domain.SortYear:        "p.year",
	domain.SortCitations:   "p.citations",
	domain.SortJournal:     "p.journal",
	domain.SortFirstLayer:  "f.probability",
	domain.SortSecondLayer: "s.probability",
}

var paperRowColumns = []string{
	"p.pmid",
	"p.title",
	"COALESCE(p.year, 0) AS year",
	"COALESCE(p.authors, '') AS authors",
	"p.citations",
	"COALESCE(p.journal, '') AS journal",
	"COALESCE(p.language, '') AS language",
	"f.probability AS first_layer",
	"s.probability AS second_layer",
	"COALESCE(c.outcome, '') AS curation",
}

// fromCatalog attaches the papers table and its optional per-PMID companions.
func fromCatalog(b sq.SelectBuilder) sq.SelectBuilder {
	return b.From("papers p").
		LeftJoin("first_layer f ON f.pmid = p.pmid").
		LeftJoin("second_layer s ON s.pmid = p.pmid").
		LeftJoin("curation c ON c.pmid = p.pmid")
}

// filterConditions turns every active filter field into one conjunct.
func filterConditions(f domain.PaperFilter) sq.And {
	var where sq.And

	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := contains(q)
		where = append(where, sq.Or{
			sq.ILike{"p.title": pattern},
			sq.ILike{"p.abstract": pattern},
		})
	}
	if j := strings.TrimSpace(f.Journal); j != "" {
		where = append(where, sq.ILike{"p.journal": contains(j)})
	}
	if a := strings.TrimSpace(f.Author); a != "" {
		where = append(where, sq.ILike{"p.authors": contains(a)})
	}
	if l := strings.TrimSpace(f.Language); l != "" {
		where = append(where, sq.Expr("LOWER(p.language) = LOWER(?)", l))
	}
	if f.YearFrom != 0 {
		where = append(where, sq.GtOrEq{"p.year": f.YearFrom})
	}
	if f.YearTo != 0 {
		where = append(where, sq.LtOrEq{"p.year": f.YearTo})
	}
	if f.MinFirstLayer != nil {
		where = append(where, sq.GtOrEq{"f.probability": *f.MinFirstLayer})
	}
	if f.MaxFirstLayer != nil {
		where = append(where, sq.LtOrEq{"f.probability": *f.MaxFirstLayer})
	}
	if f.MinSecondLayer != nil {
		where = append(where, sq.GtOrEq{"s.probability": *f.MinSecondLayer})
	}
	if f.MaxSecondLayer != nil {
		where = append(where, sq.LtOrEq{"s.probability": *f.MaxSecondLayer})
	}
	if f.TaxID != 0 {
		where = append(where, sq.Expr("EXISTS (SELECT 1 FROM gene_accessions g WHERE g.pmid = p.pmid AND g.tax_id = ?)", f.TaxID))
	}
	if name := strings.TrimSpace(f.TaxonName); name != "" {
		// A name matches the taxon itself and every descendant whose lineage
		// carries it as a whole segment.
		where = append(where, sq.Expr(
			"EXISTS (SELECT 1 FROM gene_accessions g JOIN taxonomy t ON t.tax_id = g.tax_id WHERE g.pmid = p.pmid AND "+
				"(LOWER(t.name) = LOWER(?) OR LOWER(?) = ANY (SELECT LOWER(BTRIM(seg)) FROM UNNEST(STRING_TO_ARRAY(t.lineage, ';')) AS seg)))",
			name, name))
	}
	if g := strings.TrimSpace(f.GeneID); g != "" {
		where = append(where, sq.Expr("EXISTS (SELECT 1 FROM gene_accessions g WHERE g.pmid = p.pmid AND g.gene_id = ?)", g))
	}
	switch f.Curation {
	case domain.CurationPositive, domain.CurationNegative:
		where = append(where, sq.Eq{"c.outcome": string(f.Curation)})
	case domain.CurationUncurated:
		where = append(where, sq.Eq{"c.outcome": nil})
	}

	return where
}

func applyFilter(b sq.SelectBuilder, f domain.PaperFilter) sq.SelectBuilder {
	if where := filterConditions(f); len(where) > 0 {
		b = b.Where(where)
	}
	return b
}

// orderBy renders the whitelisted sort column; pmid always breaks ties.
func orderBy(s domain.Sort) []string {
	column, ok := sortColumns[s.Field]
	if !ok {
		column = sortColumns[domain.DefaultSort.Field]
		s = domain.DefaultSort
	}
	clause := fmt.Sprintf("%s %s NULLS LAST", column, strings.ToUpper(s.Direction()))
	if s.Field == domain.SortPMID {
		return []string{clause}
	}
	return []string{clause, "p.pmid ASC"}
}

func countQuery(f domain.PaperFilter) sq.SelectBuilder {
	return applyFilter(fromCatalog(psql.Select("COUNT(*)")), f)
}

func searchQuery(f domain.PaperFilter, s domain.Sort, page domain.Page) sq.SelectBuilder {
	return applyFilter(fromCatalog(psql.Select(paperRowColumns...)), f).
		OrderBy(orderBy(s)...).
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func contains(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}

func prefix(value string) string {
	return likeEscaper.Replace(value) + "%"
}
