package ports

import (
	"context"
	"time"

	"PadaOne/internal/domain"
)

// PaperRepository reads the relational catalog.
type PaperRepository interface {
	SearchPapers(ctx context.Context, filter domain.PaperFilter, sort domain.Sort, page domain.Page) (domain.ResultPage, error)
	GetPaper(ctx context.Context, pmid int64) (domain.PaperDetail, error)
	ListGenes(ctx context.Context, pmid int64) ([]domain.GeneAccession, error)
	ListTaxaForPaper(ctx context.Context, pmid int64) ([]domain.Taxon, error)
	GetTaxon(ctx context.Context, taxID int64) (domain.Taxon, int64, error)
	SuggestTaxa(ctx context.Context, prefix string, limit int) ([]string, error)
	SuggestJournals(ctx context.Context, prefix string, limit int) ([]string, error)
	SuggestGenes(ctx context.Context, prefix string, limit int) ([]string, error)
	Stats(ctx context.Context, threshold float64) (domain.Stats, error)
	Ping(ctx context.Context) error
}

// CurationIndex mirrors flag files into the database so browse filters can use them.
type CurationIndex interface {
	UpsertCuration(ctx context.Context, statuses []domain.CurationStatus) error
}

// CurationStore records manual verdicts as one flag file per PMID.
type CurationStore interface {
	Mark(ctx context.Context, pmid int64, outcome domain.Outcome) (domain.CurationStatus, bool, error)
	Status(ctx context.Context, pmid int64) (domain.CurationStatus, error)
	List(ctx context.Context, outcome domain.Outcome) ([]domain.CurationStatus, error)
}

// PubMedFetcher enriches a paper with metadata from the PubMed article page.
type PubMedFetcher interface {
	Fetch(ctx context.Context, pmid int64) (domain.PubMedRecord, error)
}

// Cache stores small serialized values such as autocomplete suggestions.
// Get reports found=false on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
