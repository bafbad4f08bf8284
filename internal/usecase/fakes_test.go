package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PadaOne/internal/domain"
)

type fakePapers struct {
	papers      map[int64]domain.PaperDetail
	genes       map[int64][]domain.GeneAccession
	taxa        map[int64]domain.Taxon
	suggestions []string

	mu           sync.Mutex
	suggestCalls int
	lastPage     domain.Page
	lastFilter   domain.PaperFilter
}

func newFakePapers() *fakePapers {
	return &fakePapers{
		papers: map[int64]domain.PaperDetail{
			101: {Paper: domain.Paper{PMID: 101, Title: "Anthrax protective antigen", Year: 2005}},
		},
		genes: map[int64][]domain.GeneAccession{
			101: {{PMID: 101, GeneID: "pagA", TaxID: 1392, TaxonName: "Bacillus anthracis"}},
		},
		taxa: map[int64]domain.Taxon{
			1392: {TaxID: 1392, Name: "Bacillus anthracis", Lineage: "Bacteria; Firmicutes; Bacillus anthracis"},
		},
		suggestions: []string{"Bacillus anthracis", "Bacillus cereus"},
	}
}

func (f *fakePapers) SearchPapers(_ context.Context, filter domain.PaperFilter, _ domain.Sort, page domain.Page) (domain.ResultPage, error) {
	f.mu.Lock()
	f.lastPage, f.lastFilter = page, filter
	f.mu.Unlock()
	return domain.ResultPage{Papers: []domain.PaperRow{{PMID: 101}}, Total: 1, Offset: page.Offset, Limit: page.Limit}, nil
}

func (f *fakePapers) GetPaper(_ context.Context, pmid int64) (domain.PaperDetail, error) {
	p, ok := f.papers[pmid]
	if !ok {
		return domain.PaperDetail{}, fmt.Errorf("paper %d: %w", pmid, domain.ErrNotFound)
	}
	return p, nil
}

func (f *fakePapers) ListGenes(_ context.Context, pmid int64) ([]domain.GeneAccession, error) {
	return f.genes[pmid], nil
}

func (f *fakePapers) ListTaxaForPaper(_ context.Context, pmid int64) ([]domain.Taxon, error) {
	var out []domain.Taxon
	for _, g := range f.genes[pmid] {
		if t, ok := f.taxa[g.TaxID]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakePapers) GetTaxon(_ context.Context, taxID int64) (domain.Taxon, int64, error) {
	t, ok := f.taxa[taxID]
	if !ok {
		return domain.Taxon{}, 0, fmt.Errorf("taxon %d: %w", taxID, domain.ErrNotFound)
	}
	return t, 1, nil
}

func (f *fakePapers) suggest(limit int) ([]string, error) {
	f.mu.Lock()
	f.suggestCalls++
	f.mu.Unlock()
	return f.suggestions[:min(limit, len(f.suggestions))], nil
}

func (f *fakePapers) SuggestTaxa(_ context.Context, _ string, limit int) ([]string, error) {
	return f.suggest(limit)
}

func (f *fakePapers) SuggestJournals(_ context.Context, _ string, limit int) ([]string, error) {
	return f.suggest(limit)
}

func (f *fakePapers) SuggestGenes(_ context.Context, _ string, limit int) ([]string, error) {
	return f.suggest(limit)
}

func (f *fakePapers) Stats(_ context.Context, threshold float64) (domain.Stats, error) {
	return domain.Stats{Papers: int64(len(f.papers)), Threshold: threshold}, nil
}

func (f *fakePapers) Ping(context.Context) error { return nil }

type fakeStore struct {
	mu    sync.Mutex
	flags map[domain.Outcome]map[int64]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{flags: map[domain.Outcome]map[int64]time.Time{
		domain.OutcomePositive: {},
		domain.OutcomeNegative: {},
	}}
}

func (s *fakeStore) Mark(_ context.Context, pmid int64, outcome domain.Outcome) (domain.CurationStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[outcome.Opposite()][pmid]; ok {
		return domain.CurationStatus{}, false, domain.ErrConflict
	}
	if at, ok := s.flags[outcome][pmid]; ok {
		return domain.CurationStatus{PMID: pmid, Outcome: outcome, CuratedAt: at}, false, nil
	}
	at := time.Now()
	s.flags[outcome][pmid] = at
	return domain.CurationStatus{PMID: pmid, Outcome: outcome, CuratedAt: at}, true, nil
}

func (s *fakeStore) Status(_ context.Context, pmid int64) (domain.CurationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range domain.Outcomes {
		if at, ok := s.flags[o][pmid]; ok {
			return domain.CurationStatus{PMID: pmid, Outcome: o, CuratedAt: at}, nil
		}
	}
	return domain.CurationStatus{PMID: pmid}, nil
}

func (s *fakeStore) List(_ context.Context, outcome domain.Outcome) ([]domain.CurationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CurationStatus
	for pmid, at := range s.flags[outcome] {
		out = append(out, domain.CurationStatus{PMID: pmid, Outcome: outcome, CuratedAt: at})
	}
	return out, nil
}

type fakeIndex struct {
	upserted []domain.CurationStatus
	err      error
}

func (i *fakeIndex) UpsertCuration(_ context.Context, statuses []domain.CurationStatus) error {
	if i.err != nil {
		return i.err
	}
	i.upserted = append(i.upserted, statuses...)
	return nil
}

type fakeFetcher struct {
	err error
}

func (f fakeFetcher) Fetch(_ context.Context, pmid int64) (domain.PubMedRecord, error) {
	if f.err != nil {
		return domain.PubMedRecord{}, f.err
	}
	return domain.PubMedRecord{DOI: fmt.Sprintf("10.1/%d", pmid)}, nil
}
