package domain

import (
	"errors"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestPaperFilterValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		filter  PaperFilter
		wantErr bool
	}{
		{name: "empty", filter: PaperFilter{}},
		{name: "full", filter: PaperFilter{YearFrom: 2000, YearTo: 2020, MinFirstLayer: ptr(0.2), MaxFirstLayer: ptr(0.9), TaxID: 562, Curation: CurationPositive}},
		{name: "probability above one", filter: PaperFilter{MinSecondLayer: ptr(1.5)}, wantErr: true},
		{name: "negative probability", filter: PaperFilter{MaxFirstLayer: ptr(-0.1)}, wantErr: true},
		{name: "inverted layer range", filter: PaperFilter{MinSecondLayer: ptr(0.8), MaxSecondLayer: ptr(0.3)}, wantErr: true},
		{name: "inverted years", filter: PaperFilter{YearFrom: 2020, YearTo: 2010}, wantErr: true},
		{name: "year too small", filter: PaperFilter{YearFrom: 12}, wantErr: true},
		{name: "negative taxon", filter: PaperFilter{TaxID: -1}, wantErr: true},
		{name: "unknown curation", filter: PaperFilter{Curation: "maybe"}, wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.filter.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseSort(t *testing.T) {
	t.Parallel()

	s, err := ParseSort("", "")
	if err != nil || s != DefaultSort {
		t.Fatalf("expected default sort, got %+v (%v)", s, err)
	}

	s, err = ParseSort("Year", "DESC")
	if err != nil {
		t.Fatalf("ParseSort error: %v", err)
	}
	if s.Field != SortYear || !s.Desc {
		t.Fatalf("unexpected sort: %+v", s)
	}

	s, err = ParseSort("", "asc")
	if err != nil || s.Field != DefaultSort.Field || s.Desc {
		t.Fatalf("expected ascending default column, got %+v (%v)", s, err)
	}

	if _, err := ParseSort("abstract; DROP TABLE papers", "asc"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected rejection of unknown column, got %v", err)
	}
	if _, err := ParseSort("title", "sideways"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected rejection of direction, got %v", err)
	}
}

func TestPageNormalize(t *testing.T) {
	t.Parallel()

	p, err := Page{}.Normalize(0, 0)
	if err != nil || p.Limit != DefaultPageLimit || p.Offset != 0 {
		t.Fatalf("unexpected page: %+v (%v)", p, err)
	}

	p, err = Page{Offset: 40, Limit: 1000}.Normalize(20, 100)
	if err != nil || p.Limit != 100 || p.Offset != 40 {
		t.Fatalf("unexpected clamped page: %+v (%v)", p, err)
	}

	if _, err := (Page{Offset: -1}).Normalize(20, 100); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected negative offset rejection, got %v", err)
	}
}

func TestResultPageNavigation(t *testing.T) {
	t.Parallel()

	page := ResultPage{Papers: make([]PaperRow, 10), Total: 25, Offset: 10, Limit: 10}
	if !page.HasNext() || !page.HasPrev() {
		t.Fatalf("middle page should have both neighbours")
	}
	if page.NextOffset() != 20 || page.PrevOffset() != 0 {
		t.Fatalf("unexpected offsets: next=%d prev=%d", page.NextOffset(), page.PrevOffset())
	}
	if page.FirstRow() != 11 || page.LastRow() != 20 {
		t.Fatalf("unexpected rows: %d-%d", page.FirstRow(), page.LastRow())
	}

	last := ResultPage{Papers: make([]PaperRow, 5), Total: 25, Offset: 20, Limit: 10}
	if last.HasNext() {
		t.Fatalf("last page must not have next")
	}

	empty := ResultPage{Limit: 10}
	if empty.FirstRow() != 0 || empty.HasNext() || empty.HasPrev() {
		t.Fatalf("empty page navigation is wrong: %+v", empty)
	}

	beyond := ResultPage{Total: 120, Offset: 500, Limit: 50}
	if beyond.FirstRow() != 0 || beyond.LastRow() != 0 || beyond.HasNext() {
		t.Fatalf("page past the end must be empty: %d-%d", beyond.FirstRow(), beyond.LastRow())
	}
	if !beyond.HasPrev() || beyond.PrevOffset() != 100 {
		t.Fatalf("prev from past the end should land on the last page, got %d", beyond.PrevOffset())
	}
	if small := (ResultPage{Total: 5, Offset: 500, Limit: 50}); small.PrevOffset() != 0 {
		t.Fatalf("prev of a single-page result should be 0, got %d", small.PrevOffset())
	}
}

func TestParseOutcome(t *testing.T) {
	t.Parallel()

	o, err := ParseOutcome(" Positive ")
	if err != nil || o != OutcomePositive {
		t.Fatalf("unexpected outcome %q (%v)", o, err)
	}
	if o.Opposite() != OutcomeNegative {
		t.Fatalf("opposite of positive should be negative")
	}
	if _, err := ParseOutcome("unsure"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestTaxonLineagePath(t *testing.T) {
	t.Parallel()

	taxon := Taxon{Lineage: "cellular organisms; Bacteria;Proteobacteria; ;Escherichia coli"}
	path := taxon.LineagePath()
	want := []string{"cellular organisms", "Bacteria", "Proteobacteria", "Escherichia coli"}
	if len(path) != len(want) {
		t.Fatalf("unexpected path %v", path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path[%d] = %q, want %q", i, path[i], want[i])
		}
	}
	if (Taxon{}).LineagePath() != nil {
		t.Fatalf("empty lineage should yield nil")
	}
}
