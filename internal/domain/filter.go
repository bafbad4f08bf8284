package domain

import (
	"fmt"
	"strings"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200

	minYear = 1800
	maxYear = 2100
)

// CurationFilter restricts results by their synced curation outcome.
type CurationFilter string

const (
	CurationAny       CurationFilter = ""
	CurationPositive  CurationFilter = "positive"
	CurationNegative  CurationFilter = "negative"
	CurationUncurated CurationFilter = "uncurated"
)

// ParseCurationFilter maps a query value onto a CurationFilter.
func ParseCurationFilter(value string) (CurationFilter, error) {
	switch f := CurationFilter(strings.ToLower(strings.TrimSpace(value))); f {
	case CurationAny, CurationPositive, CurationNegative, CurationUncurated:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown curation filter %q", ErrInvalidArgument, value)
	}
}

// PaperFilter holds every optional browse/search criterion. Zero values are inactive.
type PaperFilter struct {
	Query          string
	Journal        string
	Author         string
	Language       string
	GeneID         string
	YearFrom       int
	YearTo         int
	MinFirstLayer  *float64
	MaxFirstLayer  *float64
	MinSecondLayer *float64
	MaxSecondLayer *float64
	TaxID          int64
	TaxonName      string
	Curation       CurationFilter
}

// Validate checks ranges and bounds; errors wrap ErrInvalidArgument.
func (f PaperFilter) Validate() error {
	for name, p := range map[string]*float64{
		"min_first":  f.MinFirstLayer,
		"max_first":  f.MaxFirstLayer,
		"min_second": f.MinSecondLayer,
		"max_second": f.MaxSecondLayer,
	} {
		if p != nil && (*p < 0 || *p > 1) {
			return fmt.Errorf("%w: %s must be within [0,1]", ErrInvalidArgument, name)
		}
	}
	if f.MinFirstLayer != nil && f.MaxFirstLayer != nil && *f.MinFirstLayer > *f.MaxFirstLayer {
		return fmt.Errorf("%w: min_first exceeds max_first", ErrInvalidArgument)
	}
	if f.MinSecondLayer != nil && f.MaxSecondLayer != nil && *f.MinSecondLayer > *f.MaxSecondLayer {
		return fmt.Errorf("%w: min_second exceeds max_second", ErrInvalidArgument)
	}
	if f.YearFrom != 0 && (f.YearFrom < minYear || f.YearFrom > maxYear) {
		return fmt.Errorf("%w: year_from out of range", ErrInvalidArgument)
	}
	if f.YearTo != 0 && (f.YearTo < minYear || f.YearTo > maxYear) {
		return fmt.Errorf("%w: year_to out of range", ErrInvalidArgument)
	}
	if f.YearFrom != 0 && f.YearTo != 0 && f.YearFrom > f.YearTo {
		return fmt.Errorf("%w: year_from exceeds year_to", ErrInvalidArgument)
	}
	if f.TaxID < 0 {
		return fmt.Errorf("%w: taxon must be positive", ErrInvalidArgument)
	}
	if _, err := ParseCurationFilter(string(f.Curation)); err != nil {
		return err
	}
	return nil
}

// SortField names a sortable result column.
type SortField string

const (
	SortPMID        SortField = "pmid"
	SortTitle       SortField = "title"
	SortYear        SortField = "year"
	SortCitations   SortField = "citations"
	SortJournal     SortField = "journal"
	SortFirstLayer  SortField = "first_layer"
	SortSecondLayer SortField = "second_layer"
)

var sortFields = map[SortField]bool{
	SortPMID:        true,
	SortTitle:       true,
	SortYear:        true,
	SortCitations:   true,
	SortJournal:     true,
	SortFirstLayer:  true,
	SortSecondLayer: true,
}

// Sort is a validated ordering request.
type Sort struct {
	Field SortField
	Desc  bool
}

// DefaultSort puts the most confident second-layer hits first.
var DefaultSort = Sort{Field: SortSecondLayer, Desc: true}

// ParseSort validates a column/direction pair. Empty field means DefaultSort.
func ParseSort(field, dir string) (Sort, error) {
	field = strings.ToLower(strings.TrimSpace(field))
	dir = strings.ToLower(strings.TrimSpace(dir))
	if field == "" {
		if dir == "" {
			return DefaultSort, nil
		}
		field = string(DefaultSort.Field)
	}
	if !sortFields[SortField(field)] {
		return Sort{}, fmt.Errorf("%w: cannot sort by %q", ErrInvalidArgument, field)
	}
	switch dir {
	case "", "asc":
		return Sort{Field: SortField(field)}, nil
	case "desc":
		return Sort{Field: SortField(field), Desc: true}, nil
	default:
		return Sort{}, fmt.Errorf("%w: sort direction must be asc or desc", ErrInvalidArgument)
	}
}

// Direction renders the direction as used in query strings.
func (s Sort) Direction() string {
	if s.Desc {
		return "desc"
	}
	return "asc"
}

// Page is an offset/limit window.
type Page struct {
	Offset int
	Limit  int
}

// Normalize fills defaults and clamps the limit; negative offsets are rejected.
func (p Page) Normalize(defaultLimit, maxLimit int) (Page, error) {
	if p.Offset < 0 {
		return Page{}, fmt.Errorf("%w: offset must not be negative", ErrInvalidArgument)
	}
	if p.Limit < 0 {
		return Page{}, fmt.Errorf("%w: limit must not be negative", ErrInvalidArgument)
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultPageLimit
	}
	if maxLimit <= 0 {
		maxLimit = MaxPageLimit
	}
	if p.Limit == 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p, nil
}

// ResultPage is one window of search results plus the total match count.
type ResultPage struct {
	Papers []PaperRow `json:"papers"`
	Total  int64      `json:"total"`
	Offset int        `json:"offset"`
	Limit  int        `json:"limit"`
}

// HasNext reports whether rows exist beyond this page.
func (r ResultPage) HasNext() bool {
	return int64(r.Offset+len(r.Papers)) < r.Total
}

// HasPrev reports whether this page starts after the first row.
func (r ResultPage) HasPrev() bool {
	return r.Offset > 0 && r.Total > 0
}

// NextOffset is the offset of the following page.
func (r ResultPage) NextOffset() int {
	return r.Offset + r.Limit
}

// PrevOffset is the offset of the preceding page, never below zero. From past
// the end it points at the last page that has rows.
func (r ResultPage) PrevOffset() int {
	if r.Limit > 0 && r.Total > 0 && int64(r.Offset) >= r.Total {
		return int((r.Total - 1) / int64(r.Limit) * int64(r.Limit))
	}
	if r.Offset-r.Limit < 0 {
		return 0
	}
	return r.Offset - r.Limit
}

// FirstRow is the 1-based index of the first row shown, or 0 when empty.
func (r ResultPage) FirstRow() int {
	if len(r.Papers) == 0 {
		return 0
	}
	return r.Offset + 1
}

// LastRow is the 1-based index of the last row shown, or 0 when empty.
func (r ResultPage) LastRow() int {
	if len(r.Papers) == 0 {
		return 0
	}
	return r.Offset + len(r.Papers)
}
