package httpapi

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"PadaOne/internal/domain"
)

// SearchRequest is a fully parsed browse/search query string.
type SearchRequest struct {
	Filter domain.PaperFilter
	Sort   domain.Sort
	Page   domain.Page
}

// ParseSearchQuery reads offset, limit, sort, dir and every filter parameter.
// Malformed values yield errors wrapping domain.ErrInvalidArgument.
func ParseSearchQuery(q url.Values) (SearchRequest, error) {
	var (
		req SearchRequest
		err error
	)

	if req.Page.Offset, err = intParam(q, "offset"); err != nil {
		return req, err
	}
	if req.Page.Limit, err = intParam(q, "limit"); err != nil {
		return req, err
	}
	if req.Sort, err = domain.ParseSort(q.Get("sort"), q.Get("dir")); err != nil {
		return req, err
	}

	f := &req.Filter
	f.Query = strings.TrimSpace(q.Get("q"))
	f.Journal = strings.TrimSpace(q.Get("journal"))
	f.Author = strings.TrimSpace(q.Get("author"))
	f.Language = strings.TrimSpace(q.Get("language"))
	f.GeneID = strings.TrimSpace(q.Get("gene"))
	f.TaxonName = strings.TrimSpace(q.Get("taxon_name"))

	if f.YearFrom, err = intParam(q, "year_from"); err != nil {
		return req, err
	}
	if f.YearTo, err = intParam(q, "year_to"); err != nil {
		return req, err
	}
	if f.TaxID, err = int64Param(q, "taxon"); err != nil {
		return req, err
	}
	for name, dst := range map[string]**float64{
		"min_first":  &f.MinFirstLayer,
		"max_first":  &f.MaxFirstLayer,
		"min_second": &f.MinSecondLayer,
		"max_second": &f.MaxSecondLayer,
	} {
		if *dst, err = floatParam(q, name); err != nil {
			return req, err
		}
	}
	if f.Curation, err = domain.ParseCurationFilter(q.Get("curation")); err != nil {
		return req, err
	}

	return req, nil
}

// Encode renders the request back into a query string; zero values are omitted.
func (r SearchRequest) Encode() url.Values {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	setInt := func(key string, v int64) {
		if v != 0 {
			q.Set(key, strconv.FormatInt(v, 10))
		}
	}
	setFloat := func(key string, v *float64) {
		if v != nil {
			q.Set(key, strconv.FormatFloat(*v, 'f', -1, 64))
		}
	}

	f := r.Filter
	set("q", f.Query)
	set("journal", f.Journal)
	set("author", f.Author)
	set("language", f.Language)
	set("gene", f.GeneID)
	setInt("year_from", int64(f.YearFrom))
	setInt("year_to", int64(f.YearTo))
	setInt("taxon", f.TaxID)
	set("taxon_name", f.TaxonName)
	setFloat("min_first", f.MinFirstLayer)
	setFloat("max_first", f.MaxFirstLayer)
	setFloat("min_second", f.MinSecondLayer)
	setFloat("max_second", f.MaxSecondLayer)
	set("curation", string(f.Curation))
	if r.Sort != domain.DefaultSort && r.Sort.Field != "" {
		q.Set("sort", string(r.Sort.Field))
		q.Set("dir", r.Sort.Direction())
	}
	setInt("offset", int64(r.Page.Offset))
	setInt("limit", int64(r.Page.Limit))
	return q
}

// ParsePMID parses a path segment as a positive PubMed identifier.
func ParsePMID(raw string) (int64, error) {
	pmid, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || pmid <= 0 {
		return 0, fmt.Errorf("%w: invalid pmid %q", domain.ErrInvalidArgument, raw)
	}
	return pmid, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidArgument, name)
	}
	return v, nil
}

func int64Param(q url.Values, name string) (int64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidArgument, name)
	}
	return v, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidArgument, name)
	}
	return &v, nil
}
