package domain

import (
	"strings"
	"time"
)

// Paper is a PubMed article surfaced by the catalog.
type Paper struct {
	PMID      int64  `db:"pmid" json:"pmid"`
	Title     string `db:"title" json:"title"`
	Year      int    `db:"year" json:"year"`
	Authors   string `db:"authors" json:"authors"`
	Citations int    `db:"citations" json:"citations"`
	Journal   string `db:"journal" json:"journal"`
	Abstract  string `db:"abstract" json:"abstract,omitempty"`
	Language  string `db:"language" json:"language"`
}

// PaperRow is the projection rendered in result tables.
type PaperRow struct {
	PMID        int64    `db:"pmid" json:"pmid"`
	Title       string   `db:"title" json:"title"`
	Year        int      `db:"year" json:"year"`
	Authors     string   `db:"authors" json:"authors"`
	Citations   int      `db:"citations" json:"citations"`
	Journal     string   `db:"journal" json:"journal"`
	Language    string   `db:"language" json:"language"`
	FirstLayer  *float64 `db:"first_layer" json:"firstLayer"`
	SecondLayer *float64 `db:"second_layer" json:"secondLayer"`
	Curation    string   `db:"curation" json:"curation,omitempty"`
}

// Layer identifies one of the two sequential classifiers.
type Layer int

const (
	FirstLayer  Layer = 1
	SecondLayer Layer = 2
)

// Classification is a classifier probability attached to a paper.
type Classification struct {
	PMID        int64   `db:"pmid" json:"pmid"`
	Layer       Layer   `db:"layer" json:"layer"`
	Probability float64 `db:"probability" json:"probability"`
}

// Taxon is a node of the NCBI taxonomy.
type Taxon struct {
	TaxID   int64  `db:"tax_id" json:"taxId"`
	Name    string `db:"name" json:"name"`
	Lineage string `db:"lineage" json:"lineage"`
}

// LineagePath splits the ';'-separated lineage into names, root first.
func (t Taxon) LineagePath() []string {
	if strings.TrimSpace(t.Lineage) == "" {
		return nil
	}
	parts := strings.Split(t.Lineage, ";")
	path := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			path = append(path, p)
		}
	}
	return path
}

// GeneAccession links a paper to a taxon through a gene identifier.
type GeneAccession struct {
	PMID      int64  `db:"pmid" json:"pmid"`
	GeneID    string `db:"gene_id" json:"geneId"`
	TaxID     int64  `db:"tax_id" json:"taxId"`
	TaxonName string `db:"taxon_name" json:"taxonName"`
}

// PubMedRecord carries metadata scraped from the PubMed article page.
type PubMedRecord struct {
	URL       string   `json:"url"`
	DOI       string   `json:"doi,omitempty"`
	MeSHTerms []string `json:"meshTerms,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
}

// PaperDetail aggregates everything shown on the article page.
type PaperDetail struct {
	Paper
	FirstLayer  *float64        `db:"first_layer" json:"firstLayer"`
	SecondLayer *float64        `db:"second_layer" json:"secondLayer"`
	Taxa        []Taxon         `db:"-" json:"taxa"`
	Genes       []GeneAccession `db:"-" json:"genes"`
	Curation    CurationStatus  `db:"-" json:"curation"`
	PubMed      *PubMedRecord   `db:"-" json:"pubmed,omitempty"`
}

// YearCount is one bucket of the per-year histogram.
type YearCount struct {
	Year  int   `db:"year" json:"year"`
	Count int64 `db:"count" json:"count"`
}

// Stats summarises the catalog.
type Stats struct {
	Papers              int64       `json:"papers"`
	FirstLayerPositive  int64       `json:"firstLayerPositive"`
	SecondLayerPositive int64       `json:"secondLayerPositive"`
	CuratedPositive     int64       `json:"curatedPositive"`
	CuratedNegative     int64       `json:"curatedNegative"`
	Threshold           float64     `json:"threshold"`
	ByYear              []YearCount `json:"byYear"`
	GeneratedAt         time.Time   `json:"generatedAt"`
}
