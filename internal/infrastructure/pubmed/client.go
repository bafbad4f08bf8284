package pubmed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"PadaOne/internal/domain"
	"PadaOne/internal/ports"
)

const (
	defaultBaseURL = "https://pubmed.ncbi.nlm.nih.gov"
	userAgent      = "PadaOne/1.0"
)

// Client scrapes the public PubMed article page for metadata absent from the catalog.
type Client struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

var _ ports.PubMedFetcher = (*Client)(nil)

// NewClient wires an HTTP client; baseURL defaults to pubmed.ncbi.nlm.nih.gov.
func NewClient(client *http.Client, baseURL string, logger *slog.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{client: client, baseURL: strings.TrimSuffix(baseURL, "/"), logger: logger}
}

// Fetch downloads and parses the article page for pmid.
func (c *Client) Fetch(ctx context.Context, pmid int64) (domain.PubMedRecord, error) {
	pageURL, err := buildArticleURL(c.baseURL, pmid)
	if err != nil {
		return domain.PubMedRecord{}, err
	}

	doc, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		return domain.PubMedRecord{}, fmt.Errorf("pmid %d: %w", pmid, err)
	}

	record := parseArticle(doc)
	record.URL = pageURL
	c.logger.Debug("pubmed page parsed", "pmid", pmid, "mesh_terms", len(record.MeSHTerms), "keywords", len(record.Keywords))
	return record, nil
}

func (c *Client) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pubmed returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func parseArticle(doc *goquery.Document) domain.PubMedRecord {
	var record domain.PubMedRecord

	record.DOI = strings.TrimSpace(doc.Find(`meta[name="citation_doi"]`).First().AttrOr("content", ""))

	seen := map[string]struct{}{}
	doc.Find("#mesh-terms .keyword-actions-trigger").Each(func(_ int, s *goquery.Selection) {
		term := collapseSpace(s.Text())
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		record.MeSHTerms = append(record.MeSHTerms, term)
	})

	keywords := collapseSpace(doc.Find("#abstract .keywords, #abstract p:contains('Keywords')").First().Text())
	keywords = strings.TrimPrefix(keywords, "Keywords:")
	for _, kw := range strings.Split(keywords, ";") {
		if kw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(kw), ".")); kw != "" {
			record.Keywords = append(record.Keywords, kw)
		}
	}

	return record
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func buildArticleURL(base string, pmid int64) (string, error) {
	if pmid <= 0 {
		return "", fmt.Errorf("%w: pmid must be positive", domain.ErrInvalidArgument)
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid pubmed url %s: %w", base, err)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + "/" + strconv.FormatInt(pmid, 10) + "/"
	return parsed.String(), nil
}
