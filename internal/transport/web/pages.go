package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"PadaOne/internal/domain"
	"PadaOne/internal/transport/httpapi"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static
var staticFiles embed.FS

var pageNames = []string{"search", "browse", "paper", "error"}

// Pages renders the server-side HTML views on top of the same use cases as the JSON API.
type Pages struct {
	catalog   httpapi.Catalog
	curator   httpapi.Curator
	logger    *slog.Logger
	templates map[string]*template.Template
	enrich    bool
}

// Option adjusts optional page features.
type Option func(*Pages)

// WithPubMedEnrichment offers the on-demand PubMed metadata link on paper pages.
func WithPubMedEnrichment(enabled bool) Option {
	return func(p *Pages) { p.enrich = enabled }
}

// New parses the embedded templates.
func New(catalog httpapi.Catalog, curator httpapi.Curator, logger *slog.Logger, opts ...Option) (*Pages, error) {
	if logger == nil {
		logger = slog.Default()
	}

	base, err := template.New("layout").Funcs(funcs).ParseFS(templateFiles, "templates/layout.html", "templates/components.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	templates := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(templateFiles, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		templates[name] = t
	}

	p := &Pages{catalog: catalog, curator: curator, logger: logger, templates: templates}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Register mounts the pages and their static assets on r.
func (p *Pages) Register(r *mux.Router) {
	static, _ := fs.Sub(staticFiles, "static")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static)))).Methods(http.MethodGet)

	r.HandleFunc("/", p.search).Methods(http.MethodGet)
	r.HandleFunc("/browse", p.browse).Methods(http.MethodGet)
	r.HandleFunc("/papers/{pmid}", p.paper).Methods(http.MethodGet)
	r.HandleFunc("/papers/{pmid}/curate", p.curate).Methods(http.MethodPost)
}

type searchView struct {
	Form  httpapi.SearchRequest
	Stats *domain.Stats
	Sorts []domain.SortField
}

func (p *Pages) search(w http.ResponseWriter, r *http.Request) {
	// Prefill from the query string; invalid values just leave fields empty.
	form, _ := httpapi.ParseSearchQuery(r.URL.Query())

	view := searchView{Form: form, Sorts: sortableFields}
	if stats, err := p.catalog.Stats(r.Context()); err != nil {
		p.logger.Warn("stats unavailable", "error", err)
	} else {
		view.Stats = &stats
	}
	p.render(w, r, http.StatusOK, "search", view)
}

type column struct {
	Label    string
	Href     string
	AriaSort string
}

type browseView struct {
	Request  httpapi.SearchRequest
	Result   domain.ResultPage
	Columns  []column
	PrevHref string
	NextHref string
	EditHref string
}

var sortableFields = []domain.SortField{
	domain.SortPMID,
	domain.SortTitle,
	domain.SortYear,
	domain.SortJournal,
	domain.SortCitations,
	domain.SortFirstLayer,
	domain.SortSecondLayer,
}

var columnLabels = map[domain.SortField]string{
	domain.SortPMID:        "PMID",
	domain.SortTitle:       "Title",
	domain.SortYear:        "Year",
	domain.SortJournal:     "Journal",
	domain.SortCitations:   "Citations",
	domain.SortFirstLayer:  "1st layer",
	domain.SortSecondLayer: "2nd layer",
}

func (p *Pages) browse(w http.ResponseWriter, r *http.Request) {
	req, err := httpapi.ParseSearchQuery(r.URL.Query())
	if err != nil {
		p.renderError(w, r, err)
		return
	}

	result, err := p.catalog.Search(r.Context(), req.Filter, req.Sort, req.Page)
	if err != nil {
		p.renderError(w, r, err)
		return
	}

	view := browseView{
		Request:  req,
		Result:   result,
		Columns:  columns(req),
		EditHref: "/?" + req.Encode().Encode(),
	}
	if result.HasPrev() {
		view.PrevHref = pageHref(req, result.PrevOffset())
	}
	if result.HasNext() {
		view.NextHref = pageHref(req, result.NextOffset())
	}
	p.render(w, r, http.StatusOK, "browse", view)
}

// columns builds the sortable headers; the active column toggles direction.
func columns(req httpapi.SearchRequest) []column {
	active := req.Sort
	if active.Field == "" {
		active = domain.DefaultSort
	}

	cols := make([]column, 0, len(sortableFields))
	for _, field := range sortableFields {
		next := req
		next.Page.Offset = 0
		next.Sort = domain.Sort{Field: field}

		col := column{Label: columnLabels[field]}
		if field == active.Field {
			next.Sort.Desc = !active.Desc
			col.AriaSort = "ascending"
			if active.Desc {
				col.AriaSort = "descending"
			}
		}
		col.Href = "/browse?" + next.Encode().Encode()
		cols = append(cols, col)
	}
	return cols
}

func pageHref(req httpapi.SearchRequest, offset int) string {
	req.Page.Offset = offset
	return "/browse?" + req.Encode().Encode()
}

type paperView struct {
	Detail          domain.PaperDetail
	Notice          string
	EnrichAvailable bool
}

func (p *Pages) paper(w http.ResponseWriter, r *http.Request) {
	pmid, err := httpapi.ParsePMID(mux.Vars(r)["pmid"])
	if err != nil {
		p.renderError(w, r, err)
		return
	}

	enrich, _ := strconv.ParseBool(r.URL.Query().Get("enrich"))
	detail, err := p.catalog.Detail(r.Context(), pmid, enrich && p.enrich)
	if err != nil {
		p.renderError(w, r, err)
		return
	}

	view := paperView{Detail: detail, EnrichAvailable: p.enrich}
	switch r.URL.Query().Get("marked") {
	case "created":
		view.Notice = "Curation recorded."
	case "existing":
		view.Notice = "This paper was already flagged with that outcome."
	}
	p.render(w, r, http.StatusOK, "paper", view)
}

func (p *Pages) curate(w http.ResponseWriter, r *http.Request) {
	pmid, err := httpapi.ParsePMID(mux.Vars(r)["pmid"])
	if err != nil {
		p.renderError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<10)
	if err := r.ParseForm(); err != nil {
		p.renderError(w, r, fmt.Errorf("%w: malformed form", domain.ErrInvalidArgument))
		return
	}
	outcome, err := domain.ParseOutcome(r.PostFormValue("outcome"))
	if err != nil {
		p.renderError(w, r, err)
		return
	}

	_, created, err := p.curator.Mark(r.Context(), pmid, outcome)
	if err != nil {
		p.renderError(w, r, err)
		return
	}

	marked := "existing"
	if created {
		marked = "created"
	}
	http.Redirect(w, r, fmt.Sprintf("/papers/%d?marked=%s", pmid, marked), http.StatusSeeOther)
}

type errorView struct {
	Status  int
	Title   string
	Message string
}

func (p *Pages) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpapi.StatusFor(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		p.logger.Error("page failed", "path", r.URL.Path, "request_id", httpapi.RequestIDFrom(r.Context()), "error", err)
		message = "Something went wrong while loading this page."
	}
	p.render(w, r, status, "error", errorView{Status: status, Title: http.StatusText(status), Message: message})
}

func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := p.templates[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		p.logger.Error("render template", "template", name, "path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// comboBox is the view model of the autocomplete partial.
type comboBox struct {
	ID    string
	Name  string
	Label string
	Kind  string
	Value string
}

var funcs = template.FuncMap{
	"score": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return strconv.FormatFloat(*v, 'f', 3, 64)
	},
	"floatValue": func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	},
	"intValue": func(v int) string {
		if v == 0 {
			return ""
		}
		return strconv.Itoa(v)
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	},
	"pubmedURL": func(pmid int64) string {
		return fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%d/", pmid)
	},
	"join": strings.Join,
	"combo": func(name, label, kind, value string) comboBox {
		return comboBox{ID: "combo-" + name, Name: name, Label: label, Kind: kind, Value: value}
	},
	"sortLabel": func(f domain.SortField) string {
		return columnLabels[f]
	},
	"outcomes": func() []domain.Outcome {
		return domain.Outcomes
	},
}
