package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mwtmurphy/go-playbook/internal/refgraph"
	"github.com/mwtmurphy/go-playbook/internal/render"
	"github.com/mwtmurphy/go-playbook/standards"
)

const (
	includeHTML    = "html"
	includeOutline = "outline"
	includeRefs    = "refs"
)

// standardSummary is the list payload. Bodies stay on the detail endpoint.
type standardSummary struct {
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Summary     *string    `json:"summary,omitempty"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags,omitempty"`
	Status      string     `json:"status"`
	SourcePath  string     `json:"source_path"`
	Lines       int        `json:"lines"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// standardResponse is the detail payload: the stored record plus whatever
// ?include= asked for.
type standardResponse struct {
	*standards.Standard
	HTML    string             `json:"html,omitempty"`
	Outline *standards.Outline `json:"outline,omitempty"`
}

func (api *API) registerStandardRoutes(mux *http.ServeMux, base string) {
	root := joinPath(base, "/standards")

	mux.HandleFunc("GET "+root, api.handleListStandards)
	mux.HandleFunc("GET "+root+"/{slug}", api.handleGetStandard)
	mux.HandleFunc("GET "+root+"/{slug}/backlinks", api.handleStandardBacklinks)
	mux.HandleFunc("GET "+joinPath(base, "/stats"), api.handleCorpusStats)
}

func (api *API) handleListStandards(w http.ResponseWriter, r *http.Request) {
	if api.corpus == nil {
		writeErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", "corpus service not configured")
		return
	}

	query := r.URL.Query()
	filter := standards.ListFilter{
		Category: strings.TrimSpace(query.Get("category")),
		Tag:      strings.TrimSpace(query.Get("tag")),
		Status:   strings.TrimSpace(query.Get("status")),
	}

	var opts []standards.ListOption
	if parseBoolQuery(query.Get("drafts"), false) {
		opts = append(opts, standards.IncludeDrafts())
	}

	q := strings.TrimSpace(query.Get("q"))
	if q == "" {
		records, err := api.corpus.List(r.Context(), filter, opts...)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summarize(records))
		return
	}

	// Search drops drafts on its own, so an explicit status filter has to
	// widen the candidate set before the filter narrows it again.
	if filter.Status != "" && !standards.HasOption(opts, standards.IncludeDrafts()) {
		opts = append(opts, standards.IncludeDrafts())
	}
	records, err := api.corpus.Search(r.Context(), q, opts...)
	if err != nil {
		writeError(w, err)
		return
	}

	filtered := make([]*standards.Standard, 0, len(records))
	for _, record := range records {
		if matchesListFilter(record, filter) {
			filtered = append(filtered, record)
		}
	}
	writeJSON(w, http.StatusOK, summarize(filtered))
}

func (api *API) handleGetStandard(w http.ResponseWriter, r *http.Request) {
	if api.corpus == nil {
		writeErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", "corpus service not configured")
		return
	}

	include, issues := parseInclude(r.URL.Query().Get("include"))
	if len(issues) > 0 {
		writeIssues(w, "validation_failed", "invalid include parameter", issues)
		return
	}
	if include[includeHTML] && api.renderer == nil {
		writeErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", "render service not configured")
		return
	}

	slug := r.PathValue("slug")

	// Slug-addressed reads cover drafts; the list keeps its published-only
	// default.
	opts := []standards.GetOption{standards.WithSections(), standards.IncludeDrafts()}
	if include[includeRefs] {
		opts = append(opts, standards.WithReferences())
	}
	record, err := api.corpus.Get(r.Context(), slug, opts...)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := standardResponse{Standard: record}
	if include[includeHTML] {
		page, err := api.renderer.Render(r.Context(), slug, render.RenderOptions{})
		if err != nil {
			writeError(w, err)
			return
		}
		resp.HTML = page.HTML
	}
	if include[includeOutline] {
		outline, err := api.corpus.Outline(r.Context(), slug)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Outline = outline
	}

	writeJSON(w, http.StatusOK, resp)
}

func (api *API) handleStandardBacklinks(w http.ResponseWriter, r *http.Request) {
	if api.graph == nil {
		writeErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", "graph service not configured")
		return
	}

	links, err := api.graph.Backlinks(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	if links == nil {
		links = []*refgraph.Backlink{}
	}
	writeJSON(w, http.StatusOK, links)
}

func (api *API) handleCorpusStats(w http.ResponseWriter, r *http.Request) {
	if api.corpus == nil {
		writeErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", "corpus service not configured")
		return
	}

	stats, err := api.corpus.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func summarize(records []*standards.Standard) []standardSummary {
	out := make([]standardSummary, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		out = append(out, standardSummary{
			Slug:        record.Slug,
			Title:       record.Title,
			Summary:     record.Summary,
			Category:    record.Category,
			Tags:        record.Tags,
			Status:      record.Status,
			SourcePath:  record.SourcePath,
			Lines:       record.Lines,
			LastUpdated: record.LastUpdated,
			UpdatedAt:   record.UpdatedAt,
		})
	}
	return out
}

// matchesListFilter mirrors the corpus list semantics so search results obey
// the same category, tag, and status parameters.
func matchesListFilter(record *standards.Standard, filter standards.ListFilter) bool {
	if record == nil {
		return false
	}
	if filter.Status != "" && !strings.EqualFold(record.Status, filter.Status) {
		return false
	}
	if filter.Category != "" && !strings.EqualFold(record.Category, filter.Category) {
		return false
	}
	if filter.Tag != "" {
		needle := strings.ToLower(filter.Tag)
		found := false
		for _, tag := range record.Tags {
			if strings.Contains(strings.ToLower(tag), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func parseInclude(raw string) (map[string]bool, []fieldIssue) {
	include := make(map[string]bool)
	var issues []fieldIssue
	for _, token := range strings.Split(raw, ",") {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		switch token {
		case includeHTML, includeOutline, includeRefs:
			include[token] = true
		default:
			issues = append(issues, fieldIssue{
				Field:   "include",
				Message: fmt.Sprintf("unknown include %q", token),
			})
		}
	}
	return include, issues
}
