package server

import (
	"encoding/json"
	"net/http"

	"github.com/mwtmurphy/go-playbook/internal/openapi"
	"github.com/mwtmurphy/go-playbook/internal/profile"
)

const apiVersion = "1.0.0"

func (api *API) registerDocRoutes(mux *http.ServeMux, base string) {
	mux.HandleFunc("GET "+joinPath(base, "/openapi.json"), api.handleOpenAPI)
}

func (api *API) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.openAPIDocument().AsMap())
}

// openAPIDocument describes the mounted routes. Paths are relative to the
// server URL, so the base path prefix is not repeated here.
func (api *API) openAPIDocument() *openapi.Document {
	doc := openapi.NewDocument("Playbook API", apiVersion)

	doc.AddPath("/api/standards", map[string]any{
		"get": operation("List standards", "Summaries of every standard, filterable by status, category, and tag."),
	})
	doc.AddPath("/api/standards/{slug}", map[string]any{
		"get": operationWithSlug("Get a standard", "Full standard detail; sections, references, and revisions load via the include parameter."),
	})
	doc.AddPath("/api/standards/{slug}/backlinks", map[string]any{
		"get": operationWithSlug("List backlinks", "Standards whose references resolve to this slug."),
	})
	doc.AddPath("/api/stats", map[string]any{
		"get": operation("Corpus statistics", "Document, status, and reference counts for the stored corpus."),
	})
	doc.AddPath("/api/graph", map[string]any{
		"get": operation("Reference graph", "Every stored standard and the internal references between them."),
	})
	doc.AddPath("/api/audit/latest", map[string]any{
		"get": operation("Latest audit report", "The most recent audit run with its issues."),
	})
	doc.AddPath("/api/audit", map[string]any{
		"post": operation("Run an audit", "Audits the stored corpus. Answers 403 unless mutations are enabled."),
	})
	doc.AddPath("/api/sync", map[string]any{
		"post": operation("Sync the corpus", "Imports the document source. Answers 403 unless mutations are enabled."),
	})
	doc.AddPath("/healthz", map[string]any{
		"get": operation("Health check", "Answers 200 while the API is serving."),
	})

	var schema map[string]any
	if err := json.Unmarshal(profile.DefaultSchemaJSON(), &schema); err == nil {
		doc.AddSchema("FrontMatter", schema)
	}

	doc.SetExtension("x-playbook", map[string]any{
		"mutations": api.allowMutations,
	})

	return doc
}

func operation(summary, description string) map[string]any {
	return map[string]any{
		"summary":     summary,
		"description": description,
	}
}

func operationWithSlug(summary, description string) map[string]any {
	op := operation(summary, description)
	op["parameters"] = []any{
		map[string]any{
			"name":     "slug",
			"in":       "path",
			"required": true,
			"schema":   map[string]any{"type": "string"},
		},
	}
	return op
}
