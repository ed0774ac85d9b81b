package server

import (
	"net/http"
	"testing"
)

func TestAPIOpenAPIDocument(t *testing.T) {
	mux, _ := setupAPI(t)

	rec := doJSONRequest(t, mux, http.MethodGet, "/api/openapi.json", nil, http.StatusOK)
	var doc map[string]any
	decodeJSONBody(t, rec, &doc)

	if doc["openapi"] != "3.0.3" {
		t.Fatalf("expected OpenAPI 3.0.3, got %v", doc["openapi"])
	}
	info, _ := doc["info"].(map[string]any)
	if info["title"] != "Playbook API" {
		t.Fatalf("unexpected info block: %+v", info)
	}

	paths, _ := doc["paths"].(map[string]any)
	for _, want := range []string{
		"/api/standards",
		"/api/standards/{slug}",
		"/api/standards/{slug}/backlinks",
		"/api/stats",
		"/api/graph",
		"/api/audit/latest",
		"/api/audit",
		"/api/sync",
		"/healthz",
	} {
		if _, ok := paths[want]; !ok {
			t.Fatalf("expected path %s in document, got %v", want, paths)
		}
	}

	detail, _ := paths["/api/standards/{slug}"].(map[string]any)
	get, _ := detail["get"].(map[string]any)
	params, _ := get["parameters"].([]any)
	if len(params) != 1 {
		t.Fatalf("expected slug parameter, got %+v", get)
	}

	components, _ := doc["components"].(map[string]any)
	schemas, _ := components["schemas"].(map[string]any)
	frontMatter, _ := schemas["FrontMatter"].(map[string]any)
	if frontMatter == nil {
		t.Fatalf("expected FrontMatter schema, got %+v", components)
	}
	required, _ := frontMatter["required"].([]any)
	if len(required) == 0 {
		t.Fatalf("expected required front matter fields, got %+v", frontMatter)
	}
}

func TestAPIOpenAPIReflectsMutations(t *testing.T) {
	mux, _ := setupAPI(t, WithMutations(true))

	rec := doJSONRequest(t, mux, http.MethodGet, "/api/openapi.json", nil, http.StatusOK)
	var doc map[string]any
	decodeJSONBody(t, rec, &doc)

	ext, _ := doc["x-playbook"].(map[string]any)
	if ext["mutations"] != true {
		t.Fatalf("expected mutations flag in extension, got %+v", ext)
	}
}

func TestAPIOpenAPIUnderBasePath(t *testing.T) {
	mux, _ := setupAPI(t, WithBasePath("/playbook"))

	doJSONRequest(t, mux, http.MethodGet, "/playbook/api/openapi.json", nil, http.StatusOK)
}
