package mcpserver

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"sort"
	"strings"
	"testing"
	"time"

	urlkit "github.com/goliatone/go-urlkit"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/mwtmurphy/go-playbook/internal/audit"
	"github.com/mwtmurphy/go-playbook/internal/corpus"
	"github.com/mwtmurphy/go-playbook/internal/markdown"
	"github.com/mwtmurphy/go-playbook/internal/refgraph"
	"github.com/mwtmurphy/go-playbook/internal/render"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
	"github.com/mwtmurphy/go-playbook/standards"
)

func TestServerListsToolsAndResources(t *testing.T) {
	session, _, _ := setupSession(t)
	ctx := context.Background()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assertSameSet(t, "tools", names, []string{
		toolListStandards,
		toolReadStandard,
		toolSearchStandards,
		toolAuditCorpus,
	})

	resources, err := session.ListResources(ctx, nil)
	if err != nil {
		t.Fatalf("list resources: %v", err)
	}
	uris := make([]string, 0, len(resources.Resources))
	for _, resource := range resources.Resources {
		uris = append(uris, resource.URI)
	}
	assertSameSet(t, "resources", uris, []string{
		"playbook://standards",
		"playbook://standards/sql-style",
		"playbook://standards/python-style",
		"playbook://standards/testing-practices",
		"playbook://standards/draft-notes",
	})
}

func TestListStandardsTool(t *testing.T) {
	session, _, _ := setupSession(t)

	result := callTool(t, session, toolListStandards, nil)
	out := decodeStructuredContent[listStandardsResult](t, result.StructuredContent)
	assertSameSet(t, "standards", entrySlugs(out.Standards), []string{"sql-style", "python-style", "testing-practices"})
	if out.Total != 3 {
		t.Fatalf("expected total 3, got %d", out.Total)
	}
	for _, entry := range out.Standards {
		if entry.Status != "published" {
			t.Fatalf("expected published entries only, got %s=%s", entry.Slug, entry.Status)
		}
	}

	result = callTool(t, session, toolListStandards, map[string]any{"category": "testing"})
	out = decodeStructuredContent[listStandardsResult](t, result.StructuredContent)
	assertSameSet(t, "standards", entrySlugs(out.Standards), []string{"testing-practices"})

	result = callTool(t, session, toolListStandards, map[string]any{"tag": "sql"})
	out = decodeStructuredContent[listStandardsResult](t, result.StructuredContent)
	assertSameSet(t, "standards", entrySlugs(out.Standards), []string{"sql-style"})

	result = callTool(t, session, toolListStandards, map[string]any{"status": "draft"})
	out = decodeStructuredContent[listStandardsResult](t, result.StructuredContent)
	assertSameSet(t, "standards", entrySlugs(out.Standards), []string{"draft-notes"})
}

func TestReadStandardTool(t *testing.T) {
	session, _, _ := setupSession(t)

	result := callTool(t, session, toolReadStandard, map[string]any{"slug": "sql-style"})
	out := decodeStructuredContent[readStandardResult](t, result.StructuredContent)
	if out.Slug != "sql-style" || out.Format != formatMarkdown {
		t.Fatalf("unexpected read result: %+v", out)
	}
	if !strings.Contains(out.Content, "# SQL Style Standards") || !strings.Contains(out.Content, "## Formatting") {
		t.Fatalf("markdown content missing headings: %q", out.Content)
	}
	if strings.Contains(out.Content, "last_updated:") {
		t.Fatalf("markdown content leaked front matter: %q", out.Content)
	}

	result = callTool(t, session, toolReadStandard, map[string]any{"slug": "sql-style", "format": "html"})
	out = decodeStructuredContent[readStandardResult](t, result.StructuredContent)
	if out.Format != formatHTML {
		t.Fatalf("expected html format, got %q", out.Format)
	}
	if !strings.Contains(out.Content, "<h2") {
		t.Fatalf("html content missing headings: %q", out.Content)
	}
	if !strings.Contains(out.Content, "python-style") {
		t.Fatalf("expected corpus link rewritten to the python-style page: %q", out.Content)
	}

	// Slug-addressed reads cover drafts.
	result = callTool(t, session, toolReadStandard, map[string]any{"slug": "draft-notes"})
	out = decodeStructuredContent[readStandardResult](t, result.StructuredContent)
	if out.Status != "draft" {
		t.Fatalf("expected draft status, got %q", out.Status)
	}
}

func TestReadStandardToolErrors(t *testing.T) {
	session, _, _ := setupSession(t)

	callToolExpectFailure(t, session, toolReadStandard, map[string]any{"slug": "missing-doc"})
	callToolExpectFailure(t, session, toolReadStandard, map[string]any{"slug": ""})
	callToolExpectFailure(t, session, toolReadStandard, map[string]any{"slug": "sql-style", "format": "pdf"})
}

func TestSearchStandardsTool(t *testing.T) {
	session, _, _ := setupSession(t)

	result := callTool(t, session, toolSearchStandards, map[string]any{"query": "keywords"})
	out := decodeStructuredContent[searchStandardsResult](t, result.StructuredContent)
	assertSameSet(t, "standards", entrySlugs(out.Standards), []string{"sql-style"})

	result = callTool(t, session, toolSearchStandards, map[string]any{"query": "keywords", "category": "testing"})
	out = decodeStructuredContent[searchStandardsResult](t, result.StructuredContent)
	if out.Total != 0 {
		t.Fatalf("expected no matches outside the category, got %+v", out.Standards)
	}

	callToolExpectFailure(t, session, toolSearchStandards, map[string]any{"query": "  "})
}

func TestAuditCorpusTool(t *testing.T) {
	session, _, _ := setupSession(t)

	// No history yet, so the first call runs a fresh audit.
	result := callTool(t, session, toolAuditCorpus, nil)
	first := decodeStructuredContent[auditCorpusResult](t, result.StructuredContent)
	if first.RunID == "" {
		t.Fatal("expected a run id")
	}
	if first.Status != audit.RunStatusFinished {
		t.Fatalf("expected finished run, got %q", first.Status)
	}
	if first.Documents != 4 {
		t.Fatalf("expected 4 documents evaluated, got %d", first.Documents)
	}

	result = callTool(t, session, toolAuditCorpus, nil)
	second := decodeStructuredContent[auditCorpusResult](t, result.StructuredContent)
	if second.RunID != first.RunID {
		t.Fatalf("expected the latest report %s, got %s", first.RunID, second.RunID)
	}

	result = callTool(t, session, toolAuditCorpus, map[string]any{"refresh": true})
	third := decodeStructuredContent[auditCorpusResult](t, result.StructuredContent)
	if third.RunID == first.RunID {
		t.Fatal("expected refresh to produce a new run")
	}
}

func TestStandardsIndexResource(t *testing.T) {
	session, _, _ := setupSession(t)

	resource, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "playbook://standards"})
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if len(resource.Contents) != 1 {
		t.Fatalf("expected one content item, got %d", len(resource.Contents))
	}
	content := resource.Contents[0]
	if content.MIMEType != "application/json" {
		t.Fatalf("expected application/json, got %q", content.MIMEType)
	}

	var payload struct {
		Total int `json:"total"`
		Stats struct {
			Documents int `json:"documents"`
			Published int `json:"published"`
			Drafts    int `json:"drafts"`
		} `json:"stats"`
		Standards []struct {
			Slug   string `json:"slug"`
			Status string `json:"status"`
			URI    string `json:"uri"`
		} `json:"standards"`
	}
	if err := json.Unmarshal([]byte(content.Text), &payload); err != nil {
		t.Fatalf("decode index payload: %v", err)
	}
	if payload.Total != 4 {
		t.Fatalf("expected the inventory to cover drafts too, got total %d", payload.Total)
	}
	if payload.Stats.Documents != 4 || payload.Stats.Published != 3 || payload.Stats.Drafts != 1 {
		t.Fatalf("unexpected stats: %+v", payload.Stats)
	}
	for _, entry := range payload.Standards {
		if entry.URI != "playbook://standards/"+entry.Slug {
			t.Fatalf("entry %s carries uri %q", entry.Slug, entry.URI)
		}
	}
}

func TestDocumentResource(t *testing.T) {
	session, _, _ := setupSession(t)
	ctx := context.Background()

	resource, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "playbook://standards/python-style"})
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if len(resource.Contents) != 1 {
		t.Fatalf("expected one content item, got %d", len(resource.Contents))
	}
	content := resource.Contents[0]
	if content.MIMEType != "text/markdown" {
		t.Fatalf("expected text/markdown, got %q", content.MIMEType)
	}
	if !strings.Contains(content.Text, "## Naming") {
		t.Fatalf("document content missing headings: %q", content.Text)
	}

	if _, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "playbook://standards/draft-notes"}); err != nil {
		t.Fatalf("read draft document: %v", err)
	}

	if _, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "playbook://standards/missing-doc"}); err == nil {
		t.Fatal("expected error for unknown slug")
	}
}

func TestRefreshResourcesTracksCorpus(t *testing.T) {
	session, srv, stack := setupSession(t)
	ctx := context.Background()

	doc := buildMCPDocument(t, "standards/code_reviews.md", mcpCodeReviewSource)
	if _, err := stack.corpus.Import(ctx, doc, corpus.ImportOptions{}); err != nil {
		t.Fatalf("import new document: %v", err)
	}

	// Reads work through the slug template before any refresh.
	if _, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "playbook://standards/code-reviews"}); err != nil {
		t.Fatalf("read new document: %v", err)
	}

	if err := srv.RefreshResources(ctx); err != nil {
		t.Fatalf("refresh resources: %v", err)
	}
	resources, err := session.ListResources(ctx, nil)
	if err != nil {
		t.Fatalf("list resources: %v", err)
	}
	found := false
	for _, resource := range resources.Resources {
		if resource.URI == "playbook://standards/code-reviews" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the refreshed listing to include the new document")
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	srv, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.serve(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "playbook-test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		t.Fatalf("connect MCP client: %v", err)
	}
	defer session.Close()

	cancel()
	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestServeGuards(t *testing.T) {
	var nilServer *Server
	if err := nilServer.serve(context.Background(), &mcp.StdioTransport{}); err == nil {
		t.Fatal("expected error for nil server")
	}
	if err := (&Server{}).serve(context.Background(), &mcp.StdioTransport{}); err == nil {
		t.Fatal("expected error for unconfigured server")
	}
}

// Helper constructors ---------------------------------------------------------

const mcpSQLStyleSource = `---
title: SQL Style Standards
slug: sql-style
category: style
status: published
summary: Keep SQL readable and consistent.
last_updated: 2026-02-10
tags:
  - sql
  - style
---

# SQL Style Standards

Follow [Python naming](./python_style.md#naming) where both apply.

## Formatting

Uppercase keywords, lowercase identifiers.
`

const mcpPythonStyleSource = `---
title: Python Style Standards
slug: python-style
category: style
status: published
last_updated: 2026-02-12
---

# Python Style Standards

## Naming

### Constants

## Imports
`

const mcpTestingSource = `---
title: Testing Practices
slug: testing-practices
category: testing
status: published
last_updated: 2026-02-14
---

# Testing Practices

## Unit Tests
`

const mcpDraftSource = `---
title: Draft Notes
slug: draft-notes
category: general
status: draft
---

# Draft Notes
`

const mcpCodeReviewSource = `---
title: Code Review Standards
slug: code-reviews
category: process
status: published
last_updated: 2026-02-16
---

# Code Review Standards

## Checklist
`

type testStack struct {
	repo   *corpus.MemoryStandardRepository
	corpus standards.Service
}

func newTestServer(tb testing.TB) (*Server, testStack) {
	tb.Helper()

	repo := seedMCPCorpus(tb)
	corpusSvc, err := corpus.NewService(repo, markdown.NewScanner())
	if err != nil {
		tb.Fatalf("new corpus service: %v", err)
	}

	graphSvc, err := refgraph.NewService(repo)
	if err != nil {
		tb.Fatalf("new graph service: %v", err)
	}

	manager := urlkit.NewRouteManager(render.DefaultRouteConfig("https://playbook.example.com"))
	renderSvc, err := render.NewService(repo, manager, render.Config{})
	if err != nil {
		tb.Fatalf("new render service: %v", err)
	}

	auditSvc, err := audit.NewService(audit.NewMemoryRepository(), repo, graphSvc, markdown.NewScanner(), audit.Config{})
	if err != nil {
		tb.Fatalf("new audit service: %v", err)
	}

	srv := NewServer(
		WithCorpusService(corpusSvc),
		WithRenderService(renderSvc),
		WithAuditService(auditSvc),
	)
	return srv, testStack{repo: repo, corpus: corpusSvc}
}

func setupSession(t *testing.T) (*mcp.ClientSession, *Server, testStack) {
	t.Helper()

	srv, stack := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := srv.RefreshResources(ctx); err != nil {
		t.Fatalf("refresh resources: %v", err)
	}

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	go func() {
		_ = srv.serve(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "playbook-test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect MCP client: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })

	return session, srv, stack
}

func mcpSources() map[string]string {
	return map[string]string{
		"standards/sql_style.md":         mcpSQLStyleSource,
		"standards/python_style.md":      mcpPythonStyleSource,
		"standards/testing_practices.md": mcpTestingSource,
		"standards/draft_notes.md":       mcpDraftSource,
	}
}

func seedMCPCorpus(tb testing.TB) *corpus.MemoryStandardRepository {
	tb.Helper()

	repo := corpus.NewMemoryStandardRepository()
	svc, err := corpus.NewService(repo, markdown.NewScanner())
	if err != nil {
		tb.Fatalf("new corpus service: %v", err)
	}
	for path, raw := range mcpSources() {
		doc := buildMCPDocument(tb, path, raw)
		if _, err := svc.Import(context.Background(), doc, corpus.ImportOptions{}); err != nil {
			tb.Fatalf("import %s: %v", path, err)
		}
	}
	return repo
}

func buildMCPDocument(tb testing.TB, path, source string) *interfaces.Document {
	tb.Helper()

	doc, err := markdown.BuildDocument(path, []byte(source), time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		tb.Fatalf("build document %s: %v", path, err)
	}
	sum := sha256.Sum256([]byte(source))
	doc.Checksum = sum[:]
	return doc
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if result == nil {
		t.Fatalf("call %s returned nil result", name)
	}
	if result.IsError {
		t.Fatalf("call %s returned error content: %+v", name, result.Content)
	}
	return result
}

// callToolExpectFailure accepts either a protocol error or an error-flagged
// result, which keeps the assertion stable across SDK error mappings.
func callToolExpectFailure(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return
	}
	if result == nil || !result.IsError {
		t.Fatalf("expected %s to fail, got %+v", name, result)
	}
}

func decodeStructuredContent[T any](t *testing.T, value any) T {
	t.Helper()

	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return out
}

func entrySlugs(entries []standardEntry) []string {
	slugs := make([]string, 0, len(entries))
	for _, entry := range entries {
		slugs = append(slugs, entry.Slug)
	}
	return slugs
}

func assertSameSet(t *testing.T, label string, actual, expected []string) {
	t.Helper()

	a := append([]string(nil), actual...)
	e := append([]string(nil), expected...)
	sort.Strings(a)
	sort.Strings(e)
	if len(a) != len(e) {
		t.Fatalf("expected %d %s %v, got %v", len(e), label, e, a)
	}
	for i := range a {
		if a[i] != e[i] {
			t.Fatalf("expected %s %v, got %v", label, e, a)
		}
	}
}
