package corpus_test

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mwtmurphy/go-playbook/internal/corpus"
	"github.com/mwtmurphy/go-playbook/internal/markdown"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

const sqlStyleSource = `---
title: SQL Style Standards
slug: sql-style
summary: Conventions for SQL
category: style
status: published
tags:
  - sql
last_updated: 2025-11-03T00:00:00Z
---

# SQL Style Standards

See [Python Style](./python_style.md) and [Naming](#naming).

## Naming

Use snake_case. Details at [sqlstyle.guide](https://www.sqlstyle.guide/).

### Tables

Plural table names.

## Formatting

Uppercase keywords.
`

func TestServiceImportCreatesStandard(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()
	svc := newTestService(t, repo)

	doc := buildDocument(t, "standards/sql_style.md", sqlStyleSource)

	result, err := svc.Import(context.Background(), doc, corpus.ImportOptions{})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(result.CreatedIDs) != 1 {
		t.Fatalf("expected 1 created, got %+v", result)
	}

	record, err := svc.Get(context.Background(), "sql-style", corpus.WithSections(), corpus.WithReferences())
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if record.Title != "SQL Style Standards" {
		t.Fatalf("unexpected title %q", record.Title)
	}
	if record.Category != "style" {
		t.Fatalf("unexpected category %q", record.Category)
	}
	if record.Status != "published" {
		t.Fatalf("unexpected status %q", record.Status)
	}
	if record.SourcePath != "standards/sql_style.md" {
		t.Fatalf("unexpected source path %q", record.SourcePath)
	}
	if record.LastUpdated == nil || record.LastUpdated.Year() != 2025 {
		t.Fatalf("expected last_updated from front matter, got %v", record.LastUpdated)
	}
	if record.Lines == 0 {
		t.Fatalf("expected line count to be recorded")
	}

	if len(record.Sections) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(record.Sections))
	}
	if record.Sections[0].Anchor != "sql-style-standards" {
		t.Fatalf("unexpected first anchor %q", record.Sections[0].Anchor)
	}

	if len(record.References) != 3 {
		t.Fatalf("expected 3 references, got %d", len(record.References))
	}

	var internal *corpus.Reference
	for _, ref := range record.References {
		if ref.Kind == corpus.ReferenceInternal {
			internal = ref
		}
	}
	if internal == nil || internal.TargetSlug == nil || *internal.TargetSlug != "python-style" {
		t.Fatalf("expected internal reference resolved to python-style, got %+v", internal)
	}

	revisions, err := svc.Revisions(context.Background(), "sql-style")
	if err != nil {
		t.Fatalf("revisions: %v", err)
	}
	if len(revisions) != 1 || revisions[0].Version != 1 {
		t.Fatalf("expected initial revision, got %+v", revisions)
	}
}

func TestServiceImportSkipsUnchanged(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()
	svc := newTestService(t, repo)

	doc := buildDocument(t, "standards/sql_style.md", sqlStyleSource)

	if _, err := svc.Import(context.Background(), doc, corpus.ImportOptions{}); err != nil {
		t.Fatalf("first import: %v", err)
	}

	again := buildDocument(t, "standards/sql_style.md", sqlStyleSource)
	result, err := svc.Import(context.Background(), again, corpus.ImportOptions{})
	if err != nil {
		t.Fatalf("second import: %v", err)
	}

	if len(result.SkippedIDs) != 1 || len(result.CreatedIDs) != 0 || len(result.UpdatedIDs) != 0 {
		t.Fatalf("expected unchanged file to be skipped, got %+v", result)
	}

	revisions, err := svc.Revisions(context.Background(), "sql-style")
	if err != nil {
		t.Fatalf("revisions: %v", err)
	}
	if len(revisions) != 1 {
		t.Fatalf("expected no new revision, got %d", len(revisions))
	}
}

func TestServiceImportUpdatesOnChange(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()
	svc := newTestService(t, repo)

	doc := buildDocument(t, "standards/sql_style.md", sqlStyleSource)
	if _, err := svc.Import(context.Background(), doc, corpus.ImportOptions{}); err != nil {
		t.Fatalf("first import: %v", err)
	}

	changed := buildDocument(t, "standards/sql_style.md", sqlStyleSource+"\n## Migrations\n\nForward-only.\n")
	result, err := svc.Import(context.Background(), changed, corpus.ImportOptions{})
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if len(result.UpdatedIDs) != 1 {
		t.Fatalf("expected update, got %+v", result)
	}

	record, err := svc.Get(context.Background(), "sql-style", corpus.WithSections())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(record.Sections) != 5 {
		t.Fatalf("expected structure to be replaced, got %d sections", len(record.Sections))
	}

	revisions, err := svc.Revisions(context.Background(), "sql-style")
	if err != nil {
		t.Fatalf("revisions: %v", err)
	}
	if len(revisions) != 2 || revisions[1].Version != 2 {
		t.Fatalf("expected second revision, got %+v", revisions)
	}
}

func TestServiceImportSlugFallsBackToFileStem(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()
	svc := newTestService(t, repo)

	source := "---\ntitle: Chrome Extension Development\nstatus: published\n---\n\n# Chrome Extension Development\n\nManifest V3 only.\n"
	doc := buildDocument(t, "standards/chrome_extension_dev.md", source)

	if _, err := svc.Import(context.Background(), doc, corpus.ImportOptions{}); err != nil {
		t.Fatalf("import: %v", err)
	}

	if _, err := svc.Get(context.Background(), "chrome-extension-dev"); err != nil {
		t.Fatalf("expected slug derived from file stem: %v", err)
	}
}

func TestServiceImportDryRunWritesNothing(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()
	svc := newTestService(t, repo)

	doc := buildDocument(t, "standards/sql_style.md", sqlStyleSource)

	if _, err := svc.Import(context.Background(), doc, corpus.ImportOptions{DryRun: true}); err != nil {
		t.Fatalf("dry run: %v", err)
	}

	if _, err := svc.Get(context.Background(), "sql-style", corpus.IncludeDrafts()); !corpus.IsNotFound(err) {
		t.Fatalf("expected nothing persisted, got %v", err)
	}
}

func TestServiceImportAllReportsDuplicateSlugs(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()

	docs := []*interfaces.Document{
		buildDocument(t, "standards/sql_style.md", sqlStyleSource),
		buildDocument(t, "standards/zz_copy.md", sqlStyleSource),
	}
	svc := newTestService(t, repo, corpus.WithSource(sliceSource(docs)))

	result, err := svc.ImportAll(context.Background(), corpus.ImportOptions{})
	if err == nil {
		t.Fatalf("expected duplicate slug error")
	}
	if !errors.Is(err, corpus.ErrSlugExists) {
		t.Fatalf("expected ErrSlugExists, got %v", err)
	}
	if len(result.CreatedIDs) != 1 {
		t.Fatalf("expected first file to win, got %+v", result)
	}
}

func TestServiceSyncDeletesOrphans(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()

	first := []*interfaces.Document{
		buildDocument(t, "standards/sql_style.md", sqlStyleSource),
		buildDocument(t, "standards/git_workflow.md", "---\ntitle: Git Workflow\nstatus: published\n---\n\n# Git Workflow\n\nSquash on merge.\n"),
	}
	source := &switchableSource{docs: first}
	svc := newTestService(t, repo, corpus.WithSource(source))

	if _, err := svc.Sync(context.Background(), corpus.SyncOptions{UpdateExisting: true}); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	source.docs = first[:1]
	result, err := svc.Sync(context.Background(), corpus.SyncOptions{UpdateExisting: true, DeleteOrphaned: true})
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if result.Deleted != 1 {
		t.Fatalf("expected 1 deletion, got %+v", result)
	}
	if _, err := svc.Get(context.Background(), "git-workflow", corpus.IncludeDrafts()); !corpus.IsNotFound(err) {
		t.Fatalf("expected orphan to be removed, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "sql-style"); err != nil {
		t.Fatalf("expected survivor to remain: %v", err)
	}
}

func TestServiceSyncWithoutUpdateExistingSkipsChanged(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()

	source := &switchableSource{docs: []*interfaces.Document{
		buildDocument(t, "standards/sql_style.md", sqlStyleSource),
	}}
	svc := newTestService(t, repo, corpus.WithSource(source))

	if _, err := svc.Sync(context.Background(), corpus.SyncOptions{}); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	source.docs = []*interfaces.Document{
		buildDocument(t, "standards/sql_style.md", sqlStyleSource+"\nExtra paragraph.\n"),
	}
	result, err := svc.Sync(context.Background(), corpus.SyncOptions{})
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if result.Skipped != 1 || result.Updated != 0 {
		t.Fatalf("expected changed file to be skipped without UpdateExisting, got %+v", result)
	}
}

func TestServiceReindexRebuildsStructure(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()
	svc := newTestService(t, repo)

	if _, err := svc.Import(context.Background(), buildDocument(t, "standards/sql_style.md", sqlStyleSource), corpus.ImportOptions{}); err != nil {
		t.Fatalf("import: %v", err)
	}

	before, err := svc.Get(context.Background(), "sql-style", corpus.WithSections(), corpus.WithReferences())
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	// Wipe the derived rows to simulate an index that fell out of step.
	if err := repo.ReplaceStructure(context.Background(), before.ID, nil, nil); err != nil {
		t.Fatalf("wipe structure: %v", err)
	}

	result, err := svc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if result.Documents != 1 || result.Failed != 0 {
		t.Fatalf("unexpected reindex counts: %+v", result)
	}
	if result.Sections != 4 || result.References != 3 {
		t.Fatalf("unexpected row counts: %+v", result)
	}

	after, err := svc.Get(context.Background(), "sql-style", corpus.WithSections(), corpus.WithReferences())
	if err != nil {
		t.Fatalf("get after reindex: %v", err)
	}
	if len(after.Sections) != len(before.Sections) || len(after.References) != len(before.References) {
		t.Fatalf("expected structure rebuilt, got %d sections %d references", len(after.Sections), len(after.References))
	}
	if after.Sections[0].Line != before.Sections[0].Line {
		t.Fatalf("expected source line mapping preserved, got %d want %d", after.Sections[0].Line, before.Sections[0].Line)
	}

	revisions, err := svc.Revisions(context.Background(), "sql-style")
	if err != nil {
		t.Fatalf("revisions: %v", err)
	}
	if len(revisions) != 1 {
		t.Fatalf("reindex must not add revisions, got %d", len(revisions))
	}
}

func TestServiceImportDerivesStableIdentity(t *testing.T) {
	first := corpus.NewMemoryStandardRepository()
	second := corpus.NewMemoryStandardRepository()

	doc := buildDocument(t, "standards/sql_style.md", sqlStyleSource)
	if _, err := newTestService(t, first).Import(context.Background(), doc, corpus.ImportOptions{}); err != nil {
		t.Fatalf("first import: %v", err)
	}
	doc = buildDocument(t, "standards/sql_style.md", sqlStyleSource)
	if _, err := newTestService(t, second).Import(context.Background(), doc, corpus.ImportOptions{}); err != nil {
		t.Fatalf("second import: %v", err)
	}

	a, err := first.GetBySlug(context.Background(), "sql-style")
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	b, err := second.GetBySlug(context.Background(), "sql-style")
	if err != nil {
		t.Fatalf("get second: %v", err)
	}
	if a.ID == uuid.Nil || a.ID != b.ID {
		t.Fatalf("expected both databases to agree on identity, got %s and %s", a.ID, b.ID)
	}
}

func TestServiceGetHidesDrafts(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()
	svc := newTestService(t, repo)

	source := "---\ntitle: Error Handling\nslug: error-handling\nstatus: draft\n---\n\n# Error Handling\n\nWrap with context.\n"
	doc := buildDocument(t, "standards/error_handling.md", source)
	if _, err := svc.Import(context.Background(), doc, corpus.ImportOptions{}); err != nil {
		t.Fatalf("import: %v", err)
	}

	if _, err := svc.Get(context.Background(), "error-handling"); !corpus.IsNotFound(err) {
		t.Fatalf("expected draft to be hidden, got %v", err)
	}

	record, err := svc.Get(context.Background(), "error-handling", corpus.IncludeDrafts())
	if err != nil {
		t.Fatalf("expected draft with IncludeDrafts: %v", err)
	}
	if record.Status != "draft" {
		t.Fatalf("unexpected status %q", record.Status)
	}
}

func TestServiceListFilters(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()
	svc := newTestService(t, repo)

	seedStandard(t, svc, "standards/sql_style.md", "SQL Style", "style", "published", "sql")
	seedStandard(t, svc, "standards/git_workflow.md", "Git Workflow", "workflow", "published", "git")
	seedStandard(t, svc, "standards/error_handling.md", "Error Handling", "style", "draft", "errors")

	all, err := svc.List(context.Background(), corpus.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected published only by default, got %d", len(all))
	}

	style, err := svc.List(context.Background(), corpus.ListFilter{Category: "style"})
	if err != nil {
		t.Fatalf("list category: %v", err)
	}
	if len(style) != 1 || style[0].Slug != "sql-style" {
		t.Fatalf("unexpected category filter result: %+v", style)
	}

	drafts, err := svc.List(context.Background(), corpus.ListFilter{Status: "draft"})
	if err != nil {
		t.Fatalf("list status: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Slug != "error-handling" {
		t.Fatalf("unexpected status filter result: %+v", drafts)
	}

	tagged, err := svc.List(context.Background(), corpus.ListFilter{Tag: "git"})
	if err != nil {
		t.Fatalf("list tag: %v", err)
	}
	if len(tagged) != 1 || tagged[0].Slug != "git-workflow" {
		t.Fatalf("unexpected tag filter result: %+v", tagged)
	}
}

func TestServiceSearchRanksTitleOverBody(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()
	svc := newTestService(t, repo)

	bodyHit := "---\ntitle: Git Workflow\nstatus: published\n---\n\n# Git Workflow\n\nAlways run the linting step before review.\n"
	titleHit := "---\ntitle: Linting Standards\nstatus: published\n---\n\n# Linting Standards\n\nConfigure the toolchain.\n"

	if _, err := svc.Import(context.Background(), buildDocument(t, "standards/git_workflow.md", bodyHit), corpus.ImportOptions{}); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := svc.Import(context.Background(), buildDocument(t, "standards/linting.md", titleHit), corpus.ImportOptions{}); err != nil {
		t.Fatalf("import: %v", err)
	}

	results, err := svc.Search(context.Background(), "LINTING")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both matches, got %d", len(results))
	}
	if results[0].Slug != "linting" {
		t.Fatalf("expected title match first, got %q", results[0].Slug)
	}

	none, err := svc.Search(context.Background(), "   ")
	if err != nil {
		t.Fatalf("empty search: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty query to match nothing, got %d", len(none))
	}
}

func TestServiceOutlineNesting(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()
	svc := newTestService(t, repo)

	doc := buildDocument(t, "standards/sql_style.md", sqlStyleSource)
	if _, err := svc.Import(context.Background(), doc, corpus.ImportOptions{}); err != nil {
		t.Fatalf("import: %v", err)
	}

	outline, err := svc.Outline(context.Background(), "sql-style")
	if err != nil {
		t.Fatalf("outline: %v", err)
	}

	if len(outline.Headings) != 1 {
		t.Fatalf("expected single root heading, got %d", len(outline.Headings))
	}
	root := outline.Headings[0]
	if root.Level != 1 || len(root.Children) != 2 {
		t.Fatalf("unexpected root shape: %+v", root)
	}
	naming := root.Children[0]
	if naming.Anchor != "naming" || len(naming.Children) != 1 {
		t.Fatalf("unexpected naming subtree: %+v", naming)
	}
	if naming.Children[0].Anchor != "tables" {
		t.Fatalf("expected tables nested under naming, got %+v", naming.Children[0])
	}
}

func TestServiceStats(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()
	svc := newTestService(t, repo)

	if _, err := svc.Import(context.Background(), buildDocument(t, "standards/sql_style.md", sqlStyleSource), corpus.ImportOptions{}); err != nil {
		t.Fatalf("import: %v", err)
	}
	seedStandard(t, svc, "standards/error_handling.md", "Error Handling", "style", "draft", "errors")

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	if stats.Documents != 2 || stats.Published != 1 || stats.Drafts != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.ByCategory["style"] != 2 {
		t.Fatalf("unexpected category counts: %+v", stats.ByCategory)
	}
	if stats.References != 3 || stats.InternalRefs != 1 || stats.ExternalRefs != 1 {
		t.Fatalf("unexpected reference counts: %+v", stats)
	}
	if stats.OldestUpdated == nil {
		t.Fatalf("expected oldest updated to be tracked")
	}
}

func TestServiceImportProfileWarnings(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()
	svc := newTestService(t, repo, corpus.WithProfileValidator(stubValidator{"last_updated is required"}))

	source := "---\ntitle: Git Workflow\nstatus: published\n---\n\n# Git Workflow\n\nSquash on merge.\n"
	result, err := svc.Import(context.Background(), buildDocument(t, "standards/git_workflow.md", source), corpus.ImportOptions{})
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if len(result.Warnings) != 1 {
		t.Fatalf("expected profile warning, got %+v", result.Warnings)
	}
	if result.Warnings[0] != "standards/git_workflow.md: last_updated is required" {
		t.Fatalf("unexpected warning %q", result.Warnings[0])
	}
	if len(result.CreatedIDs) != 1 {
		t.Fatalf("warnings must not block the import, got %+v", result)
	}
}

func TestServiceImportRecordsActivity(t *testing.T) {
	repo := corpus.NewMemoryStandardRepository()
	sink := &recordingSink{}
	svc := newTestService(t, repo, corpus.WithActivitySink(sink))

	doc := buildDocument(t, "standards/sql_style.md", sqlStyleSource)
	if _, err := svc.Import(context.Background(), doc, corpus.ImportOptions{}); err != nil {
		t.Fatalf("import: %v", err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 activity record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.Verb != "create" || record.ObjectType != "standard" {
		t.Fatalf("unexpected activity record: %+v", record)
	}
	if record.Data["slug"] != "sql-style" {
		t.Fatalf("expected slug in activity data, got %+v", record.Data)
	}
}

// Helper constructors ---------------------------------------------------------

func newTestService(tb testing.TB, repo corpus.StandardRepository, opts ...corpus.ServiceOption) corpus.Service {
	tb.Helper()
	base := []corpus.ServiceOption{
		corpus.WithClock(func() time.Time {
			return time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
		}),
	}
	svc, err := corpus.NewService(repo, markdown.NewScanner(), append(base, opts...)...)
	if err != nil {
		tb.Fatalf("new service: %v", err)
	}
	return svc
}

func buildDocument(tb testing.TB, path, source string) *interfaces.Document {
	tb.Helper()
	doc, err := markdown.BuildDocument(path, []byte(source), time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		tb.Fatalf("build document %s: %v", path, err)
	}
	sum := sha256.Sum256([]byte(source))
	doc.Checksum = sum[:]
	return doc
}

func seedStandard(tb testing.TB, svc corpus.Service, path, title, category, status, tag string) {
	tb.Helper()
	source := fmt.Sprintf("---\ntitle: %s\ncategory: %s\nstatus: %s\ntags:\n  - %s\n---\n\n# %s\n\nBody text.\n", title, category, status, tag, title)
	if _, err := svc.Import(context.Background(), buildDocument(tb, path, source), corpus.ImportOptions{}); err != nil {
		tb.Fatalf("seed %s: %v", path, err)
	}
}

type sliceSource []*interfaces.Document

func (s sliceSource) Load(context.Context) ([]*interfaces.Document, error) {
	return s, nil
}

type switchableSource struct {
	docs []*interfaces.Document
}

func (s *switchableSource) Load(context.Context) ([]*interfaces.Document, error) {
	return s.docs, nil
}

type stubValidator []string

func (s stubValidator) ValidateDocument(*interfaces.Document) []string {
	return s
}

type recordingSink struct {
	records []interfaces.ActivityRecord
}

func (s *recordingSink) Log(_ context.Context, record interfaces.ActivityRecord) error {
	s.records = append(s.records, record)
	return nil
}
