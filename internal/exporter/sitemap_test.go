package exporter

import (
	"strings"
	"testing"
	"time"
)

func TestBuildSitemapDedupesAndSorts(t *testing.T) {
	stamp := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	out := buildSitemap([]sitemapEntry{
		{Location: "https://example.com/b", LastMod: stamp},
		{Location: "https://example.com/a"},
		{Location: " https://example.com/b ", LastMod: stamp},
		{Location: ""},
	})

	if strings.Count(out, "<url>") != 2 {
		t.Fatalf("expected 2 urls after dedupe:\n%s", out)
	}
	first := strings.Index(out, "https://example.com/a")
	second := strings.Index(out, "https://example.com/b")
	if first == -1 || second == -1 || first > second {
		t.Fatalf("expected location-sorted output:\n%s", out)
	}
	if !strings.Contains(out, "<lastmod>2026-02-10T08:00:00Z</lastmod>") {
		t.Fatalf("expected lastmod for dated entry:\n%s", out)
	}
	if strings.Count(out, "<lastmod>") != 1 {
		t.Fatalf("zero times must not emit lastmod:\n%s", out)
	}
}

func TestBuildLLMSIndexSkipsEmptyGroups(t *testing.T) {
	out := buildLLMSIndex("Playbook", "", []CategoryGroup{
		{Category: "style", Entries: []IndexEntry{
			{Title: "SQL Style", URL: "https://example.com/standards/sql-style", Summary: "Readable SQL."},
			{Title: "No Summary", URL: "https://example.com/standards/no-summary"},
		}},
		{Category: "empty"},
	})

	if !strings.HasPrefix(out, "# Playbook\n") {
		t.Fatalf("missing title header:\n%s", out)
	}
	if strings.Contains(out, ">") {
		t.Fatalf("empty description must not emit a blockquote:\n%s", out)
	}
	if !strings.Contains(out, "- [SQL Style](https://example.com/standards/sql-style): Readable SQL.") {
		t.Fatalf("entry line malformed:\n%s", out)
	}
	if !strings.Contains(out, "- [No Summary](https://example.com/standards/no-summary)\n") {
		t.Fatalf("summary-less entry malformed:\n%s", out)
	}
	if strings.Contains(out, "## empty") {
		t.Fatalf("empty group should be skipped:\n%s", out)
	}
}

func TestBuildRobots(t *testing.T) {
	out := buildRobots("https://example.com/")
	if !strings.Contains(out, "Sitemap: https://example.com/sitemap.xml") {
		t.Fatalf("sitemap line missing:\n%s", out)
	}

	fallback := buildRobots("")
	if !strings.Contains(fallback, "Sitemap: http://localhost/sitemap.xml") {
		t.Fatalf("empty base should fall back to localhost:\n%s", fallback)
	}
}
