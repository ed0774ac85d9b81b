package markdown

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

func TestParseFrontMatter(t *testing.T) {
	data := readFixture(t, "testdata/basic.md")

	fm, body, err := ParseFrontMatter(data)
	if err != nil {
		t.Fatalf("ParseFrontMatter: %v", err)
	}

	if fm.Title != "SQL Style Standards" {
		t.Fatalf("FrontMatter Title mismatch, got %q", fm.Title)
	}
	if fm.Slug != "sql-style" {
		t.Fatalf("FrontMatter Slug mismatch, got %q", fm.Slug)
	}
	if fm.Category != "style" {
		t.Fatalf("FrontMatter Category mismatch, got %q", fm.Category)
	}
	if fm.Status != "published" {
		t.Fatalf("FrontMatter Status mismatch, got %q", fm.Status)
	}
	if len(fm.Tags) != 2 || fm.Tags[0] != "sql" {
		t.Fatalf("FrontMatter Tags mismatch: %#v", fm.Tags)
	}
	if fm.Version != "1.2" {
		t.Fatalf("FrontMatter Version mismatch, got %q", fm.Version)
	}
	if !fm.HasLastUpdated() {
		t.Fatalf("expected LastUpdated to be set")
	}
	if got := fm.LastUpdated.UTC(); got.Year() != 2025 || got.Month() != time.November || got.Day() != 3 {
		t.Fatalf("FrontMatter LastUpdated mismatch: %v", got)
	}
	if fm.Custom["owner"] != "data-platform" {
		t.Fatalf("FrontMatter Custom owner missing: %#v", fm.Custom)
	}
	if fm.Raw["summary"] != "Conventions for writing readable, maintainable SQL" {
		t.Fatalf("FrontMatter Raw summary missing: %#v", fm.Raw)
	}
	if len(body) == 0 || !strings.Contains(string(body), "# SQL Style Standards") {
		t.Fatalf("Markdown body not returned correctly: %q", string(body))
	}
	if strings.Contains(string(body), "last_updated:") {
		t.Fatalf("expected front matter to be stripped from body")
	}
}

func TestParseFrontMatterWithoutEnvelope(t *testing.T) {
	fm, body, err := ParseFrontMatter([]byte("# Bare Document\n\nNo envelope here.\n"))
	if err != nil {
		t.Fatalf("ParseFrontMatter: %v", err)
	}

	if fm.Title != "" || fm.Slug != "" {
		t.Fatalf("expected empty front matter, got %#v", fm)
	}
	if fm.HasLastUpdated() {
		t.Fatalf("expected LastUpdated to be unset")
	}
	if !strings.Contains(string(body), "# Bare Document") {
		t.Fatalf("expected body to be preserved, got %q", string(body))
	}
}

func TestBuildDocument(t *testing.T) {
	data := readFixture(t, "testdata/basic.md")
	modified := time.Now().UTC()

	doc, err := BuildDocument("testdata/basic.md", data, modified)
	if err != nil {
		t.Fatalf("BuildDocument: %v", err)
	}

	if doc.FilePath != "testdata/basic.md" {
		t.Fatalf("expected FilePath to be set, got %q", doc.FilePath)
	}
	if doc.LastModified != modified {
		t.Fatalf("expected LastModified to equal the provided timestamp")
	}
	if len(doc.Body) == 0 {
		t.Fatalf("expected Body to contain markdown content")
	}
	if len(doc.Raw) != len(data) {
		t.Fatalf("expected Raw to carry the full source, got %d bytes", len(doc.Raw))
	}
	if offset := BodyLineOffset(doc); offset < 10 {
		t.Fatalf("expected body offset to cover the front matter block, got %d", offset)
	}
}

func TestGoldmarkParser_Parse(t *testing.T) {
	parser := NewGoldmarkParser(interfaces.ParseOptions{})

	html, err := parser.Parse([]byte("# Heading\n\nHello **world**"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	got := string(html)
	if !strings.Contains(got, "<h1") || !strings.Contains(got, "Heading</h1>") {
		t.Fatalf("expected rendered HTML to include <h1>Heading</h1>, got %q", got)
	}
	if !strings.Contains(got, "<strong>world</strong>") {
		t.Fatalf("expected rendered HTML to include <strong>, got %q", got)
	}
	if !strings.Contains(got, `id="heading"`) {
		t.Fatalf("expected auto heading id, got %q", got)
	}
}

func TestGoldmarkParser_ParseWithOptions(t *testing.T) {
	parser := NewGoldmarkParser(interfaces.ParseOptions{})

	html, err := parser.ParseWithOptions([]byte("line one\nline two"), interfaces.ParseOptions{
		HardWraps: true,
	})
	if err != nil {
		t.Fatalf("ParseWithOptions: %v", err)
	}

	if !strings.Contains(string(html), "line one<br>") {
		t.Fatalf("expected hard wraps in HTML output, got %q", string(html))
	}
}

func TestGoldmarkParser_SafeMode(t *testing.T) {
	parser := NewGoldmarkParser(interfaces.ParseOptions{})
	source := []byte("before\n\n<script>alert(1)</script>\n")

	unsafe, err := parser.ParseWithOptions(source, interfaces.ParseOptions{})
	if err != nil {
		t.Fatalf("ParseWithOptions: %v", err)
	}
	if !strings.Contains(string(unsafe), "<script>") {
		t.Fatalf("expected raw HTML to pass through without SafeMode, got %q", string(unsafe))
	}

	safe, err := parser.ParseWithOptions(source, interfaces.ParseOptions{SafeMode: true})
	if err != nil {
		t.Fatalf("ParseWithOptions safe: %v", err)
	}
	if strings.Contains(string(safe), "<script>") {
		t.Fatalf("expected raw HTML to be suppressed in SafeMode, got %q", string(safe))
	}
}

func TestGoldmarkParser_ExtensionNames(t *testing.T) {
	parser := NewGoldmarkParser(interfaces.ParseOptions{})
	table := "| A | B |\n| - | - |\n| 1 | 2 |\n"

	html, err := parser.ParseWithOptions([]byte(table), interfaces.ParseOptions{
		Extensions: []string{"table"},
	})
	if err != nil {
		t.Fatalf("ParseWithOptions: %v", err)
	}
	if !strings.Contains(string(html), "<table>") {
		t.Fatalf("expected table extension output, got %q", string(html))
	}

	html, err = parser.ParseWithOptions([]byte(table), interfaces.ParseOptions{
		Extensions: []string{"unknown-extension"},
	})
	if err != nil {
		t.Fatalf("ParseWithOptions: %v", err)
	}
	if strings.Contains(string(html), "<table>") {
		t.Fatalf("expected unknown extension names to be ignored, got %q", string(html))
	}
}

func readFixture(tb testing.TB, path string) []byte {
	tb.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		tb.Fatalf("read fixture %s: %v", path, err)
	}
	return data
}
