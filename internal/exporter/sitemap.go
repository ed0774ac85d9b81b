package exporter

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type sitemapEntry struct {
	Location string
	LastMod  time.Time
}

func buildSitemap(entries []sitemapEntry) string {
	deduped := make([]sitemapEntry, 0, len(entries))
	seen := map[string]struct{}{}
	for _, entry := range entries {
		location := strings.TrimSpace(entry.Location)
		if location == "" {
			continue
		}
		if _, ok := seen[location]; ok {
			continue
		}
		seen[location] = struct{}{}
		deduped = append(deduped, sitemapEntry{Location: location, LastMod: entry.LastMod})
	}

	sort.Slice(deduped, func(i, j int) bool {
		return deduped[i].Location < deduped[j].Location
	})

	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	builder.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for _, entry := range deduped {
		builder.WriteString("  <url>\n")
		builder.WriteString(fmt.Sprintf("    <loc>%s</loc>\n", entry.Location))
		if !entry.LastMod.IsZero() {
			builder.WriteString(fmt.Sprintf("    <lastmod>%s</lastmod>\n", entry.LastMod.UTC().Format(time.RFC3339)))
		}
		builder.WriteString("  </url>\n")
	}
	builder.WriteString(`</urlset>` + "\n")
	return builder.String()
}

// buildLLMSIndex renders the llms.txt agent index: one markdown link per
// document with its one-line summary, grouped the same way as the index page.
func buildLLMSIndex(title, description string, groups []CategoryGroup) string {
	var builder strings.Builder
	builder.WriteString("# " + strings.TrimSpace(title) + "\n")
	if description = strings.TrimSpace(description); description != "" {
		builder.WriteString("\n> " + description + "\n")
	}
	for _, group := range groups {
		if len(group.Entries) == 0 {
			continue
		}
		builder.WriteString("\n## " + group.Category + "\n\n")
		for _, entry := range group.Entries {
			builder.WriteString(fmt.Sprintf("- [%s](%s)", entry.Title, entry.URL))
			if entry.Summary != "" {
				builder.WriteString(": " + entry.Summary)
			}
			builder.WriteString("\n")
		}
	}
	return builder.String()
}

func buildRobots(baseURL string) string {
	var builder strings.Builder
	builder.WriteString("User-agent: *\n")
	builder.WriteString("Allow: /\n")
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = "http://localhost"
	}
	builder.WriteString("\n")
	builder.WriteString(fmt.Sprintf("Sitemap: %s/sitemap.xml\n", base))
	return builder.String()
}
