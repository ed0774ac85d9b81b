package audit

import (
	"fmt"
	"strings"
	"time"

	"github.com/mwtmurphy/go-playbook/internal/corpus"
	"github.com/mwtmurphy/go-playbook/internal/refgraph"
)

// Stable rule codes. Tooling keys off these; renaming one is a breaking
// change.
const (
	CodeLinksResolve       = "PB001"
	CodeAnchorsResolve     = "PB002"
	CodeLastUpdatedPresent = "PB003"
	CodeLastUpdatedFresh   = "PB004"
	CodeMaxLines           = "PB005"
	CodeTableShape         = "PB006"
	CodeHeadingStructure   = "PB007"
	CodeFenceLanguage      = "PB008"
	CodeFrontMatterProfile = "PB009"
	CodeUniqueSlug         = "PB010"
)

// DefaultRules returns the built-in catalog in code order.
func DefaultRules(cfg RuleConfig) []Rule {
	cfg = cfg.withDefaults()
	return []Rule{
		linksResolveRule(),
		anchorsResolveRule(),
		lastUpdatedPresentRule(),
		lastUpdatedFreshRule(cfg),
		maxLinesRule(cfg),
		tableShapeRule(),
		headingStructureRule(),
		fenceLanguageRule(),
		frontMatterProfileRule(cfg),
		uniqueSlugRule(),
	}
}

// DefaultRegistry builds a registry holding the built-in catalog.
func DefaultRegistry(cfg RuleConfig) *Registry {
	registry, err := NewRegistry(DefaultRules(cfg)...)
	if err != nil {
		panic(err)
	}
	return registry
}

func linksResolveRule() Rule {
	return Rule{
		Code:     CodeLinksResolve,
		Name:     "links-resolve",
		Severity: SeverityError,
		Corpus: func(cc *CorpusContext) []Finding {
			var findings []Finding
			for _, broken := range cc.Broken {
				if broken.Reason != refgraph.ReasonMissingTarget {
					continue
				}
				findings = append(findings, Finding{
					Slug:    broken.FromSlug,
					Path:    broken.FromPath,
					Line:    broken.Line,
					Message: fmt.Sprintf("link %q points at unknown standard %q", broken.RawDest, broken.TargetSlug),
				})
			}
			return findings
		},
	}
}

func anchorsResolveRule() Rule {
	return Rule{
		Code:     CodeAnchorsResolve,
		Name:     "anchors-resolve",
		Severity: SeverityError,
		Corpus: func(cc *CorpusContext) []Finding {
			var findings []Finding
			for _, broken := range cc.Broken {
				if broken.Reason != refgraph.ReasonMissingAnchor {
					continue
				}
				fragment := ""
				if broken.Fragment != nil {
					fragment = *broken.Fragment
				}
				findings = append(findings, Finding{
					Slug:    broken.FromSlug,
					Path:    broken.FromPath,
					Line:    broken.Line,
					Message: fmt.Sprintf("link %q points at missing heading #%s in %q", broken.RawDest, fragment, broken.TargetSlug),
				})
			}
			return findings
		},
	}
}

func lastUpdatedPresentRule() Rule {
	return Rule{
		Code:     CodeLastUpdatedPresent,
		Name:     "last-updated-present",
		Severity: SeverityError,
		Document: func(dc *DocumentContext) []Finding {
			if dc.Standard.LastUpdated != nil {
				return nil
			}
			return []Finding{{
				Slug:    dc.Standard.Slug,
				Path:    dc.Standard.SourcePath,
				Message: "front matter has no last_updated date",
			}}
		},
	}
}

func lastUpdatedFreshRule(cfg RuleConfig) Rule {
	return Rule{
		Code:     CodeLastUpdatedFresh,
		Name:     "last-updated-fresh",
		Severity: SeverityWarning,
		Document: func(dc *DocumentContext) []Finding {
			if dc.Standard.LastUpdated == nil {
				return nil
			}
			age := dc.Now.Sub(*dc.Standard.LastUpdated)
			limit := time.Duration(cfg.StaleAfterDays) * 24 * time.Hour
			if age <= limit {
				return nil
			}
			return []Finding{{
				Slug: dc.Standard.Slug,
				Path: dc.Standard.SourcePath,
				Message: fmt.Sprintf("last updated %s, older than %d days",
					dc.Standard.LastUpdated.UTC().Format("2006-01-02"), cfg.StaleAfterDays),
			}}
		},
	}
}

func maxLinesRule(cfg RuleConfig) Rule {
	return Rule{
		Code:     CodeMaxLines,
		Name:     "max-lines",
		Severity: SeverityWarning,
		Document: func(dc *DocumentContext) []Finding {
			if dc.Standard.Lines <= cfg.MaxLines {
				return nil
			}
			return []Finding{{
				Slug:    dc.Standard.Slug,
				Path:    dc.Standard.SourcePath,
				Message: fmt.Sprintf("file has %d lines, limit is %d", dc.Standard.Lines, cfg.MaxLines),
			}}
		},
	}
}

func tableShapeRule() Rule {
	return Rule{
		Code:     CodeTableShape,
		Name:     "table-shape",
		Severity: SeverityError,
		Document: func(dc *DocumentContext) []Finding {
			var findings []Finding
			for _, table := range dc.Structure.Tables {
				for _, row := range table.Rows {
					if row.Cells == table.HeaderColumns {
						continue
					}
					findings = append(findings, Finding{
						Slug:    dc.Standard.Slug,
						Path:    dc.Standard.SourcePath,
						Line:    dc.FileLine(row.Line),
						Message: fmt.Sprintf("table row has %d cells, header has %d columns", row.Cells, table.HeaderColumns),
					})
				}
			}
			return findings
		},
	}
}

func headingStructureRule() Rule {
	return Rule{
		Code:     CodeHeadingStructure,
		Name:     "heading-structure",
		Severity: SeverityWarning,
		Document: func(dc *DocumentContext) []Finding {
			var findings []Finding
			headings := dc.Structure.Headings

			topLevel := 0
			for _, heading := range headings {
				if heading.Level != 1 {
					continue
				}
				topLevel++
				if topLevel > 1 {
					findings = append(findings, Finding{
						Slug:    dc.Standard.Slug,
						Path:    dc.Standard.SourcePath,
						Line:    dc.FileLine(heading.Line),
						Message: fmt.Sprintf("multiple level-1 headings; %q repeats the document title", heading.Text),
					})
				}
			}
			if topLevel == 0 && len(headings) > 0 {
				findings = append(findings, Finding{
					Slug:    dc.Standard.Slug,
					Path:    dc.Standard.SourcePath,
					Line:    dc.FileLine(headings[0].Line),
					Message: "document has no level-1 heading",
				})
			}

			for i := 1; i < len(headings); i++ {
				if headings[i].Level > headings[i-1].Level+1 {
					findings = append(findings, Finding{
						Slug: dc.Standard.Slug,
						Path: dc.Standard.SourcePath,
						Line: dc.FileLine(headings[i].Line),
						Message: fmt.Sprintf("heading level jumps from %d to %d at %q",
							headings[i-1].Level, headings[i].Level, headings[i].Text),
					})
				}
			}
			return findings
		},
	}
}

func fenceLanguageRule() Rule {
	return Rule{
		Code:     CodeFenceLanguage,
		Name:     "fence-language",
		Severity: SeverityInfo,
		Document: func(dc *DocumentContext) []Finding {
			var findings []Finding
			for _, fence := range dc.Structure.CodeFences {
				if strings.TrimSpace(fence.Language) != "" {
					continue
				}
				findings = append(findings, Finding{
					Slug:    dc.Standard.Slug,
					Path:    dc.Standard.SourcePath,
					Line:    dc.FileLine(fence.Line),
					Message: "fenced code block declares no language",
				})
			}
			return findings
		},
	}
}

func frontMatterProfileRule(cfg RuleConfig) Rule {
	return Rule{
		Code:     CodeFrontMatterProfile,
		Name:     "frontmatter-profile",
		Severity: SeverityError,
		Document: func(dc *DocumentContext) []Finding {
			if cfg.Profile == nil {
				return nil
			}
			meta := frontMatterMeta(dc.Standard.Meta)
			if meta == nil {
				return nil
			}
			issues := cfg.Profile.Validate(meta)
			findings := make([]Finding, 0, len(issues))
			for _, issue := range issues {
				findings = append(findings, Finding{
					Slug:    dc.Standard.Slug,
					Path:    dc.Standard.SourcePath,
					Message: "front matter: " + issue.String(),
				})
			}
			return findings
		},
	}
}

func uniqueSlugRule() Rule {
	return Rule{
		Code:     CodeUniqueSlug,
		Name:     "unique-slug",
		Severity: SeverityError,
		Corpus: func(cc *CorpusContext) []Finding {
			var findings []Finding
			firstPath := make(map[string]string, len(cc.Documents))
			for _, doc := range cc.Documents {
				slug, err := corpus.DocumentSlug(doc)
				if err != nil {
					continue
				}
				if existing, seen := firstPath[slug]; seen {
					findings = append(findings, Finding{
						Slug:    slug,
						Path:    doc.FilePath,
						Message: fmt.Sprintf("slug %q already used by %s", slug, existing),
					})
					continue
				}
				firstPath[slug] = doc.FilePath
			}
			return findings
		},
	}
}

// frontMatterMeta digs the raw front matter map out of the imported meta
// payload; both fresh imports and JSONB round-trips produce map[string]any.
func frontMatterMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	raw, ok := meta["frontmatter"]
	if !ok {
		return nil
	}
	typed, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	return typed
}
