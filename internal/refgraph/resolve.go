package refgraph

import (
	"path"
	"strings"

	"github.com/mwtmurphy/go-playbook/standards"
)

// ResolutionKind mirrors the reference kinds stored on imported standards.
type ResolutionKind string

const (
	KindInternal ResolutionKind = "internal"
	KindExternal ResolutionKind = "external"
	KindAnchor   ResolutionKind = "anchor"
)

// Resolution is the normalised form of a link destination.
type Resolution struct {
	Kind ResolutionKind
	// Slug is the corpus slug the destination points at. For anchors it is
	// the slug of the containing document.
	Slug string
	// Fragment carries the heading anchor, when present.
	Fragment string
	// Path is the cleaned corpus-relative path for internal destinations.
	Path string
}

// Resolve normalises a link destination found in the document at fromPath.
// `./x.md`, `../a/b.md`, and bare `x.md` all resolve to the slug their file
// stem imports under; `#fragment` resolves within the same document; full
// URLs classify as external and are never fetched.
func Resolve(fromPath, dest string) Resolution {
	trimmed := strings.TrimSpace(dest)

	switch {
	case strings.HasPrefix(trimmed, "#"):
		return Resolution{
			Kind:     KindAnchor,
			Slug:     slugFromPath(fromPath),
			Fragment: strings.TrimPrefix(trimmed, "#"),
			Path:     cleanPath(fromPath),
		}
	case strings.Contains(trimmed, "://"), strings.HasPrefix(trimmed, "mailto:"):
		return Resolution{Kind: KindExternal}
	}

	fragment := ""
	if idx := strings.Index(trimmed, "#"); idx >= 0 {
		fragment = trimmed[idx+1:]
		trimmed = trimmed[:idx]
	}

	resolved := trimmed
	if !strings.HasPrefix(trimmed, "/") {
		resolved = path.Join(path.Dir(cleanPath(fromPath)), trimmed)
	}
	resolved = cleanPath(resolved)

	return Resolution{
		Kind:     KindInternal,
		Slug:     slugFromPath(resolved),
		Fragment: fragment,
		Path:     resolved,
	}
}

func cleanPath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(p, "/")
	return path.Clean(p)
}

func slugFromPath(p string) string {
	base := path.Base(cleanPath(p))
	for _, ext := range []string{".md", ".markdown"} {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			base = base[:len(base)-len(ext)]
			break
		}
	}
	if base == "" || base == "." {
		return ""
	}

	normalized, err := standards.NormalizeSlug(base)
	if err != nil {
		return ""
	}
	return normalized
}
