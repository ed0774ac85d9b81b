package markdown

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

// DefaultMaxFileBytes bounds a single standards file. Files beyond the limit
// are rejected by the loader rather than truncated.
const DefaultMaxFileBytes int64 = 2 << 20

// LoaderConfig configures how standards files are discovered within a corpus
// filesystem.
type LoaderConfig struct {
	// BasePath is the root directory where standards documents live. It is
	// only consulted when callers pass absolute paths.
	BasePath string
	// Patterns limits discovered files to those matching any of the supplied
	// globs (defaults to "*.md").
	Patterns []string
	// Recursive controls whether sub-directories are traversed.
	Recursive bool
	// MaxFileBytes guards against oversized files; zero applies
	// DefaultMaxFileBytes.
	MaxFileBytes int64
}

// Loader turns filesystem paths into parsed standards documents.
type Loader struct {
	fs           fs.FS
	basePath     string
	patterns     []string
	recursive    bool
	maxFileBytes int64
}

// NewLoader constructs a Loader using the provided filesystem and configuration.
func NewLoader(filesystem fs.FS, cfg LoaderConfig) *Loader {
	patterns := normalizePatterns(cfg.Patterns)
	if len(patterns) == 0 {
		patterns = []string{"*.md"}
	}

	maxBytes := cfg.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}

	return &Loader{
		fs:           filesystem,
		basePath:     filepath.Clean(cfg.BasePath),
		patterns:     patterns,
		recursive:    cfg.Recursive,
		maxFileBytes: maxBytes,
	}
}

// LoadFile reads and parses a single standards document.
func (l *Loader) LoadFile(ctx context.Context, path string, opts interfaces.LoadOptions) (*DocumentResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	rel, err := l.makeRelative(path)
	if err != nil {
		return nil, err
	}
	rel = filepath.ToSlash(rel)

	info, err := fs.Stat(l.fs, rel)
	if err != nil {
		return nil, fmt.Errorf("corpus loader stat %s: %w", rel, err)
	}

	if max := l.maxBytes(opts); info.Size() > max {
		return nil, fmt.Errorf("corpus loader: %s exceeds %d bytes", rel, max)
	}

	data, err := fs.ReadFile(l.fs, rel)
	if err != nil {
		return nil, fmt.Errorf("corpus loader read %s: %w", rel, err)
	}

	doc, err := BuildDocument(rel, data, info.ModTime())
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	doc.Checksum = sum[:]

	return &DocumentResult{
		Document: doc,
		Source:   data,
	}, nil
}

// LoadDirectory discovers standards files under dir and returns parsed
// documents in deterministic path order.
func (l *Loader) LoadDirectory(ctx context.Context, dir string, opts interfaces.LoadOptions) ([]*DocumentResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	root, err := l.makeRelative(dir)
	if err != nil {
		return nil, err
	}
	root = filepath.Clean(root)

	var results []*DocumentResult

	walkErr := fs.WalkDir(l.fs, root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			if !l.shouldRecurse(root, path, opts.Recursive) {
				return fs.SkipDir
			}
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel := filepath.ToSlash(path)
		if !l.matchesPatterns(rel, opts.Patterns) {
			return nil
		}

		result, err := l.LoadFile(ctx, rel, opts)
		if err != nil {
			return err
		}
		results = append(results, result)
		return nil
	})

	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Document.FilePath < results[j].Document.FilePath
	})

	return results, nil
}

func (l *Loader) shouldRecurse(root, current string, override *bool) bool {
	recursive := l.recursive
	if override != nil {
		recursive = *override
	}
	if recursive {
		return true
	}
	// If recursion is disabled, only walk the root directory.
	cleanRoot := filepath.Clean(root)
	cleanCurrent := filepath.Clean(current)
	return cleanRoot == cleanCurrent
}

func (l *Loader) maxBytes(opts interfaces.LoadOptions) int64 {
	if opts.MaxFileBytes > 0 {
		return opts.MaxFileBytes
	}
	return l.maxFileBytes
}

func (l *Loader) matchesPatterns(path string, overrides []string) bool {
	patterns := normalizePatterns(overrides)
	if len(patterns) == 0 {
		patterns = l.patterns
	}
	for _, pattern := range patterns {
		if matchPattern(path, pattern) {
			return true
		}
	}
	return false
}

func matchPattern(path, pattern string) bool {
	// Normalise to slash as fs.WalkDir returns slash-separated paths for DirFS.
	pattern = filepath.ToSlash(pattern)
	if strings.Contains(pattern, "**") {
		// Basic support for ** by stripping repeated separators.
		pattern = strings.ReplaceAll(pattern, "**/", "")
	}
	var target string
	if strings.Contains(pattern, "/") {
		target = path
	} else {
		target = filepath.Base(path)
	}
	match, err := filepath.Match(pattern, target)
	if err != nil {
		return false
	}
	return match
}

func normalizePatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		out = append(out, pattern)
	}
	return out
}

func (l *Loader) makeRelative(path string) (string, error) {
	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) {
		return clean, nil
	}
	if l.basePath == "" {
		return "", fmt.Errorf("corpus loader: absolute path %s provided without base path", path)
	}
	rel, err := filepath.Rel(l.basePath, clean)
	if err != nil {
		return "", fmt.Errorf("corpus loader: make relative %s: %w", path, err)
	}
	return rel, nil
}

// DocumentResult carries the parsed document along with the raw source.
type DocumentResult struct {
	Document *interfaces.Document
	Source   []byte
}
