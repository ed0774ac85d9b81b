package markdown

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

// SourceConfig controls how the corpus source discovers standards files.
type SourceConfig struct {
	BasePath     string
	Root         string
	Patterns     []string
	Recursive    bool
	MaxFileBytes int64
}

// Source adapts the loader to the corpus document source contract: one Load
// call returns every parsed standards document under the configured root.
type Source struct {
	loader *Loader
	root   string
}

// NewSource constructs a source rooted at the configured base path on the
// host filesystem.
func NewSource(cfg SourceConfig) (*Source, error) {
	filesystem, err := prepareFilesystem(cfg.BasePath)
	if err != nil {
		return nil, err
	}
	return NewFSSource(filesystem, cfg), nil
}

// NewFSSource constructs a source over an existing filesystem, typically the
// embedded corpus or a test fixture tree.
func NewFSSource(filesystem fs.FS, cfg SourceConfig) *Source {
	loader := NewLoader(filesystem, LoaderConfig{
		BasePath:     cfg.BasePath,
		Patterns:     cfg.Patterns,
		Recursive:    cfg.Recursive,
		MaxFileBytes: cfg.MaxFileBytes,
	})

	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		root = "."
	}

	return &Source{
		loader: loader,
		root:   root,
	}
}

// Load returns every parsed document under the source root in deterministic
// path order.
func (s *Source) Load(ctx context.Context) ([]*interfaces.Document, error) {
	results, err := s.loader.LoadDirectory(ctx, s.root, interfaces.LoadOptions{})
	if err != nil {
		return nil, err
	}

	docs := make([]*interfaces.Document, 0, len(results))
	for _, result := range results {
		docs = append(docs, result.Document)
	}
	return docs, nil
}

// LoadFile returns a single parsed document by path.
func (s *Source) LoadFile(ctx context.Context, path string) (*interfaces.Document, error) {
	result, err := s.loader.LoadFile(ctx, path, interfaces.LoadOptions{})
	if err != nil {
		return nil, err
	}
	return result.Document, nil
}

func prepareFilesystem(basePath string) (fs.FS, error) {
	if strings.TrimSpace(basePath) == "" {
		basePath = "."
	}
	if _, err := os.Stat(basePath); err != nil {
		return nil, fmt.Errorf("corpus source: stat base path %s: %w", basePath, err)
	}
	return os.DirFS(basePath), nil
}
