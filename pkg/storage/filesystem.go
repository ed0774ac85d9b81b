package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Operation names understood by the filesystem provider. The exporter issues
// these when persisting site artifacts.
const (
	opEnsureDir = "exporter.ensure_dir"
	opWrite     = "exporter.write"
	opRead      = "exporter.read"
	opRemove    = "exporter.remove"
)

// NewFilesystem returns a Provider that reads and writes artifacts on disk.
// Paths passed to operations are interpreted relative to root.
func NewFilesystem(root string) Provider {
	root = filepath.Clean(root)
	if root == "" {
		root = "."
	}
	return &filesystemProvider{root: root}
}

type filesystemProvider struct {
	root string
}

func (p *filesystemProvider) Query(_ context.Context, op string, args ...any) (Rows, error) {
	if op != opRead || len(args) == 0 {
		return &fileRows{}, nil
	}
	target, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("storage: read expects a path string, got %T", args[0])
	}
	data, err := os.ReadFile(p.abs(target))
	if errors.Is(err, os.ErrNotExist) {
		return &fileRows{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &fileRows{data: data, ok: true}, nil
}

func (p *filesystemProvider) Exec(_ context.Context, op string, args ...any) (Result, error) {
	switch op {
	case opEnsureDir:
		if len(args) == 0 {
			return emptyResult{}, errors.New("storage: ensure_dir requires path")
		}
		target, ok := args[0].(string)
		if !ok || target == "" {
			return emptyResult{}, errors.New("storage: ensure_dir requires path")
		}
		return emptyResult{}, os.MkdirAll(p.abs(target), 0o755)
	case opWrite:
		if len(args) < 2 {
			return emptyResult{}, errors.New("storage: write requires path and reader")
		}
		target, ok := args[0].(string)
		if !ok || target == "" {
			return emptyResult{}, errors.New("storage: write requires path")
		}
		reader, ok := args[1].(io.Reader)
		if !ok || reader == nil {
			return emptyResult{}, errors.New("storage: write expects io.Reader content")
		}
		full := p.abs(target)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return emptyResult{}, err
		}
		file, err := os.Create(full)
		if err != nil {
			return emptyResult{}, err
		}
		defer file.Close()
		if _, err := io.Copy(file, reader); err != nil {
			return emptyResult{}, err
		}
		return emptyResult{}, nil
	case opRemove:
		if len(args) == 0 {
			return emptyResult{}, errors.New("storage: remove requires path")
		}
		target, ok := args[0].(string)
		if !ok || target == "" || target == "." {
			return emptyResult{}, errors.New("storage: remove requires path")
		}
		err := os.RemoveAll(p.abs(target))
		if errors.Is(err, os.ErrNotExist) {
			return emptyResult{}, nil
		}
		return emptyResult{}, err
	default:
		return emptyResult{}, nil
	}
}

func (p *filesystemProvider) abs(rel string) string {
	return filepath.Join(p.root, filepath.FromSlash(rel))
}

type emptyResult struct{}

func (emptyResult) RowsAffected() (int64, error) { return 0, nil }
func (emptyResult) LastInsertId() (int64, error) { return 0, nil }

// fileRows exposes one file body as a single scannable row. A missing file
// yields zero rows rather than an error.
type fileRows struct {
	data []byte
	ok   bool
	read bool
}

func (r *fileRows) Next() bool {
	if !r.ok || r.read {
		return false
	}
	r.read = true
	return true
}

func (r *fileRows) Scan(dest ...any) error {
	if len(dest) == 0 {
		return errors.New("storage: scan requires destination")
	}
	switch target := dest[0].(type) {
	case *[]byte:
		*target = append((*target)[:0], r.data...)
		return nil
	case *string:
		*target = string(r.data)
		return nil
	default:
		return fmt.Errorf("storage: unsupported scan destination %T", dest[0])
	}
}

func (r *fileRows) Close() error { return nil }
