package exporter

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gotheme "github.com/goliatone/go-theme"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

//go:embed themes/minimal
var builtinThemeFS embed.FS

const (
	builtinThemeName    = "minimal"
	builtinThemeVersion = "1.0.0"

	cssVariablePrefix = "pb"
)

// themeSelector owns the go-theme registry and resolves the active selection.
// The embedded minimal theme is always registered and acts as the terminal
// fallback for selection, templates, and assets.
type themeSelector struct {
	registry  *gotheme.MemoryRegistry
	selection *gotheme.Selection
	sources   []fs.FS
}

func newThemeSelector(cfg ThemeConfig) (*themeSelector, error) {
	registry := gotheme.NewRegistry()

	builtin := &gotheme.Manifest{}
	builtin.Name = builtinThemeName
	builtin.Version = builtinThemeVersion
	builtin.Assets.Files = map[string]string{
		"stylesheet": "assets/site.css",
	}
	if err := registry.Register(builtin); err != nil {
		return nil, fmt.Errorf("exporter: register builtin theme: %w", err)
	}

	builtinRoot, err := fs.Sub(builtinThemeFS, "themes/minimal")
	if err != nil {
		return nil, fmt.Errorf("exporter: builtin theme filesystem: %w", err)
	}
	sources := []fs.FS{builtinRoot}

	if dir := strings.TrimSpace(cfg.Dir); dir != "" {
		manifest, err := loadThemeManifest(dir)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(manifest); err != nil {
			return nil, fmt.Errorf("exporter: register theme %s: %w", manifest.Name, err)
		}
		sources = append([]fs.FS{os.DirFS(filepath.Clean(dir))}, sources...)
	}

	selector := gotheme.Selector{
		Registry:       registry,
		DefaultTheme:   builtinThemeName,
		DefaultVariant: "",
	}

	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = builtinThemeName
	}
	selection, err := selector.Select(name, strings.TrimSpace(cfg.Variant))
	if err != nil && name != builtinThemeName {
		selection, err = selector.Select(builtinThemeName, "")
	}
	if err != nil {
		return nil, fmt.Errorf("exporter: select theme %s: %w", name, err)
	}

	return &themeSelector{
		registry:  registry,
		selection: selection,
		sources:   sources,
	}, nil
}

func loadThemeManifest(dir string) (*gotheme.Manifest, error) {
	cleaned := filepath.Clean(strings.TrimSpace(dir))
	if cleaned == "" || cleaned == "." {
		return nil, errors.New("exporter: theme directory required")
	}
	manifest, err := gotheme.LoadDir(os.DirFS(cleaned), ".")
	if err != nil {
		return nil, fmt.Errorf("exporter: load theme manifest from %s: %w", cleaned, err)
	}
	normalized := *manifest
	if strings.TrimSpace(normalized.Name) == "" {
		normalized.Name = filepath.Base(cleaned)
	}
	return &normalized, nil
}

func (s *themeSelector) name() string {
	if s == nil || s.selection == nil {
		return builtinThemeName
	}
	return s.selection.Theme
}

// templateName maps a logical template kind to the theme's template file,
// defaulting to "<kind>.html" when the manifest does not remap it.
func (s *themeSelector) templateName(kind string) string {
	fallback := kind + ".html"
	if s == nil || s.selection == nil {
		return fallback
	}
	return s.selection.Template(kind, fallback)
}

func (s *themeSelector) themeContext(baseURL string) ThemeContext {
	out := ThemeContext{
		Tokens:  map[string]string{},
		CSSVars: map[string]string{},
	}
	if s == nil || s.selection == nil {
		return out
	}
	out.Name = s.selection.Theme
	out.Variant = s.selection.Variant
	if tokens := s.selection.Tokens(); len(tokens) > 0 {
		out.Tokens = tokens
	}
	if vars := s.selection.CSSVariables(cssVariablePrefix); len(vars) > 0 {
		out.CSSVars = vars
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	for _, asset := range s.assets() {
		if strings.EqualFold(path.Ext(asset), ".css") {
			out.Stylesheets = append(out.Stylesheets, base+"/"+assetOutputPath(asset))
		}
	}
	return out
}

// assets lists the theme files to copy, variant overrides merged in.
func (s *themeSelector) assets() []string {
	if s == nil || s.selection == nil || s.selection.Manifest == nil {
		return nil
	}
	files := s.selection.Manifest.Assets.Files
	if variant := strings.TrimSpace(s.selection.Variant); variant != "" {
		if v, ok := s.selection.Manifest.Variants[variant]; ok && len(v.Assets.Files) > 0 {
			merged := make(map[string]string, len(files)+len(v.Assets.Files))
			for key, file := range files {
				merged[key] = file
			}
			for key, file := range v.Assets.Files {
				merged[key] = file
			}
			files = merged
		}
	}

	seen := map[string]struct{}{}
	out := make([]string, 0, len(files))
	for _, file := range files {
		file = strings.TrimPrefix(strings.TrimSpace(file), "/")
		if file == "" {
			continue
		}
		if _, ok := seen[file]; ok {
			continue
		}
		seen[file] = struct{}{}
		out = append(out, filepath.ToSlash(file))
	}
	sort.Strings(out)
	return out
}

// openAsset reads an asset from the first source that carries it, so a theme
// directory can override individual builtin files.
func (s *themeSelector) openAsset(name string) ([]byte, error) {
	name = strings.TrimPrefix(filepath.ToSlash(name), "/")
	for _, source := range s.sources {
		data, err := fs.ReadFile(source, name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("exporter: theme asset %s: %w", name, fs.ErrNotExist)
}

func assetOutputPath(source string) string {
	return path.Join("assets", strings.TrimPrefix(filepath.ToSlash(source), "assets/"))
}

func detectAssetContentType(asset string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(asset), "."))
	switch ext {
	case "css":
		return "text/css"
	case "js":
		return "application/javascript"
	case "json":
		return "application/json"
	case "svg":
		return "image/svg+xml"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "ico":
		return "image/x-icon"
	case "woff2":
		return "font/woff2"
	default:
		return "application/octet-stream"
	}
}

var _ interfaces.TemplateRenderer = (*themeRenderer)(nil)

// themeRenderer executes theme templates with html/template. Template lookup
// walks the source chain in order, so the active theme wins and the embedded
// minimal theme backfills anything it does not define.
type themeRenderer struct {
	sources []fs.FS

	once sync.Once
	sets []*template.Template
	err  error
}

func newThemeRenderer(sources []fs.FS) *themeRenderer {
	return &themeRenderer{sources: sources}
}

func (r *themeRenderer) ensureTemplates() ([]*template.Template, error) {
	r.once.Do(func() {
		for _, source := range r.sources {
			var files []string
			err := fs.WalkDir(source, ".", func(p string, entry fs.DirEntry, walkErr error) error {
				if walkErr != nil {
					return walkErr
				}
				if entry.IsDir() {
					return nil
				}
				ext := strings.ToLower(path.Ext(p))
				if ext != ".html" && ext != ".tmpl" {
					return nil
				}
				files = append(files, p)
				return nil
			})
			if err != nil {
				r.err = err
				return
			}
			if len(files) == 0 {
				continue
			}
			set, err := template.New("playbook-theme").Funcs(templateFuncs()).ParseFS(source, files...)
			if err != nil {
				r.err = err
				return
			}
			r.sets = append(r.sets, set)
		}
		if len(r.sets) == 0 && r.err == nil {
			r.err = errors.New("exporter: no templates found in theme sources")
		}
	})
	return r.sets, r.err
}

func (r *themeRenderer) Render(name string, data any, out ...io.Writer) (string, error) {
	return r.RenderTemplate(name, data, out...)
}

func (r *themeRenderer) RenderTemplate(name string, data any, out ...io.Writer) (string, error) {
	sets, err := r.ensureTemplates()
	if err != nil {
		return "", err
	}

	for _, set := range sets {
		if set.Lookup(name) == nil {
			continue
		}

		var writer io.Writer
		var buffer *bytes.Buffer
		if len(out) > 0 && out[0] != nil {
			writer = out[0]
		} else {
			buffer = &bytes.Buffer{}
			writer = buffer
		}

		if err := set.ExecuteTemplate(writer, name, data); err != nil {
			return "", err
		}
		if buffer != nil {
			return buffer.String(), nil
		}
		return "", nil
	}
	return "", fmt.Errorf("exporter: template %q not found", name)
}

func (r *themeRenderer) RenderString(content string, data any, out ...io.Writer) (string, error) {
	tpl, err := template.New("inline").Funcs(templateFuncs()).Parse(content)
	if err != nil {
		return "", err
	}

	var writer io.Writer
	var buffer *bytes.Buffer
	if len(out) > 0 && out[0] != nil {
		writer = out[0]
	} else {
		buffer = &bytes.Buffer{}
		writer = buffer
	}

	if err := tpl.Execute(writer, data); err != nil {
		return "", err
	}
	if buffer != nil {
		return buffer.String(), nil
	}
	return "", nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"safeHTML": func(value any) template.HTML { return toHTML(value) },
	}
}

func toHTML(value any) template.HTML {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case template.HTML:
		return v
	case string:
		return template.HTML(v)
	default:
		return template.HTML(fmt.Sprint(v))
	}
}
