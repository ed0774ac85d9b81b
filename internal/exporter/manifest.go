package exporter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	manifestFileName    = ".playbook-manifest.json"
	manifestFileVersion = 1
)

// exportManifest stores the outcome of the last successful export so repeat
// runs can skip unchanged outputs and prune files whose documents are gone.
type exportManifest struct {
	Version     int                       `json:"version"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Pages       map[string]manifestPage   `json:"pages"`
	Assets      map[string]manifestAsset  `json:"assets"`
	Outputs     map[string]manifestOutput `json:"outputs"`

	changed bool
}

type manifestPage struct {
	Slug           string    `json:"slug"`
	URL            string    `json:"url"`
	Output         string    `json:"output"`
	SourceChecksum string    `json:"source_checksum"`
	Checksum       string    `json:"checksum"`
	RenderedAt     time.Time `json:"rendered_at"`
}

type manifestAsset struct {
	Key      string    `json:"key"`
	Theme    string    `json:"theme"`
	Source   string    `json:"source"`
	Output   string    `json:"output"`
	Checksum string    `json:"checksum"`
	Size     int64     `json:"size"`
	CopiedAt time.Time `json:"copied_at"`
}

// manifestOutput tracks corpus-wide artifacts (index, sitemap, llms index,
// robots) that are rebuilt from the whole document set.
type manifestOutput struct {
	Name      string    `json:"name"`
	Output    string    `json:"output"`
	Checksum  string    `json:"checksum"`
	WrittenAt time.Time `json:"written_at"`
}

func newExportManifest() *exportManifest {
	return &exportManifest{
		Version: manifestFileVersion,
		Pages:   map[string]manifestPage{},
		Assets:  map[string]manifestAsset{},
		Outputs: map[string]manifestOutput{},
	}
}

func parseManifest(data []byte) (*exportManifest, error) {
	if len(data) == 0 {
		return newExportManifest(), nil
	}
	var manifest exportManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("exporter: parse manifest: %w", err)
	}
	if manifest.Pages == nil {
		manifest.Pages = map[string]manifestPage{}
	}
	if manifest.Assets == nil {
		manifest.Assets = map[string]manifestAsset{}
	}
	if manifest.Outputs == nil {
		manifest.Outputs = map[string]manifestOutput{}
	}
	if manifest.Version == 0 {
		manifest.Version = manifestFileVersion
	}
	return &manifest, nil
}

func (m *exportManifest) marshal() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	// Stable ordering for deterministic output.
	type orderedManifest struct {
		Version     int              `json:"version"`
		GeneratedAt time.Time        `json:"generated_at"`
		Pages       []manifestPage   `json:"pages"`
		Assets      []manifestAsset  `json:"assets"`
		Outputs     []manifestOutput `json:"outputs"`
	}
	ordered := orderedManifest{
		Version:     m.Version,
		GeneratedAt: m.GeneratedAt,
	}
	if ordered.Version == 0 {
		ordered.Version = manifestFileVersion
	}
	if len(m.Pages) > 0 {
		ordered.Pages = make([]manifestPage, 0, len(m.Pages))
		for _, entry := range m.Pages {
			ordered.Pages = append(ordered.Pages, entry)
		}
		sort.Slice(ordered.Pages, func(i, j int) bool {
			return ordered.Pages[i].Slug < ordered.Pages[j].Slug
		})
	}
	if len(m.Assets) > 0 {
		ordered.Assets = make([]manifestAsset, 0, len(m.Assets))
		for _, entry := range m.Assets {
			ordered.Assets = append(ordered.Assets, entry)
		}
		sort.Slice(ordered.Assets, func(i, j int) bool {
			return ordered.Assets[i].Key < ordered.Assets[j].Key
		})
	}
	if len(m.Outputs) > 0 {
		ordered.Outputs = make([]manifestOutput, 0, len(m.Outputs))
		for _, entry := range m.Outputs {
			ordered.Outputs = append(ordered.Outputs, entry)
		}
		sort.Slice(ordered.Outputs, func(i, j int) bool {
			return ordered.Outputs[i].Name < ordered.Outputs[j].Name
		})
	}
	return json.MarshalIndent(ordered, "", "  ")
}

// dirty reports whether the manifest diverged from its loaded state. An
// unchanged manifest is not rewritten, so a no-op export writes nothing.
func (m *exportManifest) dirty() bool {
	return m != nil && m.changed
}

func (m *exportManifest) pageKey(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

func (m *exportManifest) assetKey(theme, source string) string {
	return strings.ToLower(strings.TrimSpace(theme)) + "::" + strings.TrimSpace(source)
}

func (m *exportManifest) lookupPage(slug string) (manifestPage, bool) {
	if m == nil || len(m.Pages) == 0 {
		return manifestPage{}, false
	}
	entry, ok := m.Pages[m.pageKey(slug)]
	return entry, ok
}

func (m *exportManifest) setPage(entry manifestPage) {
	if m == nil {
		return
	}
	if m.Pages == nil {
		m.Pages = map[string]manifestPage{}
	}
	m.Pages[m.pageKey(entry.Slug)] = entry
	m.changed = true
}

// shouldSkipPage reports whether the stored entry already covers the source
// checksum at the expected output location.
func (m *exportManifest) shouldSkipPage(slug, sourceChecksum, output string) bool {
	entry, ok := m.lookupPage(slug)
	if !ok {
		return false
	}
	if entry.SourceChecksum != sourceChecksum {
		return false
	}
	return strings.TrimSpace(entry.Output) == strings.TrimSpace(output)
}

func (m *exportManifest) lookupAsset(theme, source string) (manifestAsset, bool) {
	if m == nil || len(m.Assets) == 0 {
		return manifestAsset{}, false
	}
	entry, ok := m.Assets[m.assetKey(theme, source)]
	return entry, ok
}

func (m *exportManifest) setAsset(entry manifestAsset) {
	if m == nil {
		return
	}
	if m.Assets == nil {
		m.Assets = map[string]manifestAsset{}
	}
	key := strings.ToLower(entry.Key)
	if key == "" {
		key = m.assetKey(entry.Theme, entry.Source)
		entry.Key = key
	}
	m.Assets[key] = entry
	m.changed = true
}

func (m *exportManifest) shouldSkipAsset(theme, source, checksum, output string) bool {
	entry, ok := m.lookupAsset(theme, source)
	if !ok {
		return false
	}
	if entry.Checksum != checksum {
		return false
	}
	return strings.TrimSpace(entry.Output) == strings.TrimSpace(output)
}

func (m *exportManifest) lookupOutput(name string) (manifestOutput, bool) {
	if m == nil || len(m.Outputs) == 0 {
		return manifestOutput{}, false
	}
	entry, ok := m.Outputs[strings.ToLower(strings.TrimSpace(name))]
	return entry, ok
}

func (m *exportManifest) setOutput(entry manifestOutput) {
	if m == nil {
		return
	}
	if m.Outputs == nil {
		m.Outputs = map[string]manifestOutput{}
	}
	m.Outputs[strings.ToLower(strings.TrimSpace(entry.Name))] = entry
	m.changed = true
}

func (m *exportManifest) shouldSkipOutput(name, checksum, output string) bool {
	entry, ok := m.lookupOutput(name)
	if !ok {
		return false
	}
	if entry.Checksum != checksum {
		return false
	}
	return strings.TrimSpace(entry.Output) == strings.TrimSpace(output)
}

// prunePages drops entries whose key is absent from keep and returns them,
// output-sorted, so the caller can remove the files.
func (m *exportManifest) prunePages(keep map[string]struct{}) []manifestPage {
	if m == nil || len(m.Pages) == 0 {
		return nil
	}
	var removed []manifestPage
	for key, entry := range m.Pages {
		if _, ok := keep[key]; ok {
			continue
		}
		removed = append(removed, entry)
		delete(m.Pages, key)
		m.changed = true
	}
	sort.Slice(removed, func(i, j int) bool {
		return removed[i].Output < removed[j].Output
	})
	return removed
}

// pruneAssets mirrors prunePages for copied theme assets.
func (m *exportManifest) pruneAssets(keep map[string]struct{}) []manifestAsset {
	if m == nil || len(m.Assets) == 0 {
		return nil
	}
	var removed []manifestAsset
	for key, entry := range m.Assets {
		if _, ok := keep[key]; ok {
			continue
		}
		removed = append(removed, entry)
		delete(m.Assets, key)
		m.changed = true
	}
	sort.Slice(removed, func(i, j int) bool {
		return removed[i].Output < removed[j].Output
	})
	return removed
}
