package refgraph

import (
	"context"
	"sort"
	"strings"

	"github.com/mwtmurphy/go-playbook/standards"
	"github.com/google/uuid"
)

// Service answers cross-reference questions over the imported corpus. All
// views are computed from stored reference rows; nothing re-reads source
// files or fetches external URLs.
type Service interface {
	Backlinks(ctx context.Context, slug string) ([]*Backlink, error)
	Orphans(ctx context.Context) ([]*standards.Standard, error)
	Broken(ctx context.Context) ([]*BrokenReference, error)
	Graph(ctx context.Context) (*Graph, error)
}

// Backlink is one inbound internal link pointing at a standard.
type Backlink struct {
	FromSlug  string  `json:"from_slug"`
	FromTitle string  `json:"from_title"`
	FromPath  string  `json:"from_path"`
	Fragment  *string `json:"fragment,omitempty"`
	Line      int     `json:"line"`
}

// BrokenReason classifies why a reference failed to resolve.
type BrokenReason string

const (
	// ReasonMissingTarget means no imported standard owns the target slug.
	ReasonMissingTarget BrokenReason = "missing-target"
	// ReasonMissingAnchor means the target exists but lacks the heading.
	ReasonMissingAnchor BrokenReason = "missing-anchor"
)

// BrokenReference is an internal or anchor reference that does not resolve.
type BrokenReference struct {
	FromSlug   string       `json:"from_slug"`
	FromPath   string       `json:"from_path"`
	RawDest    string       `json:"raw_dest"`
	TargetSlug string       `json:"target_slug"`
	Fragment   *string      `json:"fragment,omitempty"`
	Line       int          `json:"line"`
	Reason     BrokenReason `json:"reason"`
}

// Node is one standard in the adjacency snapshot.
type Node struct {
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Status   string `json:"status"`
}

// Edge is one resolved internal link between two standards.
type Edge struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Fragment *string `json:"fragment,omitempty"`
	Line     int     `json:"line"`
}

// Graph is a point-in-time adjacency snapshot for exporters and MCP
// resources. Edges only cover internal references whose target resolved;
// Broken lists the rest.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// Option configures the reference graph service.
type Option func(*service)

// WithIndexSlugs overrides the slugs treated as the corpus index. Index
// documents never show up as orphans.
func WithIndexSlugs(slugs ...string) Option {
	return func(s *service) {
		s.indexSlugs = make(map[string]struct{}, len(slugs))
		for _, slug := range slugs {
			slug = strings.ToLower(strings.TrimSpace(slug))
			if slug != "" {
				s.indexSlugs[slug] = struct{}{}
			}
		}
	}
}

type service struct {
	standards  standards.StandardRepository
	indexSlugs map[string]struct{}
}

// NewService builds the graph service on top of a standard repository.
func NewService(repo standards.StandardRepository, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, standards.ErrRepositoryRequired
	}

	svc := &service{
		standards:  repo,
		indexSlugs: map[string]struct{}{"readme": {}},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Backlinks lists the internal references that point at slug, ordered by
// source slug then line. Self references are not backlinks.
func (s *service) Backlinks(ctx context.Context, slug string) ([]*Backlink, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, standards.ErrSlugRequired
	}

	target, err := s.standards.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var out []*Backlink
	for _, ref := range snap.references {
		if ref.Kind != standards.ReferenceInternal || ref.TargetSlug == nil {
			continue
		}
		if *ref.TargetSlug != target.Slug || ref.StandardID == target.ID {
			continue
		}
		from, ok := snap.byID[ref.StandardID]
		if !ok {
			continue
		}
		out = append(out, &Backlink{
			FromSlug:  from.Slug,
			FromTitle: from.Title,
			FromPath:  from.SourcePath,
			Fragment:  ref.Fragment,
			Line:      ref.Line,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FromSlug != out[j].FromSlug {
			return out[i].FromSlug < out[j].FromSlug
		}
		return out[i].Line < out[j].Line
	})
	return out, nil
}

// Orphans lists published standards that no other document links to. The
// corpus index is excluded; links from drafts still count as inbound.
func (s *service) Orphans(ctx context.Context) ([]*standards.Standard, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	inbound := make(map[string]struct{})
	for _, ref := range snap.references {
		if ref.Kind != standards.ReferenceInternal || ref.TargetSlug == nil {
			continue
		}
		from, ok := snap.byID[ref.StandardID]
		if ok && from.Slug == *ref.TargetSlug {
			continue
		}
		inbound[*ref.TargetSlug] = struct{}{}
	}

	var out []*standards.Standard
	for _, record := range snap.records {
		if !record.IsPublished() {
			continue
		}
		if _, isIndex := s.indexSlugs[record.Slug]; isIndex {
			continue
		}
		if _, linked := inbound[record.Slug]; linked {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

// Broken lists internal references whose target slug does not exist and
// internal or anchor references whose fragment names a missing heading.
func (s *service) Broken(ctx context.Context) ([]*BrokenReference, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	anchors := newAnchorIndex(s.standards)

	var out []*BrokenReference
	for _, ref := range snap.references {
		from, ok := snap.byID[ref.StandardID]
		if !ok {
			continue
		}

		switch ref.Kind {
		case standards.ReferenceInternal:
			if ref.TargetSlug == nil {
				continue
			}
			target, exists := snap.bySlug[*ref.TargetSlug]
			if !exists {
				out = append(out, brokenRef(from, ref, *ref.TargetSlug, ReasonMissingTarget))
				continue
			}
			if ref.Fragment == nil {
				continue
			}
			has, err := anchors.has(ctx, target.ID, *ref.Fragment)
			if err != nil {
				return nil, err
			}
			if !has {
				out = append(out, brokenRef(from, ref, target.Slug, ReasonMissingAnchor))
			}
		case standards.ReferenceAnchor:
			if ref.Fragment == nil {
				continue
			}
			has, err := anchors.has(ctx, from.ID, *ref.Fragment)
			if err != nil {
				return nil, err
			}
			if !has {
				out = append(out, brokenRef(from, ref, from.Slug, ReasonMissingAnchor))
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FromSlug != out[j].FromSlug {
			return out[i].FromSlug < out[j].FromSlug
		}
		return out[i].Line < out[j].Line
	})
	return out, nil
}

// Graph returns the adjacency snapshot over every imported standard.
func (s *service) Graph(ctx context.Context) (*Graph, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	graph := &Graph{
		Nodes: make([]*Node, 0, len(snap.records)),
		Edges: []*Edge{},
	}
	for _, record := range snap.records {
		graph.Nodes = append(graph.Nodes, &Node{
			Slug:     record.Slug,
			Title:    record.Title,
			Category: record.Category,
			Status:   record.Status,
		})
	}

	for _, ref := range snap.references {
		if ref.Kind != standards.ReferenceInternal || ref.TargetSlug == nil {
			continue
		}
		from, ok := snap.byID[ref.StandardID]
		if !ok {
			continue
		}
		if _, exists := snap.bySlug[*ref.TargetSlug]; !exists {
			continue
		}
		graph.Edges = append(graph.Edges, &Edge{
			From:     from.Slug,
			To:       *ref.TargetSlug,
			Fragment: ref.Fragment,
			Line:     ref.Line,
		})
	}

	sort.Slice(graph.Edges, func(i, j int) bool {
		if graph.Edges[i].From != graph.Edges[j].From {
			return graph.Edges[i].From < graph.Edges[j].From
		}
		return graph.Edges[i].Line < graph.Edges[j].Line
	})
	return graph, nil
}

func brokenRef(from *standards.Standard, ref *standards.Reference, target string, reason BrokenReason) *BrokenReference {
	return &BrokenReference{
		FromSlug:   from.Slug,
		FromPath:   from.SourcePath,
		RawDest:    ref.RawDest,
		TargetSlug: target,
		Fragment:   ref.Fragment,
		Line:       ref.Line,
		Reason:     reason,
	}
}

// snapshot is one consistent read of the corpus tables.
type snapshot struct {
	records    []*standards.Standard
	bySlug     map[string]*standards.Standard
	byID       map[uuid.UUID]*standards.Standard
	references []*standards.Reference
}

func (s *service) load(ctx context.Context) (*snapshot, error) {
	records, err := s.standards.List(ctx)
	if err != nil {
		return nil, err
	}
	references, err := s.standards.ListAllReferences(ctx)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		records:    records,
		bySlug:     make(map[string]*standards.Standard, len(records)),
		byID:       make(map[uuid.UUID]*standards.Standard, len(records)),
		references: references,
	}
	for _, record := range records {
		snap.bySlug[record.Slug] = record
		snap.byID[record.ID] = record
	}
	return snap, nil
}

// anchorIndex memoizes per-standard heading anchors so Broken only loads
// sections for documents a fragment actually points at.
type anchorIndex struct {
	repo   standards.StandardRepository
	loaded map[uuid.UUID]map[string]struct{}
}

func newAnchorIndex(repo standards.StandardRepository) *anchorIndex {
	return &anchorIndex{
		repo:   repo,
		loaded: make(map[uuid.UUID]map[string]struct{}),
	}
}

func (a *anchorIndex) has(ctx context.Context, standardID uuid.UUID, fragment string) (bool, error) {
	anchors, ok := a.loaded[standardID]
	if !ok {
		sections, err := a.repo.ListSections(ctx, standardID)
		if err != nil {
			return false, err
		}
		anchors = make(map[string]struct{}, len(sections))
		for _, section := range sections {
			anchors[section.Anchor] = struct{}{}
		}
		a.loaded[standardID] = anchors
	}

	_, found := anchors[strings.ToLower(strings.TrimSpace(fragment))]
	return found, nil
}
