package corpus

import "github.com/mwtmurphy/go-playbook/standards"

type (
	Standard      = standards.Standard
	Section       = standards.Section
	Reference     = standards.Reference
	ReferenceKind = standards.ReferenceKind
	Revision      = standards.Revision
	Outline       = standards.Outline
	OutlineNode   = standards.OutlineNode
	Stats         = standards.Stats
)

const (
	ReferenceInternal = standards.ReferenceInternal
	ReferenceExternal = standards.ReferenceExternal
	ReferenceAnchor   = standards.ReferenceAnchor
)
