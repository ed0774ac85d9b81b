package corpus

import (
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

func NewStandardRepository(db *bun.DB) repository.Repository[*Standard] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Standard]{
		NewRecord: func() *Standard { return &Standard{} },
		GetID: func(s *Standard) uuid.UUID {
			return s.ID
		},
		SetID: func(s *Standard, id uuid.UUID) {
			s.ID = id
		},
		GetIdentifier: func() string {
			return "slug"
		},
		GetIdentifierValue: func(s *Standard) string {
			return s.Slug
		},
	})
}

func NewSectionRepository(db *bun.DB) repository.Repository[*Section] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Section]{
		NewRecord: func() *Section { return &Section{} },
		GetID: func(s *Section) uuid.UUID {
			return s.ID
		},
		SetID: func(s *Section, id uuid.UUID) {
			s.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(s *Section) string {
			if s == nil {
				return ""
			}
			return s.ID.String()
		},
	})
}

func NewReferenceRepository(db *bun.DB) repository.Repository[*Reference] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Reference]{
		NewRecord: func() *Reference { return &Reference{} },
		GetID: func(r *Reference) uuid.UUID {
			return r.ID
		},
		SetID: func(r *Reference, id uuid.UUID) {
			r.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(r *Reference) string {
			if r == nil {
				return ""
			}
			return r.ID.String()
		},
	})
}

// NewRevisionRepository creates a repository for Revision entities.
func NewRevisionRepository(db *bun.DB) repository.Repository[*Revision] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Revision]{
		NewRecord: func() *Revision { return &Revision{} },
		GetID: func(r *Revision) uuid.UUID {
			return r.ID
		},
		SetID: func(r *Revision, id uuid.UUID) {
			r.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(r *Revision) string {
			if r == nil {
				return ""
			}
			return r.ID.String()
		},
	})
}
