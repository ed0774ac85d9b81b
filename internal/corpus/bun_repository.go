package corpus

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BunStandardRepository struct {
	db         *bun.DB
	repo       repository.Repository[*Standard]
	sections   repository.Repository[*Section]
	references repository.Repository[*Reference]
	revisions  repository.Repository[*Revision]
}

func NewBunStandardRepository(db *bun.DB) *BunStandardRepository {
	return NewBunStandardRepositoryWithCache(db, nil, nil)
}

// NewBunStandardRepositoryWithCache constructs a StandardRepository backed by
// bun with optional read-through caching.
func NewBunStandardRepositoryWithCache(db *bun.DB, cacheService cache.CacheService, keySerializer cache.KeySerializer) *BunStandardRepository {
	base := NewStandardRepository(db)
	sectionBase := NewSectionRepository(db)
	referenceBase := NewReferenceRepository(db)
	revisionBase := NewRevisionRepository(db)
	return &BunStandardRepository{
		db:         db,
		repo:       wrapWithCache(base, cacheService, keySerializer),
		sections:   wrapWithCache(sectionBase, cacheService, keySerializer),
		references: wrapWithCache(referenceBase, cacheService, keySerializer),
		revisions:  wrapWithCache(revisionBase, cacheService, keySerializer),
	}
}

func (r *BunStandardRepository) Create(ctx context.Context, record *Standard) (*Standard, error) {
	created, err := r.repo.Create(ctx, record)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *BunStandardRepository) Update(ctx context.Context, record *Standard) (*Standard, error) {
	updated, err := r.repo.Update(ctx, record,
		repository.UpdateByID(record.ID.String()),
		repository.UpdateColumns(
			"title",
			"summary",
			"category",
			"tags",
			"status",
			"source_path",
			"checksum",
			"body",
			"lines",
			"body_offset",
			"last_updated",
			"meta",
			"updated_at",
		),
	)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *BunStandardRepository) GetByID(ctx context.Context, id uuid.UUID) (*Standard, error) {
	result, err := r.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, "standard", id.String())
	}
	return result, nil
}

func (r *BunStandardRepository) GetBySlug(ctx context.Context, slug string) (*Standard, error) {
	result, err := r.repo.GetByIdentifier(ctx, slug)
	if err != nil {
		return nil, mapRepositoryError(err, "standard", slug)
	}
	return result, nil
}

func (r *BunStandardRepository) List(ctx context.Context) ([]*Standard, error) {
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.slug ASC")
		}),
	)
	return records, err
}

// ReplaceStructure swaps the extracted outline and reference rows for a
// standard in one transaction, so readers never mix rows from two imports.
func (r *BunStandardRepository) ReplaceStructure(ctx context.Context, standardID uuid.UUID, sections []*Section, references []*Reference) error {
	if r.db == nil {
		return fmt.Errorf("standard repository: database not configured")
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*Section)(nil)).
			Where("?TableAlias.standard_id = ?", standardID).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete standard sections: %w", err)
		}

		if _, err := tx.NewDelete().
			Model((*Reference)(nil)).
			Where("?TableAlias.standard_id = ?", standardID).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete standard references: %w", err)
		}

		now := time.Now().UTC()

		if len(sections) > 0 {
			toInsert := make([]*Section, 0, len(sections))
			for i, section := range sections {
				if section == nil {
					continue
				}
				cloned := *section
				cloned.StandardID = standardID
				cloned.Position = i
				if cloned.ID == uuid.Nil {
					cloned.ID = uuid.New()
				}
				if cloned.CreatedAt.IsZero() {
					cloned.CreatedAt = now
				}
				toInsert = append(toInsert, &cloned)
			}
			if len(toInsert) > 0 {
				if _, err := tx.NewInsert().Model(&toInsert).Exec(ctx); err != nil {
					return fmt.Errorf("insert standard sections: %w", err)
				}
			}
		}

		if len(references) > 0 {
			toInsert := make([]*Reference, 0, len(references))
			for i, reference := range references {
				if reference == nil {
					continue
				}
				cloned := *reference
				cloned.StandardID = standardID
				cloned.Position = i
				if cloned.ID == uuid.Nil {
					cloned.ID = uuid.New()
				}
				if cloned.CreatedAt.IsZero() {
					cloned.CreatedAt = now
				}
				toInsert = append(toInsert, &cloned)
			}
			if len(toInsert) > 0 {
				if _, err := tx.NewInsert().Model(&toInsert).Exec(ctx); err != nil {
					return fmt.Errorf("insert standard references: %w", err)
				}
			}
		}

		return nil
	})
}

func (r *BunStandardRepository) ListSections(ctx context.Context, standardID uuid.UUID) ([]*Section, error) {
	records, _, err := r.sections.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.standard_id = ?", standardID)
		}),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.position ASC")
		}),
	)
	return records, err
}

func (r *BunStandardRepository) ListReferences(ctx context.Context, standardID uuid.UUID) ([]*Reference, error) {
	records, _, err := r.references.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.standard_id = ?", standardID)
		}),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.position ASC")
		}),
	)
	return records, err
}

func (r *BunStandardRepository) ListAllReferences(ctx context.Context) ([]*Reference, error) {
	records, _, err := r.references.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.standard_id ASC, ?TableAlias.position ASC")
		}),
	)
	return records, err
}

func (r *BunStandardRepository) CreateRevision(ctx context.Context, revision *Revision) (*Revision, error) {
	created, err := r.revisions.Create(ctx, revision)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *BunStandardRepository) ListRevisions(ctx context.Context, standardID uuid.UUID) ([]*Revision, error) {
	records, _, err := r.revisions.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.standard_id = ?", standardID)
		}),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.version ASC")
		}),
	)
	return records, err
}

func (r *BunStandardRepository) GetLatestRevision(ctx context.Context, standardID uuid.UUID) (*Revision, error) {
	records, _, err := r.revisions.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.standard_id = ?", standardID)
		}),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.version DESC")
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Resource: "revision", Key: standardID.String()}
	}
	return records[0], nil
}

// Delete removes a standard with its structure and history rows.
func (r *BunStandardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if r.db == nil {
		return fmt.Errorf("standard repository: database not configured")
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*Section)(nil)).
			Where("?TableAlias.standard_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete standard sections: %w", err)
		}
		if _, err := tx.NewDelete().
			Model((*Reference)(nil)).
			Where("?TableAlias.standard_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete standard references: %w", err)
		}
		if _, err := tx.NewDelete().
			Model((*Revision)(nil)).
			Where("?TableAlias.standard_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete standard revisions: %w", err)
		}
		if _, err := tx.NewDelete().
			Model((*Standard)(nil)).
			Where("?TableAlias.id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete standard: %w", err)
		}
		return nil
	})
}

func mapRepositoryError(err error, resource, key string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return &NotFoundError{
			Resource: resource,
			Key:      key,
		}
	}
	return fmt.Errorf("%s repository error: %w", resource, err)
}

func wrapWithCache[T any](base repository.Repository[T], cacheService cache.CacheService, keySerializer cache.KeySerializer) repository.Repository[T] {
	if cacheService == nil || keySerializer == nil {
		return base
	}
	return repositorycache.New(base, cacheService, keySerializer)
}
