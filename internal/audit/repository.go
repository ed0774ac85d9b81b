package audit

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/mwtmurphy/go-playbook/standards"
)

// Repository persists audit runs and their issues.
type Repository interface {
	CreateRun(ctx context.Context, run *Run) (*Run, error)
	UpdateRun(ctx context.Context, run *Run) (*Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	LatestRun(ctx context.Context) (*Run, error)
	CreateIssues(ctx context.Context, issues []*Issue) error
	ListIssues(ctx context.Context, runID uuid.UUID) ([]*Issue, error)
}

// ErrNoRuns reports that no finished audit run exists yet.
var ErrNoRuns = fmt.Errorf("audit: no finished runs")

func newRunRepository(db *bun.DB) repository.Repository[*Run] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Run]{
		NewRecord: func() *Run { return &Run{} },
		GetID: func(r *Run) uuid.UUID {
			return r.ID
		},
		SetID: func(r *Run, id uuid.UUID) {
			r.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(r *Run) string {
			if r == nil {
				return ""
			}
			return r.ID.String()
		},
	})
}

func newIssueRepository(db *bun.DB) repository.Repository[*Issue] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Issue]{
		NewRecord: func() *Issue { return &Issue{} },
		GetID: func(i *Issue) uuid.UUID {
			return i.ID
		},
		SetID: func(i *Issue, id uuid.UUID) {
			i.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(i *Issue) string {
			if i == nil {
				return ""
			}
			return i.ID.String()
		},
	})
}

// BunRepository stores runs and issues through go-repository-bun handlers.
type BunRepository struct {
	db     *bun.DB
	runs   repository.Repository[*Run]
	issues repository.Repository[*Issue]
}

// NewBunRepository wires the audit tables on the given bun database.
func NewBunRepository(db *bun.DB) *BunRepository {
	return &BunRepository{
		db:     db,
		runs:   newRunRepository(db),
		issues: newIssueRepository(db),
	}
}

func (r *BunRepository) CreateRun(ctx context.Context, run *Run) (*Run, error) {
	created, err := r.runs.Create(ctx, run)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *BunRepository) UpdateRun(ctx context.Context, run *Run) (*Run, error) {
	updated, err := r.runs.Update(ctx, run,
		repository.UpdateByID(run.ID.String()),
		repository.UpdateColumns(
			"status",
			"documents",
			"errors",
			"warnings",
			"infos",
			"meta",
			"finished_at",
		),
	)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *BunRepository) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	record, err := r.runs.GetByID(ctx, id.String())
	if err != nil {
		if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
			return nil, &standards.NotFoundError{Resource: "audit_run", Key: id.String()}
		}
		return nil, fmt.Errorf("audit_run repository error: %w", err)
	}
	return record, nil
}

func (r *BunRepository) LatestRun(ctx context.Context) (*Run, error) {
	records, _, err := r.runs.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.status = ?", RunStatusFinished)
		}),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.started_at DESC")
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRuns
	}
	return records[0], nil
}

func (r *BunRepository) CreateIssues(ctx context.Context, issues []*Issue) error {
	if len(issues) == 0 {
		return nil
	}
	if r.db == nil {
		return fmt.Errorf("audit repository: database not configured")
	}
	if _, err := r.db.NewInsert().Model(&issues).Exec(ctx); err != nil {
		return fmt.Errorf("insert audit issues: %w", err)
	}
	return nil
}

func (r *BunRepository) ListIssues(ctx context.Context, runID uuid.UUID) ([]*Issue, error) {
	records, _, err := r.issues.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.run_id = ?", runID)
		}),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.path ASC, ?TableAlias.line ASC, ?TableAlias.code ASC")
		}),
	)
	return records, err
}
