package audit

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwtmurphy/go-playbook/internal/profile"
	"github.com/mwtmurphy/go-playbook/internal/refgraph"
	"github.com/mwtmurphy/go-playbook/pkg/activity"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
	"github.com/mwtmurphy/go-playbook/standards"
)

// Service evaluates the rule catalog over the imported corpus.
type Service interface {
	Run(ctx context.Context, opts RunOptions) (*Report, error)
	Latest(ctx context.Context) (*Report, error)
}

// RunOptions adjusts a single run.
type RunOptions struct {
	// Disabled skips rule codes for this run, on top of the service config.
	Disabled []string
}

// Config holds the audit thresholds and pool size.
type Config struct {
	// Workers bounds the document evaluation pool; zero means NumCPU.
	Workers int
	// MaxLines is the PB005 limit; zero applies the default.
	MaxLines int
	// StaleAfterDays is the PB004 window; zero applies the default.
	StaleAfterDays int
	// Disabled lists rule codes excluded from every run.
	Disabled []string
}

// ServiceOption configures the audit service.
type ServiceOption func(*service)

// WithRegistry replaces the default rule catalog.
func WithRegistry(registry *Registry) ServiceOption {
	return func(s *service) {
		if registry != nil {
			s.registry = registry
		}
	}
}

// WithProfile sets the front matter profile evaluated by the default
// catalog's PB009 rule.
func WithProfile(p *profile.Profile) ServiceOption {
	return func(s *service) {
		s.profile = p
	}
}

// WithSource provides the document source used for source-level rules such
// as slug uniqueness.
func WithSource(source standards.DocumentSource) ServiceOption {
	return func(s *service) {
		s.source = source
	}
}

// WithEmitter attaches the activity emitter notified when a run finishes.
func WithEmitter(emitter *activity.Emitter) ServiceOption {
	return func(s *service) {
		s.emitter = emitter
	}
}

// WithLogger attaches a logger for run progress.
func WithLogger(logger interfaces.Logger) ServiceOption {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides run and issue ID generation.
func WithIDGenerator(id func() uuid.UUID) ServiceOption {
	return func(s *service) {
		if id != nil {
			s.id = id
		}
	}
}

type service struct {
	repo      Repository
	standards standards.StandardRepository
	graph     refgraph.Service
	scanner   interfaces.StructureScanner
	cfg       Config
	registry  *Registry
	profile   *profile.Profile
	source    standards.DocumentSource
	emitter   *activity.Emitter
	logger    interfaces.Logger
	now       func() time.Time
	id        func() uuid.UUID
}

// NewService wires the audit engine over the corpus store and the reference
// graph.
func NewService(repo Repository, corpusRepo standards.StandardRepository, graph refgraph.Service, scanner interfaces.StructureScanner, cfg Config, opts ...ServiceOption) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit: repository is required")
	}
	if corpusRepo == nil {
		return nil, standards.ErrRepositoryRequired
	}
	if graph == nil {
		return nil, fmt.Errorf("audit: reference graph is required")
	}
	if scanner == nil {
		return nil, standards.ErrScannerRequired
	}

	s := &service{
		repo:      repo,
		standards: corpusRepo,
		graph:     graph,
		scanner:   scanner,
		cfg:       cfg,
		now:       time.Now,
		id:        uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = DefaultRegistry(RuleConfig{
			MaxLines:       cfg.MaxLines,
			StaleAfterDays: cfg.StaleAfterDays,
			Profile:        s.profile,
		})
	}
	return s, nil
}

// Run evaluates every enabled rule, persists the run with its issues, and
// emits an activity event. A failed evaluation is recorded as a failed run.
func (s *service) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	startedAt := s.now().UTC()
	created, err := s.repo.CreateRun(ctx, &Run{
		ID:        s.id(),
		Status:    RunStatusRunning,
		StartedAt: startedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("audit: create run: %w", err)
	}

	issues, documents, evalErr := s.evaluate(ctx, opts)
	finishedAt := s.now().UTC()
	created.FinishedAt = &finishedAt
	created.Documents = documents

	if evalErr != nil {
		created.Status = RunStatusFailed
		created.Meta = map[string]any{"error": evalErr.Error()}
		if _, updateErr := s.repo.UpdateRun(ctx, created); updateErr != nil && s.logger != nil {
			s.logger.Error("audit run update failed", "run_id", created.ID, "error", updateErr)
		}
		return nil, evalErr
	}

	for _, issue := range issues {
		issue.ID = s.id()
		issue.RunID = created.ID
		issue.CreatedAt = finishedAt
		switch issue.Severity {
		case SeverityError:
			created.Errors++
		case SeverityWarning:
			created.Warnings++
		case SeverityInfo:
			created.Infos++
		}
	}
	sortIssues(issues)

	if err := s.repo.CreateIssues(ctx, issues); err != nil {
		return nil, fmt.Errorf("audit: persist issues: %w", err)
	}

	created.Status = RunStatusFinished
	updated, err := s.repo.UpdateRun(ctx, created)
	if err != nil {
		return nil, fmt.Errorf("audit: finish run: %w", err)
	}

	s.emitRunEvent(ctx, updated)
	if s.logger != nil {
		s.logger.Info("audit run finished",
			"run_id", updated.ID,
			"documents", updated.Documents,
			"errors", updated.Errors,
			"warnings", updated.Warnings,
			"infos", updated.Infos,
		)
	}
	return &Report{Run: updated, Issues: issues}, nil
}

// Latest returns the most recent finished run with its issues.
func (s *service) Latest(ctx context.Context) (*Report, error) {
	run, err := s.repo.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	issues, err := s.repo.ListIssues(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return &Report{Run: run, Issues: issues}, nil
}

func (s *service) evaluate(ctx context.Context, opts RunOptions) ([]*Issue, int, error) {
	disabled := append(append([]string(nil), s.cfg.Disabled...), opts.Disabled...)
	rules := s.registry.Enabled(disabled...)

	var documentRules, corpusRules []Rule
	for _, rule := range rules {
		if rule.Document != nil {
			documentRules = append(documentRules, rule)
		}
		if rule.Corpus != nil {
			corpusRules = append(corpusRules, rule)
		}
	}

	records, err := s.standards.List(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: load corpus: %w", err)
	}

	var issues []*Issue

	if len(corpusRules) > 0 {
		broken, brokenErr := s.graph.Broken(ctx)
		if brokenErr != nil {
			return nil, len(records), fmt.Errorf("audit: reference graph: %w", brokenErr)
		}
		corpusCtx := &CorpusContext{Standards: records, Broken: broken}
		if s.source != nil {
			docs, loadErr := s.source.Load(ctx)
			if loadErr != nil {
				return nil, len(records), fmt.Errorf("audit: load source corpus: %w", loadErr)
			}
			corpusCtx.Documents = docs
		}
		for _, rule := range corpusRules {
			issues = append(issues, toIssues(rule, rule.Corpus(corpusCtx))...)
		}
	}

	docIssues, err := s.evaluateDocuments(ctx, records, documentRules)
	if err != nil {
		return nil, len(records), err
	}
	issues = append(issues, docIssues...)

	return issues, len(records), nil
}

// evaluateDocuments runs the per-document rules across a bounded pool.
func (s *service) evaluateDocuments(ctx context.Context, records []*standards.Standard, rules []Rule) ([]*Issue, error) {
	if len(rules) == 0 || len(records) == 0 {
		return nil, nil
	}

	now := s.now().UTC()

	var (
		mu     sync.Mutex
		issues []*Issue
		errs   []error
	)
	collect := func(found []*Issue, err error) {
		mu.Lock()
		defer mu.Unlock()
		issues = append(issues, found...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	workers := s.effectiveWorkers(len(records))
	if workers <= 1 || len(records) <= 1 {
		for _, record := range records {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
				collect(s.auditDocument(record, rules, now))
			}
		}
	} else {
		jobs := make(chan *standards.Standard)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for record := range jobs {
					select {
					case <-ctx.Done():
						collect(nil, ctx.Err())
						return
					default:
						collect(s.auditDocument(record, rules, now))
					}
				}
			}()
		}
		for _, record := range records {
			select {
			case <-ctx.Done():
				close(jobs)
				wg.Wait()
				return nil, ctx.Err()
			case jobs <- record:
			}
		}
		close(jobs)
		wg.Wait()
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return issues, nil
}

func (s *service) auditDocument(record *standards.Standard, rules []Rule, now time.Time) ([]*Issue, error) {
	structure, err := s.scanner.Scan(&interfaces.Document{
		FilePath: record.SourcePath,
		Body:     []byte(record.Body),
	})
	if err != nil {
		return nil, fmt.Errorf("audit: scan %s: %w", record.SourcePath, err)
	}

	dc := &DocumentContext{
		Standard:  record,
		Structure: structure,
		Now:       now,
	}

	var issues []*Issue
	for _, rule := range rules {
		issues = append(issues, toIssues(rule, rule.Document(dc))...)
	}
	return issues, nil
}

func (s *service) effectiveWorkers(jobCount int) int {
	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}
	if jobCount > 0 && workers > jobCount {
		workers = jobCount
	}
	return workers
}

func (s *service) emitRunEvent(ctx context.Context, run *Run) {
	if s.emitter == nil || !s.emitter.Enabled() {
		return
	}
	_ = s.emitter.Emit(ctx, activity.Event{
		Verb:       "audit",
		ObjectType: "audit_run",
		ObjectID:   run.ID.String(),
		Metadata: map[string]any{
			"documents": run.Documents,
			"errors":    run.Errors,
			"warnings":  run.Warnings,
			"infos":     run.Infos,
		},
	})
}

func toIssues(rule Rule, findings []Finding) []*Issue {
	if len(findings) == 0 {
		return nil
	}
	out := make([]*Issue, 0, len(findings))
	for _, finding := range findings {
		out = append(out, &Issue{
			Code:     rule.Code,
			Severity: rule.Severity,
			Slug:     finding.Slug,
			Path:     finding.Path,
			Line:     finding.Line,
			Message:  finding.Message,
		})
	}
	return out
}

func sortIssues(issues []*Issue) {
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Path != issues[j].Path {
			return issues[i].Path < issues[j].Path
		}
		if issues[i].Line != issues[j].Line {
			return issues[i].Line < issues[j].Line
		}
		return issues[i].Code < issues[j].Code
	})
}
