package corpuscmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/mwtmurphy/go-playbook/standards"
)

func TestSyncCorpusHandler_Execute(t *testing.T) {
	cmd := loadSyncFixture(t, "sync_full.json")

	var capturedOpts standards.SyncOptions
	callbackInvoked := false

	svc := &fakeCorpusService{
		syncFunc: func(ctx context.Context, opts standards.SyncOptions) (*standards.SyncResult, error) {
			capturedOpts = opts
			return &standards.SyncResult{Created: 2, Updated: 1}, nil
		},
	}

	handler := NewSyncCorpusHandler(svc, nil)

	cmd.ResultCallback = func(env SyncResultEnvelope) {
		callbackInvoked = true
		if env.Result == nil {
			t.Fatalf("expected sync result, got nil")
		}
		if env.Result.Created != 2 || env.Result.Updated != 1 {
			t.Fatalf("unexpected result counts: %+v", env.Result)
		}
		if env.Metadata["operation"] != "sync" {
			t.Fatalf("expected operation sync, got %v", env.Metadata["operation"])
		}
	}

	if err := handler.Execute(context.Background(), cmd); err != nil {
		t.Fatalf("execute sync: %v", err)
	}

	if capturedOpts.Status != "published" {
		t.Fatalf("expected default status published, got %q", capturedOpts.Status)
	}
	if !capturedOpts.DeleteOrphaned {
		t.Fatal("expected DeleteOrphaned to be set")
	}
	if !capturedOpts.UpdateExisting {
		t.Fatal("expected UpdateExisting to default to true")
	}
	if !callbackInvoked {
		t.Fatal("expected callback to be invoked")
	}
}

func TestSyncCorpusHandler_Execute_DryRun(t *testing.T) {
	cmd := loadSyncFixture(t, "sync_dry_run.json")

	var capturedOpts standards.SyncOptions
	svc := &fakeCorpusService{
		syncFunc: func(ctx context.Context, opts standards.SyncOptions) (*standards.SyncResult, error) {
			capturedOpts = opts
			return &standards.SyncResult{Skipped: 3}, nil
		},
	}

	handler := NewSyncCorpusHandler(svc, nil)
	if err := handler.Execute(context.Background(), cmd); err != nil {
		t.Fatalf("execute dry run: %v", err)
	}

	if !capturedOpts.DryRun {
		t.Fatal("expected DryRun to be set")
	}
	if capturedOpts.UpdateExisting {
		t.Fatal("expected explicit update_existing false to be honoured")
	}
}

func TestSyncCorpusHandler_PartialFailureStillDeliversResult(t *testing.T) {
	syncErr := errors.New("standards/broken.md: body required")
	svc := &fakeCorpusService{
		syncFunc: func(ctx context.Context, opts standards.SyncOptions) (*standards.SyncResult, error) {
			return &standards.SyncResult{Created: 1, Errors: []error{syncErr}}, syncErr
		},
	}

	handler := NewSyncCorpusHandler(svc, nil)

	var envelope *SyncResultEnvelope
	cmd := SyncCorpusCommand{ResultCallback: func(env SyncResultEnvelope) {
		envelope = &env
	}}

	err := handler.Execute(context.Background(), cmd)
	if err == nil {
		t.Fatal("expected sync failure to propagate")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category, got %v", err)
	}
	if !errors.Is(err, syncErr) {
		t.Fatalf("expected original sync error in chain, got %v", err)
	}

	if envelope == nil || envelope.Result == nil {
		t.Fatal("expected partial result to reach the callback")
	}
	if envelope.Result.Created != 1 {
		t.Fatalf("unexpected partial result: %+v", envelope.Result)
	}
}

func TestSyncCorpusCommandValidate(t *testing.T) {
	cmd := loadSyncFixture(t, "sync_invalid_status.json")
	if err := cmd.Validate(); err == nil {
		t.Fatal("expected validation error for unknown status")
	}

	valid := SyncCorpusCommand{Status: "archived"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected archived to validate, got %v", err)
	}
}

func TestSyncCorpusHandler_ValidationShortCircuits(t *testing.T) {
	called := false
	svc := &fakeCorpusService{
		syncFunc: func(ctx context.Context, opts standards.SyncOptions) (*standards.SyncResult, error) {
			called = true
			return &standards.SyncResult{}, nil
		},
	}

	handler := NewSyncCorpusHandler(svc, nil)
	err := handler.Execute(context.Background(), SyncCorpusCommand{Status: "live"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", err)
	}
	if called {
		t.Fatal("expected service not to run when validation fails")
	}
}

func TestReindexReferencesHandler_Execute(t *testing.T) {
	reindexCalled := false
	svc := &fakeCorpusService{
		reindexFunc: func(ctx context.Context) (*standards.ReindexResult, error) {
			reindexCalled = true
			return &standards.ReindexResult{Documents: 4, Sections: 12, References: 7}, nil
		},
	}

	handler := NewReindexReferencesHandler(svc, nil)

	callbackInvoked := false
	cmd := ReindexReferencesCommand{ResultCallback: func(env ReindexResultEnvelope) {
		callbackInvoked = true
		if env.Result == nil || env.Result.Documents != 4 {
			t.Fatalf("unexpected reindex result: %+v", env.Result)
		}
		if env.Metadata["operation"] != "reindex" {
			t.Fatalf("expected operation reindex, got %v", env.Metadata["operation"])
		}
	}}

	if err := handler.Execute(context.Background(), cmd); err != nil {
		t.Fatalf("execute reindex: %v", err)
	}
	if !reindexCalled {
		t.Fatal("expected Reindex to be called")
	}
	if !callbackInvoked {
		t.Fatal("expected callback to be invoked")
	}
}

func TestReindexReferencesHandler_FailurePropagates(t *testing.T) {
	reindexErr := errors.New("scan failed")
	svc := &fakeCorpusService{
		reindexFunc: func(ctx context.Context) (*standards.ReindexResult, error) {
			return &standards.ReindexResult{Failed: 1}, reindexErr
		},
	}

	handler := NewReindexReferencesHandler(svc, nil)
	err := handler.Execute(context.Background(), ReindexReferencesCommand{})
	if err == nil {
		t.Fatal("expected reindex failure to propagate")
	}
	if !errors.Is(err, reindexErr) {
		t.Fatalf("expected original error in chain, got %v", err)
	}
}

func loadSyncFixture(t *testing.T, name string) SyncCorpusCommand {
	t.Helper()
	var cmd SyncCorpusCommand
	loadFixture(t, name, &cmd)
	return cmd
}

func loadFixture(t *testing.T, name string, target any) {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("unmarshal fixture %s: %v", name, err)
	}
}

type fakeCorpusService struct {
	syncFunc    func(context.Context, standards.SyncOptions) (*standards.SyncResult, error)
	reindexFunc func(context.Context) (*standards.ReindexResult, error)
}

func (f *fakeCorpusService) Sync(ctx context.Context, opts standards.SyncOptions) (*standards.SyncResult, error) {
	if f.syncFunc != nil {
		return f.syncFunc(ctx, opts)
	}
	return &standards.SyncResult{}, nil
}

func (f *fakeCorpusService) Reindex(ctx context.Context) (*standards.ReindexResult, error) {
	if f.reindexFunc != nil {
		return f.reindexFunc(ctx)
	}
	return &standards.ReindexResult{}, nil
}
