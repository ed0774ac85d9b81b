package corpuscmd

import (
	"context"
	"strings"

	"github.com/mwtmurphy/go-playbook/internal/commands"
	"github.com/mwtmurphy/go-playbook/internal/logging"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
	"github.com/mwtmurphy/go-playbook/standards"
)

// Syncer exposes the corpus synchronisation operation required by the sync
// command. The standards service satisfies it.
type Syncer interface {
	Sync(ctx context.Context, opts standards.SyncOptions) (*standards.SyncResult, error)
}

// Reindexer exposes the structure rebuild operation required by the reindex
// command. The standards service satisfies it.
type Reindexer interface {
	Reindex(ctx context.Context) (*standards.ReindexResult, error)
}

// SyncCorpusHandler runs corpus synchronisation through the shared command
// handler foundation.
type SyncCorpusHandler struct {
	inner *commands.Handler[SyncCorpusCommand]
}

// NewSyncCorpusHandler constructs a handler wired to the provided corpus service.
func NewSyncCorpusHandler(service Syncer, logger interfaces.Logger, opts ...commands.HandlerOption[SyncCorpusCommand]) *SyncCorpusHandler {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = logging.NoOp()
	}

	exec := func(ctx context.Context, msg SyncCorpusCommand) error {
		options := standards.SyncOptions{
			ImportOptions: standards.ImportOptions{
				Status: strings.TrimSpace(msg.Status),
				DryRun: msg.DryRun,
			},
			DeleteOrphaned: msg.DeleteOrphaned,
			UpdateExisting: msg.UpdateExisting == nil || *msg.UpdateExisting,
		}

		result, err := service.Sync(ctx, options)
		invokeSyncCallback(msg.ResultCallback, SyncResultEnvelope{
			Result: result,
			Metadata: map[string]any{
				"operation": "sync",
				"dry_run":   msg.DryRun,
			},
		})
		if err != nil {
			return err
		}
		return nil
	}

	handlerOpts := []commands.HandlerOption[SyncCorpusCommand]{
		commands.WithLogger[SyncCorpusCommand](baseLogger),
		commands.WithOperation[SyncCorpusCommand]("corpus.sync"),
		commands.WithMessageFields(func(msg SyncCorpusCommand) map[string]any {
			fields := map[string]any{}
			if status := strings.TrimSpace(msg.Status); status != "" {
				fields["default_status"] = status
			}
			if msg.DryRun {
				fields["dry_run"] = true
			}
			if msg.DeleteOrphaned {
				fields["delete_orphaned"] = true
			}
			if msg.UpdateExisting != nil && !*msg.UpdateExisting {
				fields["update_existing"] = false
			}
			return fields
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[SyncCorpusCommand](baseLogger)),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &SyncCorpusHandler{
		inner: commands.NewHandler(exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[SyncCorpusCommand].
func (h *SyncCorpusHandler) Execute(ctx context.Context, msg SyncCorpusCommand) error {
	return h.inner.Execute(ctx, msg)
}

// ReindexReferencesHandler rebuilds the derived document structure.
type ReindexReferencesHandler struct {
	inner *commands.Handler[ReindexReferencesCommand]
}

// NewReindexReferencesHandler constructs a handler wired to the provided corpus service.
func NewReindexReferencesHandler(service Reindexer, logger interfaces.Logger, opts ...commands.HandlerOption[ReindexReferencesCommand]) *ReindexReferencesHandler {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = logging.NoOp()
	}

	exec := func(ctx context.Context, msg ReindexReferencesCommand) error {
		result, err := service.Reindex(ctx)
		invokeReindexCallback(msg.ResultCallback, ReindexResultEnvelope{
			Result: result,
			Metadata: map[string]any{
				"operation": "reindex",
			},
		})
		if err != nil {
			return err
		}
		return nil
	}

	handlerOpts := []commands.HandlerOption[ReindexReferencesCommand]{
		commands.WithLogger[ReindexReferencesCommand](baseLogger),
		commands.WithOperation[ReindexReferencesCommand]("corpus.reindex"),
		commands.WithTelemetry(commands.DefaultTelemetry[ReindexReferencesCommand](baseLogger)),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &ReindexReferencesHandler{
		inner: commands.NewHandler(exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[ReindexReferencesCommand].
func (h *ReindexReferencesHandler) Execute(ctx context.Context, msg ReindexReferencesCommand) error {
	return h.inner.Execute(ctx, msg)
}

func invokeSyncCallback(cb SyncResultCallback, envelope SyncResultEnvelope) {
	if cb == nil {
		return
	}
	cb(envelope)
}

func invokeReindexCallback(cb ReindexResultCallback, envelope ReindexResultEnvelope) {
	if cb == nil {
		return
	}
	cb(envelope)
}
