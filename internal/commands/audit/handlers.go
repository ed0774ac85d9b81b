package auditcmd

import (
	"context"
	"strings"

	"github.com/mwtmurphy/go-playbook/internal/audit"
	"github.com/mwtmurphy/go-playbook/internal/commands"
	"github.com/mwtmurphy/go-playbook/internal/logging"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

// Auditor abstracts the audit service operations the handler requires. The
// audit service satisfies it.
type Auditor interface {
	Run(ctx context.Context, opts audit.RunOptions) (*audit.Report, error)
}

// AuditCorpusHandler evaluates the rule catalog through the shared command
// handler foundation.
type AuditCorpusHandler struct {
	inner *commands.Handler[AuditCorpusCommand]
}

// NewAuditCorpusHandler constructs a handler wired to the provided audit service.
func NewAuditCorpusHandler(service Auditor, logger interfaces.Logger, opts ...commands.HandlerOption[AuditCorpusCommand]) *AuditCorpusHandler {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = logging.NoOp()
	}

	exec := func(ctx context.Context, msg AuditCorpusCommand) error {
		options := audit.RunOptions{
			Disabled: normalizeRuleCodes(msg.Disabled),
		}

		report, err := service.Run(ctx, options)
		invokeCallback(msg.ResultCallback, ResultEnvelope{
			Result: report,
			Metadata: map[string]any{
				"operation": "audit",
			},
		})
		if err != nil {
			return err
		}
		return nil
	}

	handlerOpts := []commands.HandlerOption[AuditCorpusCommand]{
		commands.WithLogger[AuditCorpusCommand](baseLogger),
		commands.WithOperation[AuditCorpusCommand]("audit.run"),
		commands.WithMessageFields(func(msg AuditCorpusCommand) map[string]any {
			fields := map[string]any{}
			if len(msg.Disabled) > 0 {
				fields["disabled_rules"] = len(msg.Disabled)
			}
			return fields
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[AuditCorpusCommand](baseLogger)),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &AuditCorpusHandler{
		inner: commands.NewHandler(exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[AuditCorpusCommand].
func (h *AuditCorpusHandler) Execute(ctx context.Context, msg AuditCorpusCommand) error {
	return h.inner.Execute(ctx, msg)
}

func normalizeRuleCodes(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, code := range values {
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		key := strings.ToUpper(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func invokeCallback(cb ResultCallback, envelope ResultEnvelope) {
	if cb == nil {
		return
	}
	cb(envelope)
}
