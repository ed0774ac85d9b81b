package exportcmd

import (
	"context"
	"strings"

	"github.com/mwtmurphy/go-playbook/internal/commands"
	"github.com/mwtmurphy/go-playbook/internal/exporter"
	"github.com/mwtmurphy/go-playbook/internal/logging"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

// ExportSiteHandler orchestrates exporter runs using the shared command
// handler foundation.
type ExportSiteHandler struct {
	inner *commands.Handler[ExportSiteCommand]
}

// NewExportSiteHandler constructs a handler wired to the provided exporter service.
func NewExportSiteHandler(service exporter.Service, logger interfaces.Logger, gates FeatureGates, opts ...commands.HandlerOption[ExportSiteCommand]) *ExportSiteHandler {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = logging.NoOp()
	}

	exec := func(ctx context.Context, msg ExportSiteCommand) error {
		if service == nil || !gates.exportEnabled() {
			return exporter.ErrServiceDisabled
		}

		options := exporter.ExportOptions{
			Force:  msg.Force,
			DryRun: msg.DryRun,
		}
		if len(msg.Slugs) > 0 {
			options.Slugs = normalizeSlugs(msg.Slugs)
		}

		result, err := service.Export(ctx, options)
		invokeCallback(msg.ResultCallback, ResultEnvelope{
			Result: result,
			Metadata: map[string]any{
				"operation": "export",
			},
		})
		if err != nil {
			return err
		}
		return nil
	}

	handlerOpts := []commands.HandlerOption[ExportSiteCommand]{
		commands.WithLogger[ExportSiteCommand](baseLogger),
		commands.WithOperation[ExportSiteCommand]("export.site"),
		commands.WithMessageFields(func(msg ExportSiteCommand) map[string]any {
			fields := map[string]any{}
			if len(msg.Slugs) > 0 {
				fields["slugs"] = len(msg.Slugs)
			}
			if msg.Force {
				fields["force"] = true
			}
			if msg.DryRun {
				fields["dry_run"] = true
			}
			return fields
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[ExportSiteCommand](baseLogger)),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &ExportSiteHandler{
		inner: commands.NewHandler(exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[ExportSiteCommand].
func (h *ExportSiteHandler) Execute(ctx context.Context, msg ExportSiteCommand) error {
	return h.inner.Execute(ctx, msg)
}

func normalizeSlugs(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, slug := range values {
		trimmed := strings.ToLower(strings.TrimSpace(slug))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
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
