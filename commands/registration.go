package commands

import (
	"errors"
	"strings"

	command "github.com/goliatone/go-command"

	corpusadapter "github.com/mwtmurphy/go-playbook/commands/corpus"
	intcommands "github.com/mwtmurphy/go-playbook/internal/commands"
	auditcmd "github.com/mwtmurphy/go-playbook/internal/commands/audit"
	corpuscmd "github.com/mwtmurphy/go-playbook/internal/commands/corpus"
	exportcmd "github.com/mwtmurphy/go-playbook/internal/commands/export"
	"github.com/mwtmurphy/go-playbook/internal/di"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

// CommandRegistry records command handlers so hosts can expose them via CLI or cron.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// CommandDispatcher subscribes command handlers to a dispatcher implementation.
type CommandDispatcher interface {
	RegisterCommand(handler any) (CommandSubscription, error)
}

// CommandSubscription allows hosts to tear down dispatcher subscriptions.
type CommandSubscription interface {
	Unsubscribe()
}

// CronRegistrar registers command handlers with a cron scheduler.
type CronRegistrar func(command.HandlerConfig, any) error

// RegistrationOptions configures how handlers are registered during construction.
type RegistrationOptions struct {
	Registry       CommandRegistry
	Dispatcher     CommandDispatcher
	CronRegistrar  CronRegistrar
	LoggerProvider interfaces.LoggerProvider
	// SyncCron schedules a recurring corpus sync with the given cron expression.
	SyncCron string
}

// RegistrationResult captures the constructed command handlers and any dispatcher subscriptions.
type RegistrationResult struct {
	Handlers      []any
	Subscriptions []CommandSubscription
}

// RegisterContainerCommands builds the command handlers exposed by the provided container and
// optionally registers them with registry/dispatcher/cron integrations.
func RegisterContainerCommands(container *di.Container, opts RegistrationOptions) (*RegistrationResult, error) {
	if container == nil {
		return &RegistrationResult{}, nil
	}

	cfg := container.Config

	provider := opts.LoggerProvider
	if provider == nil {
		provider = container.LoggerProvider()
	}

	if opts.Registry != nil && opts.CronRegistrar != nil {
		if reg, ok := opts.Registry.(interface {
			SetCronRegister(func(command.HandlerConfig, any) error) *command.Registry
		}); ok && reg != nil {
			reg.SetCronRegister(opts.CronRegistrar)
		}
	}

	result := &RegistrationResult{
		Handlers:      make([]any, 0),
		Subscriptions: make([]CommandSubscription, 0),
	}

	var errs error

	register := func(handler any) {
		if handler == nil {
			return
		}
		result.Handlers = append(result.Handlers, handler)

		if opts.Registry != nil {
			if err := opts.Registry.RegisterCommand(handler); err != nil {
				errs = errors.Join(errs, err)
			}
		}

		if opts.Dispatcher != nil {
			subscription, err := opts.Dispatcher.RegisterCommand(handler)
			if err != nil {
				errs = errors.Join(errs, err)
			} else if subscription != nil {
				result.Subscriptions = append(result.Subscriptions, subscription)
			}
		}

		if opts.CronRegistrar != nil {
			if cronCmd, ok := handler.(command.CronCommand); ok {
				if err := opts.CronRegistrar(cronCmd.CronOptions(), cronCmd.CronHandler()); err != nil {
					errs = errors.Join(errs, err)
				}
			}
		}
	}

	loggerFor := func(module string) interfaces.Logger {
		return intcommands.CommandLogger(provider, module)
	}

	// Corpus commands.
	if service := container.CorpusService(); service != nil {
		handlerSet, err := corpusadapter.RegisterCorpusCommands(nil, service, provider)
		if err != nil {
			errs = errors.Join(errs, err)
		} else if handlerSet != nil {
			register(handlerSet.Sync)
			register(handlerSet.Reindex)

			if expr := strings.TrimSpace(opts.SyncCron); expr != "" && opts.CronRegistrar != nil {
				msg := corpuscmd.SyncCorpusCommand{
					Status:         cfg.Corpus.DefaultStatus,
					DeleteOrphaned: true,
				}
				err := corpusadapter.RegisterSyncCron(corpusadapter.CronRegistrar(opts.CronRegistrar),
					handlerSet.Sync, command.HandlerConfig{Expression: expr}, msg)
				if err != nil {
					errs = errors.Join(errs, err)
				}
			}
		}
	}

	// Audit commands.
	if service := container.AuditService(); service != nil {
		register(auditcmd.NewAuditCorpusHandler(service, loggerFor("audit")))
	}

	// Export commands.
	if service := container.ExportService(); service != nil {
		gates := exportcmd.FeatureGates{
			ExportEnabled: func() bool { return cfg.Export.Enabled },
		}
		register(exportcmd.NewExportSiteHandler(service, loggerFor("export"), gates))
	}

	if errs != nil && len(result.Handlers) == 0 {
		return result, errs
	}

	if len(result.Handlers) == 0 {
		return result, errors.New("no command handlers registered; ensure services are configured and required features enabled")
	}

	return result, errs
}
