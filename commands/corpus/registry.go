package corpusadapter

import (
	"context"
	"errors"

	command "github.com/goliatone/go-command"

	intcommands "github.com/mwtmurphy/go-playbook/internal/commands"
	corpuscmd "github.com/mwtmurphy/go-playbook/internal/commands/corpus"
	"github.com/mwtmurphy/go-playbook/internal/logging"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

// CommandRegistry is the minimal registration contract expected when wiring command handlers.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// CronRegistrar matches the function signature used by go-command registries.
type CronRegistrar func(command.HandlerConfig, any) error

// HandlerSet groups the corpus command handlers produced by RegisterCorpusCommands.
type HandlerSet struct {
	Sync    *corpuscmd.SyncCorpusHandler
	Reindex *corpuscmd.ReindexReferencesHandler
}

// Option customises handler wiring during registration.
type Option func(*options)

type options struct {
	syncHandlerOpts    []intcommands.HandlerOption[corpuscmd.SyncCorpusCommand]
	reindexHandlerOpts []intcommands.HandlerOption[corpuscmd.ReindexReferencesCommand]
}

// WithSyncHandlerOptions forwards options to the SyncCorpusHandler constructor.
func WithSyncHandlerOptions(opts ...intcommands.HandlerOption[corpuscmd.SyncCorpusCommand]) Option {
	return func(cfg *options) {
		cfg.syncHandlerOpts = append(cfg.syncHandlerOpts, opts...)
	}
}

// WithReindexHandlerOptions forwards options to the ReindexReferencesHandler constructor.
func WithReindexHandlerOptions(opts ...intcommands.HandlerOption[corpuscmd.ReindexReferencesCommand]) Option {
	return func(cfg *options) {
		cfg.reindexHandlerOpts = append(cfg.reindexHandlerOpts, opts...)
	}
}

// RegisterCorpusCommands builds corpus command handlers and registers them with the provided
// registry. A HandlerSet containing the constructed handlers is returned so callers can wire
// additional integrations (dispatcher, cron) as needed.
func RegisterCorpusCommands(reg CommandRegistry, service corpuscmd.Service, provider interfaces.LoggerProvider, opts ...Option) (*HandlerSet, error) {
	if service == nil {
		return nil, errors.New("corpus command registration: service is nil")
	}

	cfg := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	logger := logging.ModuleLogger(provider, "playbook.commands.corpus")
	logger = logging.WithFields(logger, map[string]any{
		"component":      "command",
		"command_module": "corpus",
	})

	syncHandler := corpuscmd.NewSyncCorpusHandler(service, logger, cfg.syncHandlerOpts...)
	reindexHandler := corpuscmd.NewReindexReferencesHandler(service, logger, cfg.reindexHandlerOpts...)

	if reg != nil {
		if err := reg.RegisterCommand(syncHandler); err != nil {
			return nil, err
		}
		if err := reg.RegisterCommand(reindexHandler); err != nil {
			return nil, err
		}
	}

	return &HandlerSet{
		Sync:    syncHandler,
		Reindex: reindexHandler,
	}, nil
}

// RegisterSyncCron wires the provided sync handler into a cron registrar using the supplied
// command configuration and message payload. The handler is executed with a background context.
func RegisterSyncCron(reg CronRegistrar, handler *corpuscmd.SyncCorpusHandler, cfg command.HandlerConfig, msg corpuscmd.SyncCorpusCommand) error {
	if reg == nil || handler == nil {
		return nil
	}
	return reg(cfg, func() error {
		return handler.Execute(context.Background(), msg)
	})
}
