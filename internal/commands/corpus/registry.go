package corpuscmd

import (
	"context"
	"errors"

	command "github.com/goliatone/go-command"

	"github.com/mwtmurphy/go-playbook/internal/commands"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

// CommandRegistry is the minimal registration contract expected when wiring command handlers.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// CronRegistrar matches the function signature used by go-command registries.
type CronRegistrar func(command.HandlerConfig, any) error

// Service groups the corpus operations the command handlers dispatch to. The
// standards service satisfies it.
type Service interface {
	Syncer
	Reindexer
}

// HandlerSet groups the corpus command handlers produced by RegisterCorpusCommands.
type HandlerSet struct {
	Sync    *SyncCorpusHandler
	Reindex *ReindexReferencesHandler
}

// Option customises handler wiring during registration.
type Option func(*options)

type options struct {
	syncHandlerOpts    []commands.HandlerOption[SyncCorpusCommand]
	reindexHandlerOpts []commands.HandlerOption[ReindexReferencesCommand]
}

// WithSyncHandlerOptions forwards options to the SyncCorpusHandler constructor.
func WithSyncHandlerOptions(opts ...commands.HandlerOption[SyncCorpusCommand]) Option {
	return func(cfg *options) {
		cfg.syncHandlerOpts = append(cfg.syncHandlerOpts, opts...)
	}
}

// WithReindexHandlerOptions forwards options to the ReindexReferencesHandler constructor.
func WithReindexHandlerOptions(opts ...commands.HandlerOption[ReindexReferencesCommand]) Option {
	return func(cfg *options) {
		cfg.reindexHandlerOpts = append(cfg.reindexHandlerOpts, opts...)
	}
}

// RegisterCorpusCommands builds corpus command handlers and registers them with the provided
// registry. A HandlerSet containing the constructed handlers is returned so callers can wire
// additional integrations (dispatcher, cron) as needed.
func RegisterCorpusCommands(reg CommandRegistry, service Service, provider interfaces.LoggerProvider, opts ...Option) (*HandlerSet, error) {
	if service == nil {
		return nil, errors.New("corpus command registration: service is nil")
	}

	cfg := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	logger := commands.CommandLogger(provider, "corpus")

	syncHandler := NewSyncCorpusHandler(service, logger, cfg.syncHandlerOpts...)
	reindexHandler := NewReindexReferencesHandler(service, logger, cfg.reindexHandlerOpts...)

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
func RegisterSyncCron(reg CronRegistrar, handler *SyncCorpusHandler, cfg command.HandlerConfig, msg SyncCorpusCommand) error {
	if reg == nil || handler == nil {
		return nil
	}
	return reg(cfg, func() error {
		return handler.Execute(context.Background(), msg)
	})
}
