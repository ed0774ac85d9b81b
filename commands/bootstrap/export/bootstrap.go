package bootstrap

import (
	"fmt"
	"strings"

	playbook "github.com/mwtmurphy/go-playbook"
	"github.com/mwtmurphy/go-playbook/commands"
	"github.com/mwtmurphy/go-playbook/internal/di"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

// Options captures the tunable configuration for the export CLI module.
type Options struct {
	OutputDir      string
	BaseURL        string
	Logger         interfaces.LoggerProvider
	Storage        interfaces.StorageProvider
	EnableCommands bool // collect command handlers for CLI execution when true
}

// Resources groups the module runtime and optional command registry used by CLI commands.
type Resources struct {
	Module    *playbook.Module
	Collector *CommandCollector
}

// CommandCollector records handlers registered during construction so CLI commands can
// invoke them directly when dispatcher integrations are requested.
type CommandCollector struct {
	handlers []any
}

// RegisterCommand satisfies commands.CommandRegistry.
func (c *CommandCollector) RegisterCommand(handler any) error {
	c.handlers = append(c.handlers, handler)
	return nil
}

// Handlers returns the collected handlers.
func (c *CommandCollector) Handlers() []any {
	if len(c.handlers) == 0 {
		return nil
	}
	out := make([]any, len(c.handlers))
	copy(out, c.handlers)
	return out
}

// BuildModule initialises a playbook.Module configured for site export and, when requested,
// collects command handlers for CLI invocation.
func BuildModule(opts Options) (*Resources, error) {
	cfg := playbook.DefaultConfig()
	cfg.Export.Enabled = true
	if trimmed := strings.TrimSpace(opts.OutputDir); trimmed != "" {
		cfg.Export.OutputDir = trimmed
	}
	if trimmed := strings.TrimSpace(opts.BaseURL); trimmed != "" {
		cfg.Export.BaseURL = trimmed
	}

	var collector *CommandCollector
	diOpts := []di.Option{}

	if opts.Logger != nil {
		diOpts = append(diOpts, di.WithLoggerProvider(opts.Logger))
	}
	if opts.Storage != nil {
		diOpts = append(diOpts, di.WithArtifactStorage(opts.Storage))
	}

	module, err := playbook.New(cfg, diOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise playbook module: %w", err)
	}

	if opts.EnableCommands {
		collector = &CommandCollector{
			handlers: make([]any, 0),
		}
		if _, err := commands.RegisterContainerCommands(module.Container(), commands.RegistrationOptions{
			Registry:       collector,
			LoggerProvider: opts.Logger,
		}); err != nil {
			return nil, fmt.Errorf("register export commands: %w", err)
		}
	}

	return &Resources{
		Module:    module,
		Collector: collector,
	}, nil
}
