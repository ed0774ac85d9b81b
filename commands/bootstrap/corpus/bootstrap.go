package bootstrap

import (
	"fmt"
	"strings"

	playbook "github.com/mwtmurphy/go-playbook"
	"github.com/mwtmurphy/go-playbook/commands"
	"github.com/mwtmurphy/go-playbook/internal/di"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

// Options captures the tunable configuration shared across corpus CLI commands.
type Options struct {
	CorpusDir      string
	Patterns       []string
	Recursive      bool
	DefaultStatus  string
	LoggerProvider interfaces.LoggerProvider
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

// BuildModule constructs a playbook.Module configured for corpus ingestion using the supplied options.
func BuildModule(opts Options) (*Resources, error) {
	cfg := playbook.DefaultConfig()

	cfg.Corpus.Path = strings.TrimSpace(opts.CorpusDir)
	if len(opts.Patterns) > 0 {
		cfg.Corpus.Patterns = cloneStrings(opts.Patterns)
	}
	cfg.Corpus.Recursive = opts.Recursive
	if status := strings.TrimSpace(opts.DefaultStatus); status != "" {
		cfg.Corpus.DefaultStatus = status
	}

	var collector *CommandCollector
	diOpts := []di.Option{}

	if opts.LoggerProvider != nil {
		diOpts = append(diOpts, di.WithLoggerProvider(opts.LoggerProvider))
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
			LoggerProvider: opts.LoggerProvider,
		}); err != nil {
			return nil, fmt.Errorf("register corpus commands: %w", err)
		}
	}

	return &Resources{
		Module:    module,
		Collector: collector,
	}, nil
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
