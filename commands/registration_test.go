package commands

import (
	"testing"

	command "github.com/goliatone/go-command"

	playbook "github.com/mwtmurphy/go-playbook"
	auditcmd "github.com/mwtmurphy/go-playbook/internal/commands/audit"
	corpuscmd "github.com/mwtmurphy/go-playbook/internal/commands/corpus"
	exportcmd "github.com/mwtmurphy/go-playbook/internal/commands/export"
	"github.com/mwtmurphy/go-playbook/internal/di"
)

func newTestContainer(t *testing.T) *di.Container {
	t.Helper()
	cfg := playbook.DefaultConfig()
	return di.NewContainer(cfg, di.WithCorpusFS(playbook.EmbeddedCorpus()))
}

func TestRegisterContainerCommandsBuildsHandlers(t *testing.T) {
	registry := &recordingRegistry{}
	dispatcher := &recordingDispatcher{}
	cron := &recordingCron{}

	container := newTestContainer(t)

	result, err := RegisterContainerCommands(container, RegistrationOptions{
		Registry:      registry,
		Dispatcher:    dispatcher,
		CronRegistrar: cron.Registrar(),
		SyncCron:      "@daily",
	})
	if err != nil {
		t.Fatalf("register commands: %v", err)
	}

	if len(result.Handlers) == 0 {
		t.Fatal("expected command handlers to be constructed")
	}
	if len(result.Handlers) != len(registry.handlers) {
		t.Fatalf("expected registry to record all handlers, got %d of %d", len(registry.handlers), len(result.Handlers))
	}
	if len(dispatcher.subscriptions) != len(result.Handlers) {
		t.Fatalf("expected a dispatcher subscription per handler, got %d of %d", len(dispatcher.subscriptions), len(result.Handlers))
	}
	if len(cron.registrations) != 1 {
		t.Fatalf("expected the sync cron registration, got %d", len(cron.registrations))
	}
	if got := cron.registrations[0].config.Expression; got != "@daily" {
		t.Fatalf("expected sync cron expression, got %q", got)
	}
}

func TestRegisterContainerCommandsBuildsExpectedHandlers(t *testing.T) {
	container := newTestContainer(t)

	result, err := RegisterContainerCommands(container, RegistrationOptions{})
	if err != nil {
		t.Fatalf("register commands: %v", err)
	}

	var hasSync, hasReindex, hasAudit, hasExport bool
	for _, handler := range result.Handlers {
		switch handler.(type) {
		case *corpuscmd.SyncCorpusHandler:
			hasSync = true
		case *corpuscmd.ReindexReferencesHandler:
			hasReindex = true
		case *auditcmd.AuditCorpusHandler:
			hasAudit = true
		case *exportcmd.ExportSiteHandler:
			hasExport = true
		}
	}
	if !hasSync || !hasReindex {
		t.Fatal("expected corpus sync and reindex handlers registered")
	}
	if !hasAudit {
		t.Fatal("expected audit handler registered")
	}
	if !hasExport {
		t.Fatal("expected export handler registered")
	}
}

func TestRegisterContainerCommandsWithoutRegistrars(t *testing.T) {
	container := newTestContainer(t)

	result, err := RegisterContainerCommands(container, RegistrationOptions{})
	if err != nil {
		t.Fatalf("register commands: %v", err)
	}
	if len(result.Handlers) == 0 {
		t.Fatal("expected handlers to be built even without registrars")
	}
	if len(result.Subscriptions) != 0 {
		t.Fatalf("expected no dispatcher subscriptions without dispatcher, got %d", len(result.Subscriptions))
	}
}

func TestRegisterContainerCommandsNilContainer(t *testing.T) {
	result, err := RegisterContainerCommands(nil, RegistrationOptions{})
	if err != nil {
		t.Fatalf("expected nil error for nil container, got %v", err)
	}
	if len(result.Handlers) != 0 {
		t.Fatalf("expected no handlers for nil container, got %d", len(result.Handlers))
	}
}

type recordingRegistry struct {
	handlers []any
}

func (r *recordingRegistry) RegisterCommand(handler any) error {
	r.handlers = append(r.handlers, handler)
	return nil
}

type cronRegistration struct {
	config  command.HandlerConfig
	handler func() error
}

type recordingCron struct {
	registrations []cronRegistration
	err           error
}

func (c *recordingCron) Registrar() CronRegistrar {
	return func(cfg command.HandlerConfig, handler any) error {
		if c.err != nil {
			return c.err
		}
		var fn func() error
		if h, ok := handler.(func() error); ok {
			fn = h
		}
		c.registrations = append(c.registrations, cronRegistration{
			config:  cfg,
			handler: fn,
		})
		return nil
	}
}

type recordingDispatcher struct {
	handlers      []any
	subscriptions []*recordingSubscription
	err           error
}

func (d *recordingDispatcher) RegisterCommand(handler any) (CommandSubscription, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.handlers = append(d.handlers, handler)
	sub := &recordingSubscription{handler: handler}
	d.subscriptions = append(d.subscriptions, sub)
	return sub, nil
}

type recordingSubscription struct {
	handler      any
	unsubscribed bool
}

func (s *recordingSubscription) Unsubscribe() {
	s.unsubscribed = true
}
