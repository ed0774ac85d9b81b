package activity

import (
	"context"
	"errors"
	"time"
)

// Event describes one corpus lifecycle action (sync, audit, export) in a
// transport-neutral shape. Hooks translate events into whatever sink the
// host application uses.
type Event struct {
	Verb           string         `json:"verb"`
	ActorID        string         `json:"actor_id,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	TenantID       string         `json:"tenant_id,omitempty"`
	ObjectType     string         `json:"object_type"`
	ObjectID       string         `json:"object_id"`
	Channel        string         `json:"channel,omitempty"`
	DefinitionCode string         `json:"definition_code,omitempty"`
	Recipients     []string       `json:"recipients,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// Hook receives emitted events.
type Hook interface {
	Notify(ctx context.Context, event Event) error
}

// Hooks fans an event out to each hook in order.
type Hooks []Hook

// Config controls emission behaviour.
type Config struct {
	// Enabled gates all emission; a disabled emitter drops events silently.
	Enabled bool
	// Channel is stamped onto events that do not carry their own.
	Channel string
}

// Emitter stamps defaults onto events and fans them out to the registered
// hooks. A nil or hook-less emitter reports disabled so callers can skip
// building event payloads.
type Emitter struct {
	hooks  Hooks
	config Config
	now    func() time.Time
}

// NewEmitter builds an emitter; hooks may be nil.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	return &Emitter{
		hooks:  hooks,
		config: cfg,
		now:    time.Now,
	}
}

// Enabled reports whether emitted events can reach at least one hook.
func (e *Emitter) Enabled() bool {
	return e != nil && e.config.Enabled && len(e.hooks) > 0
}

// Emit delivers the event to every hook, stamping the configured channel and
// the current time when the event omits them. All hooks are invoked even
// when earlier ones fail; their errors are joined.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}

	if event.Channel == "" {
		event.Channel = e.config.Channel
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now().UTC()
	}

	var errs []error
	for _, hook := range e.hooks {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CaptureHook records every event it receives; intended for tests.
type CaptureHook struct {
	Events []Event
}

// Notify appends the event to Events.
func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.Events = append(h.Events, event)
	return nil
}
