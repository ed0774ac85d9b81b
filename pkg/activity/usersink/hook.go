package usersink

import (
	"context"

	"github.com/mwtmurphy/go-playbook/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// ActivitySink matches the go-users activity sink contract.
type ActivitySink interface {
	Log(ctx context.Context, record usertypes.ActivityRecord) error
}

// Hook forwards playbook activity events into a go-users activity sink.
// Events without a verb are dropped so half-built payloads never reach the
// sink.
type Hook struct {
	Sink ActivitySink
}

// Notify maps the event onto a go-users record and logs it.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil || event.Verb == "" {
		return nil
	}

	record := usertypes.ActivityRecord{
		ActorID:    parseID(event.ActorID),
		UserID:     parseID(event.UserID),
		TenantID:   parseID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		OccurredAt: event.OccurredAt,
		Data:       buildData(event),
	}
	return h.Sink.Log(ctx, record)
}

func parseID(value string) uuid.UUID {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func buildData(event activity.Event) map[string]any {
	data := make(map[string]any, len(event.Metadata)+2)
	for key, value := range event.Metadata {
		data[key] = value
	}
	if event.DefinitionCode != "" {
		data["definition_code"] = event.DefinitionCode
	}
	if len(event.Recipients) > 0 {
		data["recipients"] = event.Recipients
	}
	return data
}
