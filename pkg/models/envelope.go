package models

import "encoding/json"

// Event kinds emitted by the task API. The receiver forwards every kind
// in this file's task set; the worker acts only on EventTaskCreated.
const (
	EventTaskCreated       = "task.created"
	EventTaskUpdated       = "task.updated"
	EventTaskDeleted       = "task.deleted"
	EventTaskMoved         = "task.moved"
	EventTaskCommented     = "task.commented"
	EventTaskFeedbackAdded = "task.feedback_added"

	EventUnknown = "unknown"
)

var taskEvents = map[string]struct{}{
	EventTaskCreated:       {},
	EventTaskUpdated:       {},
	EventTaskDeleted:       {},
	EventTaskMoved:         {},
	EventTaskCommented:     {},
	EventTaskFeedbackAdded: {},
}

// IsTaskEvent reports whether kind belongs to the routable task
// lifecycle set.
func IsTaskEvent(kind string) bool {
	_, ok := taskEvents[kind]
	return ok
}

// EventEnvelope is the wire contract between the webhook receiver and
// the worker. The receiver publishes the entire original webhook body;
// the worker expects {event, data} at the top level. Both sides must
// agree on this shape or the worker silently extracts an empty payload.
type EventEnvelope struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// ParseEnvelope decodes a broker message body. A missing event falls
// back to EventUnknown and a missing data object to an empty map, so
// callers never deal with nil fields. Invalid JSON is the only error.
func ParseEnvelope(raw []byte) (EventEnvelope, error) {
	var env EventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return EventEnvelope{}, err
	}
	if env.Event == "" {
		env.Event = EventUnknown
	}
	if env.Data == nil {
		env.Data = map[string]interface{}{}
	}
	return env, nil
}

// TaskID extracts the correlation id from the payload, preferring the
// primary "id" field and falling back to "task_id". Empty when neither
// is present.
func (e EventEnvelope) TaskID() string {
	if id, ok := e.Data["id"].(string); ok && id != "" {
		return id
	}
	if id, ok := e.Data["task_id"].(string); ok && id != "" {
		return id
	}
	return ""
}

// Description returns the task description text, or "" when absent.
func (e EventEnvelope) Description() string {
	if desc, ok := e.Data["description"].(string); ok {
		return desc
	}
	return ""
}

// ResponsibleID returns the id of the agent user responsible for the
// task. The task API nests it under "responsible" but flat payloads
// carry "responsible_id"; both are accepted.
func (e EventEnvelope) ResponsibleID() string {
	if id, ok := e.Data["responsible_id"].(string); ok && id != "" {
		return id
	}
	if responsible, ok := e.Data["responsible"].(map[string]interface{}); ok {
		if id, ok := responsible["id"].(string); ok {
			return id
		}
	}
	return ""
}
