package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantEvent string
		wantData  map[string]interface{}
		wantError bool
	}{
		{
			name:      "full envelope",
			raw:       `{"event":"task.created","data":{"id":"t-1"}}`,
			wantEvent: "task.created",
			wantData:  map[string]interface{}{"id": "t-1"},
		},
		{
			name:      "missing event falls back to unknown",
			raw:       `{"data":{"id":"t-1"}}`,
			wantEvent: EventUnknown,
			wantData:  map[string]interface{}{"id": "t-1"},
		},
		{
			name:      "missing data becomes empty map",
			raw:       `{"event":"task.deleted"}`,
			wantEvent: "task.deleted",
			wantData:  map[string]interface{}{},
		},
		{
			name:      "invalid json",
			raw:       `{"event":`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.raw))
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEvent, env.Event)
			assert.Equal(t, tt.wantData, env.Data)
		})
	}
}

// The receiver publishes the webhook body as a generic map; the worker
// decodes it through ParseEnvelope. Both sides must agree on the shape.
func TestEnvelopeWireRoundTrip(t *testing.T) {
	published := map[string]interface{}{
		"event": "task.created",
		"data": map[string]interface{}{
			"id":          "t-1",
			"description": "write the report",
			"responsible": map[string]interface{}{"id": "agent-1"},
		},
	}

	wire, err := json.Marshal(published)
	require.NoError(t, err)

	env, err := ParseEnvelope(wire)
	require.NoError(t, err)

	assert.Equal(t, "task.created", env.Event)
	assert.Equal(t, "t-1", env.TaskID())
	assert.Equal(t, "write the report", env.Description())
	assert.Equal(t, "agent-1", env.ResponsibleID())
}

func TestTaskID(t *testing.T) {
	tests := []struct {
		name string
		data map[string]interface{}
		want string
	}{
		{name: "primary id", data: map[string]interface{}{"id": "t-1", "task_id": "t-2"}, want: "t-1"},
		{name: "fallback task_id", data: map[string]interface{}{"task_id": "t-2"}, want: "t-2"},
		{name: "empty id falls through", data: map[string]interface{}{"id": "", "task_id": "t-2"}, want: "t-2"},
		{name: "non-string id ignored", data: map[string]interface{}{"id": 42.0}, want: ""},
		{name: "neither present", data: map[string]interface{}{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := EventEnvelope{Event: EventTaskCreated, Data: tt.data}
			assert.Equal(t, tt.want, env.TaskID())
		})
	}
}

func TestResponsibleID(t *testing.T) {
	tests := []struct {
		name string
		data map[string]interface{}
		want string
	}{
		{name: "flat responsible_id", data: map[string]interface{}{"responsible_id": "agent-1"}, want: "agent-1"},
		{
			name: "nested responsible object",
			data: map[string]interface{}{"responsible": map[string]interface{}{"id": "agent-2"}},
			want: "agent-2",
		},
		{
			name: "flat wins over nested",
			data: map[string]interface{}{
				"responsible_id": "agent-1",
				"responsible":    map[string]interface{}{"id": "agent-2"},
			},
			want: "agent-1",
		},
		{name: "absent", data: map[string]interface{}{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := EventEnvelope{Event: EventTaskCreated, Data: tt.data}
			assert.Equal(t, tt.want, env.ResponsibleID())
		})
	}
}

func TestIsTaskEvent(t *testing.T) {
	assert.True(t, IsTaskEvent(EventTaskCreated))
	assert.True(t, IsTaskEvent(EventTaskFeedbackAdded))
	assert.False(t, IsTaskEvent("user.created"))
	assert.False(t, IsTaskEvent(EventUnknown))
	assert.False(t, IsTaskEvent(""))
}
