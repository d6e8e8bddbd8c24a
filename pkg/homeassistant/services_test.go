package homeassistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settingSchema = `{
	"type": "object",
	"properties": {
		"setting": {"type": "string"},
		"value": {"type": "string"}
	},
	"required": ["setting", "value"]
}`

func TestServiceRegistry_CallValidPayload(t *testing.T) {
	host, _ := newTestHost(t)

	var calls []ServiceCall
	err := host.Services.Register("abode", "change_setting", func(call ServiceCall) {
		calls = append(calls, call)
	}, settingSchema)
	require.NoError(t, err)

	err = host.Services.Call("abode", "change_setting", []byte(`{"setting":"entry_delay_away","value":"30"}`))
	require.NoError(t, err)

	require.Len(t, calls, 1)
	assert.Equal(t, "abode", calls[0].Domain)
	assert.Equal(t, "change_setting", calls[0].Service)
	assert.Equal(t, "entry_delay_away", calls[0].String("setting"))
	assert.Equal(t, "30", calls[0].String("value"))
}

func TestServiceRegistry_RejectsInvalidPayload(t *testing.T) {
	host, _ := newTestHost(t)

	calls := 0
	require.NoError(t, host.Services.Register("abode", "change_setting", func(ServiceCall) { calls++ }, settingSchema))

	tests := []struct {
		name    string
		payload string
	}{
		{"Missing value", `{"setting":"x"}`},
		{"Wrong type", `{"setting":"x","value":5}`},
		{"Empty", ``},
		{"Not JSON", `setting=x`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := host.Services.Call("abode", "change_setting", []byte(tt.payload))
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
	assert.Zero(t, calls)
}

func TestServiceRegistry_EmptyPayloadAllowedBySchema(t *testing.T) {
	host, _ := newTestHost(t)

	calls := 0
	require.NoError(t, host.Services.Register("abode", "ping", func(ServiceCall) { calls++ }, `{"type":"object"}`))

	require.NoError(t, host.Services.Call("abode", "ping", nil))
	assert.Equal(t, 1, calls)
}

func TestServiceRegistry_UnknownService(t *testing.T) {
	host, _ := newTestHost(t)

	err := host.Services.Call("abode", "nope", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownService)
}

func TestServiceRegistry_DuplicateAndBadSchema(t *testing.T) {
	host, _ := newTestHost(t)

	require.NoError(t, host.Services.Register("abode", "ping", func(ServiceCall) {}, `{"type":"object"}`))
	assert.ErrorIs(t, host.Services.Register("abode", "ping", func(ServiceCall) {}, `{"type":"object"}`), ErrServiceExists)
	assert.Error(t, host.Services.Register("abode", "broken", func(ServiceCall) {}, `{"type":`))
	assert.False(t, host.Services.Has("abode", "broken"))
}

func TestServiceRegistry_MQTTAndRemove(t *testing.T) {
	host, broker := newTestHost(t)

	calls := 0
	require.NoError(t, host.Services.Register("abode", "change_setting", func(ServiceCall) { calls++ }, settingSchema))
	assert.True(t, host.Services.Has("abode", "change_setting"))
	assert.Equal(t, []string{"abode.change_setting"}, host.Services.Services())

	topic := "abode/service/abode/change_setting"
	require.True(t, broker.Deliver(topic, `{"setting":"a","value":"b"}`))
	require.True(t, broker.Deliver(topic, `{"setting":"a"}`))
	assert.Equal(t, 1, calls, "invalid MQTT calls are dropped")

	host.Services.Remove("abode", "change_setting")
	host.Services.Remove("abode", "change_setting")

	assert.False(t, host.Services.Has("abode", "change_setting"))
	assert.False(t, broker.Subscribed(topic))
	assert.Empty(t, host.Services.Services())
}

func TestServiceCall_EntityIDs(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]any
		expected []string
	}{
		{"Missing", map[string]any{}, []string{}},
		{"Single", map[string]any{"entity_id": "camera.front"}, []string{"camera.front"}},
		{"Comma separated", map[string]any{"entity_id": "Camera.Front, camera.back"}, []string{"camera.front", "camera.back"}},
		{"List", map[string]any{"entity_id": []any{"switch.a", "switch.a", "switch.b"}}, []string{"switch.a", "switch.b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := ServiceCall{Data: tt.data}
			assert.Equal(t, tt.expected, call.EntityIDs())
		})
	}
}
