package realtime_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/waypoint/pkg/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "sdk:acct:user-1", realtime.Topic("acct", "user-1"))
}

func TestMessage_MarshalJSON(t *testing.T) {
	t.Run("join frame", func(t *testing.T) {
		msg := realtime.Message{
			JoinRef: "1", Ref: "1", Topic: "sdk:a:u", Event: realtime.EventJoin,
			Payload: map[string]any{"response_format": "v2"},
		}
		data, err := json.Marshal(msg)
		require.NoError(t, err)
		assert.JSONEq(t, `["1","1","sdk:a:u","phx_join",{"response_format":"v2"}]`, string(data))
	})

	t.Run("heartbeat has null join ref and empty payload", func(t *testing.T) {
		msg := realtime.Message{Ref: "7", Topic: realtime.SystemTopic, Event: realtime.EventHeartbeat}
		data, err := json.Marshal(msg)
		require.NoError(t, err)
		assert.JSONEq(t, `[null,"7","phoenix","heartbeat",{}]`, string(data))
	})
}

func TestMessage_UnmarshalJSON(t *testing.T) {
	var msg realtime.Message
	err := json.Unmarshal([]byte(`[null,"3","phoenix","phx_reply",{"status":"ok","response":{}}]`), &msg)
	require.NoError(t, err)
	assert.Equal(t, "", msg.JoinRef)
	assert.Equal(t, "3", msg.Ref)
	assert.Equal(t, realtime.SystemTopic, msg.Topic)
	assert.Equal(t, realtime.EventReply, msg.Event)
	assert.Equal(t, "ok", msg.Payload["status"])

	tests := []struct {
		name string
		raw  string
	}{
		{"object", `{"topic":"x"}`},
		{"short array", `["1","1","t","e"]`},
		{"numeric topic", `["1","1",5,"e",{}]`},
		{"array payload", `["1","1","t","e",[]]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m realtime.Message
			err := json.Unmarshal([]byte(tt.raw), &m)
			assert.ErrorIs(t, err, realtime.ErrMalformedFrame)
		})
	}
}
