package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_MarshalsPayloadInline(t *testing.T) {
	env := Envelope{
		Type:  EventTypeStuckDetected,
		RunID: "run-1",
		Payload: StuckDetectedPayload{
			RunID:    "run-1",
			ScreenID: "screen-7",
			Reason:   "High visit count",
		},
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, EventTypeStuckDetected, decoded["type"])
	payload, ok := decoded["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "screen-7", payload["screen_id"])
	assert.Equal(t, "High visit count", payload["reason"])
}
