package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connectify/tools/errs"
)

func TestParseClientFrame(t *testing.T) {
	f, err := ParseClientFrame([]byte(`{"type":"seen","payload":{"conversationId":"c1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "seen", f.Type)
	assert.Equal(t, "c1", f.Payload["conversationId"])
}

func TestParseClientFrameRejectsGarbage(t *testing.T) {
	_, err := ParseClientFrame([]byte(`not json`))
	require.Error(t, err)
	assert.Equal(t, errs.ArgsError, errs.Code(err))

	_, err = ParseClientFrame([]byte(`{"payload":{}}`))
	require.Error(t, err)
	assert.Equal(t, errs.ArgsError, errs.Code(err))
}

func TestDecodePayload(t *testing.T) {
	type seenReq struct {
		ConversationID string `json:"conversationId"`
	}
	out, err := DecodePayload[seenReq](map[string]any{
		"conversationId": "c1",
		"unknownField":   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", out.ConversationID)
}

func TestEncodeEventFrameRoundTrip(t *testing.T) {
	b, err := EncodeEventFrame(NewEvent(EventNewChat, map[string]string{"chatId": "c1"}, "alice"))
	require.NoError(t, err)

	var frame EventFrame
	require.NoError(t, json.Unmarshal(b, &frame))
	assert.Equal(t, EventNewChat, frame.Event)
	payload, ok := frame.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "c1", payload["chatId"])
}
