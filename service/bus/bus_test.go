package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connectify/global/config"
	"connectify/service/gateway"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	src := gateway.NewEvent(gateway.EventNewMessage, map[string]string{"body": "hi"}, "alice", "bob")

	raw, err := encodeEnvelope("node-1", src)
	require.NoError(t, err)

	env, err := decodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, "node-1", env.Origin)
	assert.NotZero(t, env.TS)

	ev := env.event()
	assert.Equal(t, gateway.EventNewMessage, ev.Name)
	assert.Equal(t, []string{"alice", "bob"}, ev.Targets)
	payload, ok := ev.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hi", payload["body"])
}

func TestEnvelopeWithoutPayload(t *testing.T) {
	raw, err := encodeEnvelope("node-1", gateway.NewEvent(gateway.EventRefetchChats, nil, "alice"))
	require.NoError(t, err)

	env, err := decodeEnvelope(raw)
	require.NoError(t, err)
	assert.Nil(t, env.event().Payload)
}

func TestNewBusModeNone(t *testing.T) {
	b, err := New(config.BusConfig{Mode: "none"}, "node-1")
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = New(config.BusConfig{}, "node-1")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestNewBusUnknownMode(t *testing.T) {
	_, err := New(config.BusConfig{Mode: "carrier-pigeon"}, "node-1")
	require.Error(t, err)
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	_, err := decodeEnvelope([]byte("not json"))
	require.Error(t, err)
}
