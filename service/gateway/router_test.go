package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bridgeRecorder struct {
	mu        sync.Mutex
	published []*Event
}

func (b *bridgeRecorder) Publish(_ context.Context, ev *Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, ev)
	return nil
}

func (b *bridgeRecorder) events() []*Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Event(nil), b.published...)
}

func newTestRouter(t *testing.T, presence *mirrorRecorder, bridge Bridge) (*Router, *Registry) {
	t.Helper()
	reg := NewRegistry(nil)
	f := NewFanout(2, 64)
	t.Cleanup(f.Close)
	var p = presence
	if p == nil {
		p = newMirrorRecorder()
	}
	return NewRouter(reg, f, p, bridge, "node-1"), reg
}

func TestRouterDeliversToLocalHandles(t *testing.T) {
	router, reg := newTestRouter(t, nil, nil)
	c := NewClient("conn-1", "alice", nil, 8)
	require.NoError(t, reg.Register(c))

	router.Dispatch(context.Background(), NewEvent(EventNewMessage, map[string]string{"body": "hi"}, "alice"))

	require.Eventually(t, func() bool { return c.queued() == 1 }, time.Second, 5*time.Millisecond)
	var frame EventFrame
	require.NoError(t, json.Unmarshal(<-c.send, &frame))
	assert.Equal(t, EventNewMessage, frame.Event)
	assert.NotZero(t, frame.TS)
}

func TestRouterOfflineTargetIsSilentlySkipped(t *testing.T) {
	bridge := &bridgeRecorder{}
	router, _ := newTestRouter(t, nil, bridge)

	router.Dispatch(context.Background(), NewEvent(EventNewChat, nil, "nobody-home"))

	assert.Empty(t, bridge.events())
}

func TestRouterBridgesRemoteTargets(t *testing.T) {
	presence := newMirrorRecorder()
	presence.onlines["bob"] = true
	bridge := &bridgeRecorder{}
	router, reg := newTestRouter(t, presence, bridge)

	local := NewClient("conn-1", "alice", nil, 8)
	require.NoError(t, reg.Register(local))

	router.Dispatch(context.Background(), NewEvent(EventSeenMessages, nil, "alice", "bob"))

	published := bridge.events()
	require.Len(t, published, 1)
	// Only the user with no local handle crosses the bridge.
	assert.Equal(t, []string{"bob"}, published[0].Targets)
	assert.Equal(t, EventSeenMessages, published[0].Name)
}

func TestRouterDeliverLocalNeverRepublishes(t *testing.T) {
	presence := newMirrorRecorder()
	presence.onlines["bob"] = true
	bridge := &bridgeRecorder{}
	router, reg := newTestRouter(t, presence, bridge)

	c := NewClient("conn-1", "alice", nil, 8)
	require.NoError(t, reg.Register(c))

	router.DeliverLocal(context.Background(), NewEvent(EventNewMessage, nil, "alice", "bob"))

	require.Eventually(t, func() bool { return c.queued() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, bridge.events(), "bridged events must not loop back onto the bus")
}

func TestRouterFansOutToEveryDevice(t *testing.T) {
	router, reg := newTestRouter(t, nil, nil)
	phone := NewClient("conn-phone", "alice", nil, 8)
	laptop := NewClient("conn-laptop", "alice", nil, 8)
	require.NoError(t, reg.Register(phone))
	require.NoError(t, reg.Register(laptop))

	router.Dispatch(context.Background(), NewEvent(EventNewMessage, nil, "alice"))

	require.Eventually(t, func() bool {
		return phone.queued() == 1 && laptop.queued() == 1
	}, time.Second, 5*time.Millisecond)
}
