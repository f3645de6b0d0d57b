package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connectify/tools/errs"
)

// mirrorRecorder is a Presence fake that reports mirror writes on channels,
// since the registry runs them asynchronously.
type mirrorRecorder struct {
	online  chan string
	offline chan string
	onlines map[string]bool
}

func newMirrorRecorder() *mirrorRecorder {
	return &mirrorRecorder{
		online:  make(chan string, 16),
		offline: make(chan string, 16),
		onlines: make(map[string]bool),
	}
}

func (m *mirrorRecorder) MarkOnline(_ context.Context, userID, _ string) error {
	m.online <- userID
	return nil
}

func (m *mirrorRecorder) MarkOffline(_ context.Context, userID, _ string) error {
	m.offline <- userID
	return nil
}

func (m *mirrorRecorder) IsOnline(_ context.Context, userID string) (bool, error) {
	return m.onlines[userID], nil
}

func (m *mirrorRecorder) Nodes(context.Context, string) ([]string, error) { return nil, nil }
func (m *mirrorRecorder) Heartbeat(context.Context, string) error         { return nil }

func TestRegistryMultiDevice(t *testing.T) {
	r := NewRegistry(nil)

	c1 := NewClient("conn-1", "alice", nil, 8)
	c2 := NewClient("conn-2", "alice", nil, 8)
	require.NoError(t, r.Register(c1))
	require.NoError(t, r.Register(c2))

	assert.True(t, r.IsOnline("alice"))
	assert.Equal(t, 2, r.ConnCount("alice"))
	assert.Len(t, r.HandlesFor([]string{"alice"}), 2)
	assert.Empty(t, r.HandlesFor([]string{"bob"}))
}

func TestRegistryRejectsUnauthenticated(t *testing.T) {
	r := NewRegistry(nil)

	err := r.Register(NewClient("conn-1", "", nil, 8))
	require.Error(t, err)
	assert.True(t, errs.ErrTokenInvalid.Is(err))
	assert.Equal(t, errs.TokenInvalid, errs.Code(err))
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(NewClient("conn-1", "alice", nil, 8)))
	require.NoError(t, r.Register(NewClient("conn-2", "alice", nil, 8)))

	user, offline := r.Unregister("conn-1")
	assert.Equal(t, "alice", user)
	assert.False(t, offline)
	assert.True(t, r.IsOnline("alice"))

	user, offline = r.Unregister("conn-2")
	assert.Equal(t, "alice", user)
	assert.True(t, offline)
	assert.False(t, r.IsOnline("alice"))
}

func TestRegistryUnregisterUnknownConn(t *testing.T) {
	r := NewRegistry(nil)

	user, offline := r.Unregister("never-registered")
	assert.Empty(t, user)
	assert.False(t, offline)
}

func TestRegistryRegisterIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	c := NewClient("conn-1", "alice", nil, 8)
	require.NoError(t, r.Register(c))
	require.NoError(t, r.Register(c))

	assert.Equal(t, 1, r.ConnCount("alice"))
}

func TestRegistryMirrorsPresence(t *testing.T) {
	mirror := newMirrorRecorder()
	r := NewRegistry(mirror)

	require.NoError(t, r.Register(NewClient("conn-1", "alice", nil, 8)))
	select {
	case uid := <-mirror.online:
		assert.Equal(t, "alice", uid)
	case <-time.After(time.Second):
		t.Fatal("mirror never saw the user go online")
	}

	r.Unregister("conn-1")
	select {
	case uid := <-mirror.offline:
		assert.Equal(t, "alice", uid)
	case <-time.After(time.Second):
		t.Fatal("mirror never saw the user go offline")
	}
}
