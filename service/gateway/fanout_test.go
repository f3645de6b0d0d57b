package gateway

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanoutReachesEveryHandle(t *testing.T) {
	f := NewFanout(4, 64)
	defer f.Close()

	var conns []*Client
	for i := 0; i < 10; i++ {
		conns = append(conns, NewClient(fmt.Sprintf("conn-%d", i), "user", nil, 8))
	}
	f.Broadcast(conns, []byte(`{"event":"NEW_MESSAGE"}`))

	require.Eventually(t, func() bool {
		for _, c := range conns {
			if c.queued() != 1 {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)
}

func TestFanoutPerConnectionOrdering(t *testing.T) {
	f := NewFanout(4, 64)
	defer f.Close()

	c := NewClient("conn-1", "user", nil, 64)
	const n = 20
	for i := 0; i < n; i++ {
		f.Broadcast([]*Client{c}, []byte(fmt.Sprintf("frame-%02d", i)))
	}

	require.Eventually(t, func() bool { return c.queued() == n }, time.Second, 5*time.Millisecond)
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("frame-%02d", i), string(<-c.send))
	}
}

func TestFanoutSkipsClosedClients(t *testing.T) {
	f := NewFanout(2, 16)
	defer f.Close()

	open := NewClient("conn-open", "user", nil, 8)
	closed := NewClient("conn-closed", "user", nil, 8)
	closed.Close()

	f.Broadcast([]*Client{open, closed}, []byte("hello"))

	require.Eventually(t, func() bool { return open.queued() == 1 }, time.Second, 5*time.Millisecond)
}

func TestFanoutEmptyBroadcastIsNoop(t *testing.T) {
	f := NewFanout(2, 16)
	defer f.Close()

	f.Broadcast(nil, []byte("hello"))
	f.Broadcast([]*Client{NewClient("c", "u", nil, 8)}, nil)
}
