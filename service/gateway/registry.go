package gateway

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"connectify/logger"
	"connectify/service/storage"
	"connectify/tools/errs"
	"connectify/tools/safe"
)

// shardCount trades memory for contention: connect/disconnect churn on one
// user never blocks lookups for users on other shards.
const shardCount = 32

type shard struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Client // userID -> connID -> client
}

// Registry maps user ids to their live connection handles. It is the
// node-local source of truth for presence; the optional mirror keeps the
// cross-node view in Redis. Registry operations never fail: they succeed or
// are no-ops.
type Registry struct {
	shards [shardCount]*shard
	conns  sync.Map // connID -> *Client, reverse index for O(1) unregister
	mirror storage.Presence
}

// NewRegistry builds an empty registry. mirror may be nil for single-node or
// test setups.
func NewRegistry(mirror storage.Presence) *Registry {
	r := &Registry{mirror: mirror}
	for i := range r.shards {
		r.shards[i] = &shard{byUser: make(map[string]map[string]*Client)}
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return r.shards[h.Sum32()%shardCount]
}

// Register adds the client to its user's live set. Idempotent for the same
// conn id. An empty user id means the session was never authenticated and is
// rejected.
func (r *Registry) Register(c *Client) error {
	if c == nil || c.UserID == "" {
		return errs.ErrTokenInvalid.WrapMsg("registration requires an authenticated user")
	}
	s := r.shardFor(c.UserID)
	s.mu.Lock()
	m := s.byUser[c.UserID]
	if m == nil {
		m = make(map[string]*Client)
		s.byUser[c.UserID] = m
	}
	wasOffline := len(m) == 0
	m[c.ConnID] = c
	s.mu.Unlock()

	r.conns.Store(c.ConnID, c)

	// Mirror writes are I/O and must never run under the shard lock.
	if r.mirror != nil {
		userID, connID := c.UserID, c.ConnID
		safe.Go(func() {
			mctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := r.mirror.MarkOnline(mctx, userID, connID); err != nil {
				logger.Warnf("[registry] presence mirror online user=%s: %v", userID, err)
			}
		})
	}
	if wasOffline {
		logger.Debug("user transitioned online: " + c.UserID)
	}
	return nil
}

// Unregister removes the handle from whichever user owns it. Unknown conn ids
// are a no-op; disconnect races are expected. Returns the owning user and
// whether this emptied their connection set.
func (r *Registry) Unregister(connID string) (userID string, wentOffline bool) {
	v, ok := r.conns.LoadAndDelete(connID)
	if !ok {
		return "", false
	}
	c := v.(*Client)
	s := r.shardFor(c.UserID)
	s.mu.Lock()
	if m := s.byUser[c.UserID]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(s.byUser, c.UserID)
			wentOffline = true
		}
	}
	s.mu.Unlock()

	if r.mirror != nil {
		uid := c.UserID
		safe.Go(func() {
			mctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := r.mirror.MarkOffline(mctx, uid, connID); err != nil {
				logger.Warnf("[registry] presence mirror offline user=%s: %v", uid, err)
			}
		})
	}
	return c.UserID, wentOffline
}

// IsOnline reports whether the user has at least one live handle on this node.
func (r *Registry) IsOnline(userID string) bool {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser[userID]) > 0
}

// HandlesFor resolves the live handles for any of the given users, zero or
// more per user. Used by the event router for fan-out.
func (r *Registry) HandlesFor(userIDs []string) []*Client {
	var out []*Client
	for _, uid := range userIDs {
		s := r.shardFor(uid)
		s.mu.RLock()
		for _, c := range s.byUser[uid] {
			out = append(out, c)
		}
		s.mu.RUnlock()
	}
	return out
}

// ConnCount returns the number of live handles for a user. Stats hook.
func (r *Registry) ConnCount(userID string) int {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser[userID])
}
