// Package storage keeps the cross-node presence mirror in Redis.
//
// The in-process gateway registry is the source of truth for this node; Redis
// only answers "is this user reachable anywhere, and through which nodes" so
// the event router can bridge to other gateway instances. Entries carry a TTL
// and are refreshed by heartbeats, so a crashed node's connections age out on
// their own. The mirror is reconstructible: after a restart it is empty and
// repopulates as users reconnect.
package storage

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"connectify/tools/errs"
)

const keyPrefix = "presence:user:"

// Presence is what the event router needs to decide between local fan-out,
// bus bridging and a silent skip.
type Presence interface {
	MarkOnline(ctx context.Context, userID, connID string) error
	MarkOffline(ctx context.Context, userID, connID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
	Nodes(ctx context.Context, userID string) ([]string, error)
	Heartbeat(ctx context.Context, userID string) error
}

type redisPresence struct {
	rdb    *redis.Client
	nodeID string
	ttl    time.Duration
}

// NewPresence builds the Redis-backed mirror for one gateway node.
func NewPresence(rdb *redis.Client, nodeID string, ttl time.Duration) Presence {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &redisPresence{rdb: rdb, nodeID: nodeID, ttl: ttl}
}

func key(userID string) string { return keyPrefix + userID }

func (p *redisPresence) member(connID string) string { return p.nodeID + "/" + connID }

func (p *redisPresence) MarkOnline(ctx context.Context, userID, connID string) error {
	pipe := p.rdb.TxPipeline()
	pipe.SAdd(ctx, key(userID), p.member(connID))
	pipe.Expire(ctx, key(userID), p.ttl)
	_, err := pipe.Exec(ctx)
	return errs.WrapMsg(err, "presence mark online")
}

func (p *redisPresence) MarkOffline(ctx context.Context, userID, connID string) error {
	if err := p.rdb.SRem(ctx, key(userID), p.member(connID)).Err(); err != nil {
		return errs.WrapMsg(err, "presence mark offline")
	}
	// Leave the key to its TTL when members remain; delete eagerly when empty
	// so IsOnline flips without waiting for expiry.
	n, err := p.rdb.SCard(ctx, key(userID)).Result()
	if err == nil && n == 0 {
		_ = p.rdb.Del(ctx, key(userID)).Err()
	}
	return nil
}

func (p *redisPresence) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := p.rdb.Exists(ctx, key(userID)).Result()
	if err != nil {
		return false, errs.WrapMsg(err, "presence is online")
	}
	return n > 0, nil
}

// Nodes returns the distinct gateway node ids currently holding connections
// for the user.
func (p *redisPresence) Nodes(ctx context.Context, userID string) ([]string, error) {
	members, err := p.rdb.SMembers(ctx, key(userID)).Result()
	if err != nil {
		return nil, errs.WrapMsg(err, "presence nodes")
	}
	seen := make(map[string]struct{}, len(members))
	var out []string
	for _, m := range members {
		node := m
		if i := strings.IndexByte(m, '/'); i >= 0 {
			node = m[:i]
		}
		if _, dup := seen[node]; !dup {
			seen[node] = struct{}{}
			out = append(out, node)
		}
	}
	return out, nil
}

func (p *redisPresence) Heartbeat(ctx context.Context, userID string) error {
	return errs.WrapMsg(p.rdb.Expire(ctx, key(userID), p.ttl).Err(), "presence heartbeat")
}
