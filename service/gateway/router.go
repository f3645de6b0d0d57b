package gateway

import (
	"context"
	"time"

	"connectify/logger"
	"connectify/service/storage"
)

// Bridge forwards events to gateway nodes other than this one. Implemented by
// the bus package (kafka / nats); nil means single-node deployment.
type Bridge interface {
	Publish(ctx context.Context, ev *Event) error
}

// Router is the event fan-out point. Dispatch resolves live handles through
// the registry and pushes the encoded frame to each; users online on other
// nodes are reached through the bridge; users online nowhere are silently
// skipped, because durable state (unseen messages, unseen notifications) is
// the catch-up mechanism on reconnect.
type Router struct {
	reg      *Registry
	fanout   *Fanout
	presence storage.Presence // optional, for cross-node reachability
	bridge   Bridge           // optional
	nodeID   string
}

func NewRouter(reg *Registry, fanout *Fanout, presence storage.Presence, bridge Bridge, nodeID string) *Router {
	return &Router{reg: reg, fanout: fanout, presence: presence, bridge: bridge, nodeID: nodeID}
}

var _ Sink = (*Router)(nil)

// Dispatch delivers ev to every live handle of every target, at most once per
// handle. It never reports failure: persistence has already happened by the
// time an event exists, and a missed delivery to a disconnecting handle is
// indistinguishable from the user having been offline.
func (r *Router) Dispatch(ctx context.Context, ev *Event) {
	if ev == nil || len(ev.Targets) == 0 {
		return
	}
	frame, err := EncodeEventFrame(ev)
	if err != nil {
		logger.Errorf("[router] drop undeliverable event %s: %v", ev.Name, err)
		return
	}

	r.fanout.Broadcast(r.reg.HandlesFor(ev.Targets), frame)

	if r.bridge == nil {
		return
	}
	remote := r.remoteTargets(ctx, ev.Targets)
	if len(remote) == 0 {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.bridge.Publish(pubCtx, &Event{Name: ev.Name, Targets: remote, Payload: ev.Payload}); err != nil {
		// Bridge loss degrades to offline semantics; the store catches them up.
		logger.Warnf("[router] bridge publish %s failed: %v", ev.Name, err)
	}
}

// DeliverLocal pushes an event received from the bridge to handles on this
// node only. No re-publish: that would loop events between nodes.
func (r *Router) DeliverLocal(ctx context.Context, ev *Event) {
	if ev == nil || len(ev.Targets) == 0 {
		return
	}
	frame, err := EncodeEventFrame(ev)
	if err != nil {
		logger.Errorf("[router] drop undeliverable bridged event %s: %v", ev.Name, err)
		return
	}
	r.fanout.Broadcast(r.reg.HandlesFor(ev.Targets), frame)
}

// remoteTargets filters the target set down to users with no handle here but
// with live presence somewhere else.
func (r *Router) remoteTargets(ctx context.Context, targets []string) []string {
	var out []string
	for _, uid := range targets {
		if r.reg.IsOnline(uid) {
			continue
		}
		if r.presence != nil {
			online, err := r.presence.IsOnline(ctx, uid)
			if err != nil {
				logger.Warnf("[router] presence lookup user=%s: %v", uid, err)
				continue
			}
			if !online {
				continue
			}
		}
		out = append(out, uid)
	}
	return out
}
