// Package bus bridges presence events between gateway nodes. A user's
// handles may live on another instance; the router publishes events it cannot
// deliver locally and every node delivers bridged events to its own handles
// only. Delivery through the bridge is best effort: a lost bridge degrades to
// offline semantics and the durable store catches users up on reconnect.
package bus

import (
	"context"
	"encoding/json"
	"time"

	"connectify/global/config"
	"connectify/service/gateway"
	"connectify/tools/errs"
)

// Handler consumes one bridged event.
type Handler func(ctx context.Context, ev *gateway.Event)

// Bus is the bridge contract used by the router (publish side) and wired to
// Router.DeliverLocal (subscribe side).
type Bus interface {
	Publish(ctx context.Context, ev *gateway.Event) error
	Subscribe(h Handler) error
	Close() error
}

// envelope is the wire form, tagged with the origin node so instances can
// skip their own publications.
type envelope struct {
	Origin  string          `json:"origin"`
	Name    string          `json:"name"`
	Targets []string        `json:"targets"`
	Payload json.RawMessage `json:"payload,omitempty"`
	TS      int64           `json:"ts"`
}

func encodeEnvelope(origin string, ev *gateway.Event) ([]byte, error) {
	var raw json.RawMessage
	if ev.Payload != nil {
		b, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, errs.WrapMsg(err, "marshal event payload")
		}
		raw = b
	}
	b, err := json.Marshal(envelope{
		Origin:  origin,
		Name:    ev.Name,
		Targets: ev.Targets,
		Payload: raw,
		TS:      time.Now().UnixMilli(),
	})
	return b, errs.Wrap(err)
}

func decodeEnvelope(data []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal bus envelope")
	}
	return &env, nil
}

func (e *envelope) event() *gateway.Event {
	ev := &gateway.Event{Name: e.Name, Targets: e.Targets}
	if len(e.Payload) > 0 {
		var payload any
		if err := json.Unmarshal(e.Payload, &payload); err == nil {
			ev.Payload = payload
		}
	}
	return ev
}

// New builds the bridge selected by config. Mode "none" returns nil, which
// the router treats as single-node.
func New(cfg config.BusConfig, nodeID string) (Bus, error) {
	switch cfg.Mode {
	case "", "none":
		return nil, nil
	case "kafka":
		return newKafkaBus(cfg.Kafka, nodeID)
	case "nats":
		return newNatsBus(cfg.Nats, nodeID)
	default:
		return nil, errs.ErrArgs.WrapMsg("unknown bus mode " + cfg.Mode)
	}
}
