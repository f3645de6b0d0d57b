package bus

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"connectify/global/config"
	"connectify/logger"
	"connectify/service/gateway"
	"connectify/tools/errs"
)

// natsBus uses a plain core subject broadcast: every node subscribes without
// a queue group so each instance receives each event and filters by origin.
type natsBus struct {
	nodeID  string
	subject string
	nc      *nats.Conn
	sub     *nats.Subscription
}

func newNatsBus(cfg config.NatsConfig, nodeID string) (Bus, error) {
	if len(cfg.Servers) == 0 {
		return nil, errs.ErrArgs.WrapMsg("nats servers missing")
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","),
		nats.Name("connectify-"+nodeID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "nats connect")
	}
	return &natsBus{nodeID: nodeID, subject: cfg.Subject, nc: nc}, nil
}

func (b *natsBus) Publish(ctx context.Context, ev *gateway.Event) error {
	data, err := encodeEnvelope(b.nodeID, ev)
	if err != nil {
		return err
	}
	return errs.WrapMsg(b.nc.Publish(b.subject, data), "nats publish")
}

func (b *natsBus) Subscribe(h Handler) error {
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		env, err := decodeEnvelope(msg.Data)
		if err != nil {
			logger.Warnf("[bus/nats] drop bad envelope: %v", err)
			return
		}
		if env.Origin == b.nodeID {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h(ctx, env.event())
	})
	if err != nil {
		return errs.WrapMsg(err, "nats subscribe")
	}
	b.sub = sub
	return nil
}

func (b *natsBus) Close() error {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	b.nc.Close()
	return nil
}
