package gateway

import (
	"context"

	"connectify/tools/errs"
)

// FrameHandler processes one inbound client frame.
type FrameHandler func(ctx context.Context, c *Client, f *ClientFrame) error

// Dispatcher routes inbound frames by type. Handlers are registered at wiring
// time (main), which keeps the gateway free of module imports.
type Dispatcher struct {
	handlers map[string]FrameHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]FrameHandler)}
}

func (d *Dispatcher) Register(frameType string, h FrameHandler) {
	d.handlers[frameType] = h
}

func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, f *ClientFrame) error {
	h, ok := d.handlers[f.Type]
	if !ok {
		return errs.ErrArgs.WrapMsg("no handler for frame type " + f.Type)
	}
	return h(ctx, c, f)
}
