package gateway

import (
	"encoding/json"
	"time"

	"github.com/mitchellh/mapstructure"

	"connectify/tools/errs"
)

// Wire format is JSON both ways. Server -> client frames carry an event name
// and payload; client -> server frames carry a type and an optional payload
// map decoded per handler.

// EventFrame is what a connected client receives.
type EventFrame struct {
	Event   string `json:"event"`
	TS      int64  `json:"ts"`
	Payload any    `json:"payload,omitempty"`
}

// EncodeEventFrame serializes an event for delivery. The payload must be
// JSON-serializable; that is part of the router contract.
func EncodeEventFrame(ev *Event) ([]byte, error) {
	frame := EventFrame{Event: ev.Name, TS: time.Now().UnixMilli(), Payload: ev.Payload}
	b, err := json.Marshal(frame)
	if err != nil {
		return nil, errs.WrapMsg(err, "encode event frame")
	}
	return b, nil
}

// ClientFrame is an inbound frame from a connected client.
type ClientFrame struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Client frame types handled by the gateway itself; anything else goes
// through the dispatcher's registered handlers.
const (
	FramePing = "ping"
	FramePong = "pong"
)

func ParseClientFrame(raw []byte) (*ClientFrame, error) {
	var f ClientFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.ErrArgs.WrapMsg("malformed client frame")
	}
	if f.Type == "" {
		return nil, errs.ErrArgs.WrapMsg("client frame missing type")
	}
	return &f, nil
}

// DecodePayload maps a frame's loose payload onto a typed struct, tolerating
// unknown fields the way the rest of the wire protocol does.
func DecodePayload[T any](payload map[string]any) (*T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &out,
	})
	if err != nil {
		return nil, errs.Wrap(err)
	}
	if err := dec.Decode(payload); err != nil {
		return nil, errs.ErrArgs.WrapMsg("decode payload: " + err.Error())
	}
	return &out, nil
}

// BuildConnAck is the first frame a client sees after registration.
func BuildConnAck(connID, userID, nodeID string) []byte {
	b, _ := json.Marshal(EventFrame{
		Event: "CONNECTED",
		TS:    time.Now().UnixMilli(),
		Payload: map[string]string{
			"conn_id": connID,
			"user_id": userID,
			"node_id": nodeID,
		},
	})
	return b
}

func buildPong() []byte {
	b, _ := json.Marshal(EventFrame{Event: "PONG", TS: time.Now().UnixMilli()})
	return b
}
