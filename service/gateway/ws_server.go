package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"connectify/logger"
	"connectify/service/storage"
	"connectify/tools/safe"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TokenVerifier is the auth collaborator boundary: it turns a bearer token
// into a verified user id or fails.
type TokenVerifier func(token string) (userID string, err error)

// Server owns the websocket endpoint: handshake, registration, read loop,
// teardown. Everything event-shaped goes out through the Router; everything
// command-shaped comes in through the Dispatcher.
type Server struct {
	reg      *Registry
	disp     *Dispatcher
	verify   TokenVerifier
	presence storage.Presence // optional, heartbeats
	nodeID   string
}

func NewServer(reg *Registry, disp *Dispatcher, verify TokenVerifier, presence storage.Presence, nodeID string) *Server {
	return &Server{reg: reg, disp: disp, verify: verify, presence: presence, nodeID: nodeID}
}

// HandleWS upgrades the connection. An unauthenticated session is rejected
// before any handle is registered.
func (s *Server) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.GetHeader("Sec-WebSocket-Protocol")
	}
	userID, err := s.verify(token)
	if err != nil || userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"isSuccess": false, "error": "authentication required"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade failed user=%s: %v", userID, err)
		return
	}

	client := NewClient(uuid.NewString(), userID, ws, 256)
	if err := s.reg.Register(client); err != nil {
		logger.Warnf("[ws] register rejected user=%s: %v", userID, err)
		_ = ws.Close()
		return
	}
	logger.Infof("[ws] connected user=%s conn=%s", userID, client.ConnID)

	client.Deliver(BuildConnAck(client.ConnID, userID, s.nodeID))
	safe.Go(client.writePump)

	s.readLoop(client, ws)
}

// readLoop blocks until the peer goes away, then unregisters. A dropped
// connection unregisters promptly, bounded by the pong deadline.
func (s *Server) readLoop(client *Client, ws *websocket.Conn) {
	defer func() {
		userID, wentOffline := s.reg.Unregister(client.ConnID)
		client.Close()
		logger.Infof("[ws] disconnected user=%s conn=%s offline=%v", userID, client.ConnID, wentOffline)
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		s.heartbeat(client.UserID)
		return nil
	})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.Infof("[ws] read error conn=%s: %v", client.ConnID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseClientFrame(data)
		if perr != nil {
			logger.Debug("[ws] dropping malformed frame from " + client.ConnID)
			continue
		}

		switch frame.Type {
		case FramePing:
			client.Deliver(buildPong())
			s.heartbeat(client.UserID)
		default:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s.disp.Dispatch(ctx, client, frame); err != nil {
				logger.Infof("[ws] frame %q from conn=%s failed: %v", frame.Type, client.ConnID, err)
			}
			cancel()
		}
	}
}

func (s *Server) heartbeat(userID string) {
	if s.presence == nil {
		return
	}
	safe.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.presence.Heartbeat(ctx, userID); err != nil {
			logger.Debug("[ws] heartbeat failed for " + userID)
		}
	})
}
