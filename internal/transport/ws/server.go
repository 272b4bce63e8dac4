package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/coordinator/config"
)

// Server handles feed websocket connections.
type Server struct {
	cfg      *config.Config
	hub      *Hub
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewServer creates a new feed server.
func NewServer(cfg *config.Config, h *Hub, log zerolog.Logger) *Server {
	return &Server{
		cfg: cfg,
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Reviewers connect from the CLI and dashboards on other origins.
				return true
			},
		},
		log: log.With().Str("component", "ws_server").Logger(),
	}
}

// HandleWebSocket handles the upgrade and connection lifecycle.
// GET /ws
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to upgrade websocket")
		return err
	}

	conn := s.hub.NewConnection(ws)
	if !s.hub.Register(conn) {
		_ = ws.Close()
		return nil
	}
	if s.cfg.WSMaxMessageSize > 0 {
		ws.SetReadLimit(s.cfg.WSMaxMessageSize)
	}

	go s.writePump(conn)
	go s.readPump(conn)
	return nil
}

func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	readTimeout := durationOr(s.cfg.WSReadTimeout, 60*time.Second)
	_ = conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn().Err(err).Str("connection_id", conn.ID).Msg("websocket error")
			}
			return
		}
		s.handleMessage(conn, message)
	}
}

func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(durationOr(s.cfg.WSPingInterval, 30*time.Second))
	writeTimeout := durationOr(s.cfg.WSWriteTimeout, 10*time.Second)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			_ = conn.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.log.Warn().Err(err).Str("connection_id", conn.ID).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			_ = conn.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleMessage(conn *Connection, data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case TypeSubscribe:
		s.handleSubscribe(conn, data)
	default:
		s.sendError(conn, ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

func (s *Server) handleSubscribe(conn *Connection, data []byte) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, ErrorCodeInvalidMessage, "invalid subscribe message")
		return
	}
	if s.cfg.FeedAPIKey != "" && msg.APIKey != s.cfg.FeedAPIKey {
		s.sendError(conn, ErrorCodeUnauthorized, "invalid api_key")
		return
	}

	s.hub.Subscribe(conn, NewSubscription(msg))
	_ = s.hub.SendJSONToConnection(conn, SubscribedMessage{
		BaseMessage:  BaseMessage{Type: TypeSubscribed, Ts: time.Now().UnixMilli()},
		ConnectionID: conn.ID,
	})
	s.log.Info().Str("connection_id", conn.ID).Str("reviewer", msg.Reviewer).Msg("feed subscribed")
}

func (s *Server) sendError(conn *Connection, code, message string) {
	_ = s.hub.SendJSONToConnection(conn, ErrorMessage{
		BaseMessage: BaseMessage{Type: TypeError, Ts: time.Now().UnixMilli()},
		Code:        code,
		Message:     message,
	})
}

func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
