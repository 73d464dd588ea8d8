package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/session"
	"github.com/cosmicconnect/backend/pkg/response"
)

// Client-facing topic names.
const (
	TopicTasks   = "tasks"
	TopicUsers   = "users"
	TopicReports = "reports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // access is gated by the token and session, not origin
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is a single WebSocket subscription.
type Client struct {
	ID      string
	Topic   string
	UserID  uuid.UUID
	Role    models.Role
	hub     *Hub
	conn    *websocket.Conn
	send    chan WSMessage
	revoked chan struct{}
	once    sync.Once
	logger  *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, topic string, s *session.Session, logger *zap.Logger) *Client {
	return &Client{
		ID:      uuid.New().String(),
		Topic:   topic,
		UserID:  s.UID,
		Role:    s.Role,
		hub:     hub,
		conn:    conn,
		send:    make(chan WSMessage, SendBuffer),
		revoked: make(chan struct{}),
		logger:  logger,
	}
}

func (c *Client) revoke() {
	c.once.Do(func() { close(c.revoked) })
}

// ResolveTopic maps a requested topic to the channel the session may join.
// ok is false when the role may not subscribe.
func ResolveTopic(requested string, s *session.Session) (topic string, ok bool) {
	switch requested {
	case TopicTasks:
		return TopicTasks, true
	case TopicUsers:
		return TopicUsers, s.Role == models.RoleAdmin
	case TopicReports:
		return TopicReports + ":" + s.UID.String(), s.Role == models.RoleCoordinator
	}
	return "", false
}

// ServeWs authenticates, resolves the session, then upgrades and runs the client loop.
func ServeWs(hub *Hub, resolver SessionResolver, logger *zap.Logger, jwtValidate func(token string) (uuid.UUID, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		requested := c.Query("topic")
		token := c.Query("token")
		if requested == "" || token == "" {
			response.BadRequest(c, "topic and token required")
			return
		}
		uid, err := jwtValidate(token)
		if err != nil {
			response.UnauthorizedRedirect(c, session.ErrNotAuthorized.Error(), session.EntryPath)
			return
		}
		s, err := resolver.Resolve(c.Request.Context(), uid)
		if err != nil {
			response.UnauthorizedRedirect(c, session.ErrNotAuthorized.Error(), session.EntryPath)
			return
		}
		if !s.EmailVerified && s.Role != models.RoleAdmin {
			response.ForbiddenRedirect(c, "email not verified", "/verify-email")
			return
		}
		topic, ok := ResolveTopic(requested, s)
		if !ok {
			response.ForbiddenRedirect(c, "not allowed to subscribe to "+requested, s.Dashboard())
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client := newClient(hub, conn, topic, s, logger)
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

// readPump only services control frames; subscribers never send events.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-c.revoked:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = c.conn.WriteJSON(WSMessage{Event: EventSessionRevoked})
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, session.ErrNotAuthorized.Error()))
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
