package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/internal/session"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
	// SendBuffer is the per-connection outbound queue; slow consumers are skipped when full.
	SendBuffer = 256

	EventSessionRevoked = "session_revoked"

	eventRevalidate = "revalidate"
)

// SessionResolver re-resolves a connection's session, failing closed.
type SessionResolver interface {
	Resolve(ctx context.Context, uid uuid.UUID) (*session.Session, error)
}

// RedisPublisher publishes to Redis for cross-instance broadcast.
type RedisPublisher interface {
	PublishEvent(channel, event string, payload []byte) error
}

// RedisSubscriber subscribes to a channel and invokes handler for incoming events.
type RedisSubscriber interface {
	Subscribe(channel string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains topic -> set of connections and broadcasts messages.
// With Redis configured, publishes go through Redis so every instance fans out once.
type Hub struct {
	topics   map[string]map[string]*Client
	subs     map[string]func()
	mu       sync.RWMutex
	resolver SessionResolver
	redis    RedisPublisher
	redisSub RedisSubscriber
	stop     func()
	logger   *zap.Logger
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for a single instance.
func NewHub(resolver SessionResolver, redisPub RedisPublisher, redisSub RedisSubscriber, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		topics:   make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		resolver: resolver,
		redis:    redisPub,
		redisSub: redisSub,
		logger:   logger,
	}
}

// Start listens on the sessions channel so revalidation requests from any
// instance reach local connections. No-op without Redis.
func (h *Hub) Start() error {
	if h.redisSub == nil {
		return nil
	}
	cancel, err := h.redisSub.Subscribe(sessionsChannel, func(event string, payload []byte) {
		if event != eventRevalidate {
			return
		}
		var uid uuid.UUID
		if err := json.Unmarshal(payload, &uid); err != nil {
			h.logger.Warn("invalid revalidation payload", zap.Error(err))
			return
		}
		h.revalidate(context.Background(), uid)
	})
	if err != nil {
		return err
	}
	h.stop = cancel
	return nil
}

// Close cancels every Redis subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, cancel := range h.subs {
		cancel()
		delete(h.subs, topic)
	}
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
}

// Register adds a client to its topic. The first client on a topic starts its
// Redis subscription; the subscribe round trip runs without holding the hub lock.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	first := h.topics[c.Topic] == nil
	if first {
		h.topics[c.Topic] = make(map[string]*Client)
	}
	h.topics[c.Topic][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client subscribed", zap.String("client_id", c.ID), zap.String("topic", c.Topic))

	if first && h.redisSub != nil {
		h.subscribe(c.Topic)
	}
}

func (h *Hub) subscribe(topic string) {
	cancel, err := h.redisSub.Subscribe(topicChannel(topic), func(event string, payload []byte) {
		h.Broadcast(topic, event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("topic subscribe failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, live := h.topics[topic]; !live || h.subs[topic] != nil {
		// the last client left, or a newer registration already subscribed
		cancel()
		return
	}
	h.subs[topic] = cancel
}

// Unregister removes a client. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.topics[c.Topic]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.topics, c.Topic)
			if cancel, ok := h.subs[c.Topic]; ok {
				cancel()
				delete(h.subs, c.Topic)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client unsubscribed", zap.String("client_id", c.ID), zap.String("topic", c.Topic))
}

// Broadcast sends a message to all local clients on a topic.
func (h *Hub) Broadcast(topic, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Error("encode event", zap.String("event", event), zap.Error(err))
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.topics[topic] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers an event to every subscriber of topic on every instance.
// Through Redis the local subscription performs the broadcast, so local
// clients receive it exactly once.
func (h *Hub) Publish(_ context.Context, topic, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encode event", zap.String("event", event), zap.Error(err))
		return
	}
	if h.redis != nil {
		if err := h.redis.PublishEvent(topicChannel(topic), event, data); err == nil {
			return
		}
		h.logger.Warn("redis publish failed, delivering locally", zap.String("topic", topic), zap.Error(err))
	}
	h.Broadcast(topic, event, json.RawMessage(data))
}

// RevalidateUser asks every instance to re-resolve uid's live connections.
func (h *Hub) RevalidateUser(ctx context.Context, uid uuid.UUID) {
	if h.redis != nil {
		data, _ := json.Marshal(uid)
		if err := h.redis.PublishEvent(sessionsChannel, eventRevalidate, data); err == nil {
			return
		}
		h.logger.Warn("redis revalidation publish failed, revalidating locally", zap.String("uid", uid.String()))
	}
	h.revalidate(ctx, uid)
}

// revalidate closes uid's connections whose session no longer resolves to
// the role they were admitted with.
func (h *Hub) revalidate(ctx context.Context, uid uuid.UUID) {
	var mine []*Client
	h.mu.RLock()
	for _, clients := range h.topics {
		for _, c := range clients {
			if c.UserID == uid {
				mine = append(mine, c)
			}
		}
	}
	h.mu.RUnlock()
	if len(mine) == 0 {
		return
	}

	s, err := h.resolver.Resolve(ctx, uid)
	for _, c := range mine {
		if err == nil && s.Role == c.Role {
			continue
		}
		h.logger.Info("revoking realtime session", zap.String("uid", uid.String()), zap.String("topic", c.Topic))
		c.revoke()
	}
}

// Subscribers returns the number of local clients on a topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
