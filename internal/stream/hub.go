package stream

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"backend-flathunt/internal/logger"

	"github.com/redis/go-redis/v9"
)

// TopicListings carries every listing change.
const TopicListings = "listings"

// Event is the payload pushed to websocket subscribers.
type Event struct {
	Type      string    `json:"type"`
	ListingID string    `json:"listing_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	At        time.Time `json:"at"`
}

type Hub struct {
	redis    *redis.Client
	log      logger.Logger
	clients  map[string]map[*Client]struct{}
	mu       sync.RWMutex
	relaying atomic.Bool
	ready    chan struct{}
	cancel   context.CancelFunc
}

type Client struct {
	Topic string
	Send  chan []byte
}

// NewHub fans events out to local websocket clients. With a Redis client,
// events are relayed through pub/sub so every API process sees them.
func NewHub(redisClient *redis.Client, log logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		redis:   redisClient,
		log:     log,
		clients: map[string]map[*Client]struct{}{},
		ready:   make(chan struct{}),
		cancel:  cancel,
	}
	if redisClient != nil {
		go h.subscribeRedis(ctx)
	} else {
		close(h.ready)
	}
	return h
}

func (h *Hub) Register(topic string) *Client {
	client := &Client{
		Topic: topic,
		Send:  make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[topic] == nil {
		h.clients[topic] = map[*Client]struct{}{}
	}
	h.clients[topic][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	topicClients := h.clients[client.Topic]
	if _, ok := topicClients[client]; !ok {
		return
	}
	delete(topicClients, client)
	if len(topicClients) == 0 {
		delete(h.clients, client.Topic)
	}
	close(client.Send)
}

// Publish encodes ev and broadcasts it on topic.
func (h *Hub) Publish(topic string, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Warn("encode event failed", logger.String("type", ev.Type), logger.Error(err))
		return
	}
	h.Broadcast(topic, payload)
}

func (h *Hub) Broadcast(topic string, payload []byte) {
	if h.relaying.Load() {
		err := h.redis.Publish(context.Background(), redisChannel(topic), payload).Err()
		if err == nil {
			return
		}
		h.log.Warn("redis publish failed, delivering locally", logger.String("topic", topic), logger.Error(err))
	}
	h.deliver(topic, payload)
}

// Close stops the Redis relay.
func (h *Hub) Close() {
	h.cancel()
}

func (h *Hub) deliver(topic string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[topic] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.redis.PSubscribe(ctx, redisChannel("*"))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		h.log.Warn("redis subscribe failed, events stay local", logger.Error(err))
		close(h.ready)
		return
	}
	h.relaying.Store(true)
	close(h.ready)
	defer h.relaying.Store(false)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.deliver(topicFromChannel(msg.Channel), []byte(msg.Payload))
		}
	}
}

func redisChannel(topic string) string {
	return "flathunt:" + topic + ":events"
}

func topicFromChannel(ch string) string {
	// flathunt:{topic}:events
	const prefix = "flathunt:"
	const suffix = ":events"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
