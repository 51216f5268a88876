package live

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrHubStopped is returned by Send once the hub's Run loop has exited.
var ErrHubStopped = errors.New("live hub stopped")

const subscriberBuffer = 8

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Subscriber receives every frame the hub broadcasts.
type Subscriber struct {
	ID   string
	send chan []byte
}

// Frames returns the subscriber's frame channel. It is closed when the
// subscriber is removed or the hub stops.
func (s *Subscriber) Frames() <-chan []byte { return s.send }

// Hub fans live frames out to websocket viewers and other subscribers. It
// implements Sink. Slow subscribers are disconnected rather than allowed to
// stall the broadcast.
type Hub struct {
	subscribers map[*Subscriber]bool
	register    chan *Subscriber
	unregister  chan *Subscriber
	broadcast   chan []byte
	done        chan struct{}
	logger      zerolog.Logger

	mu     sync.RWMutex
	latest []byte
}

// NewHub creates a Hub. Call Run to start it.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]bool),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		broadcast:   make(chan []byte, 16),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Run dispatches frames until ctx is cancelled, then closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.subscribers {
				close(s.send)
				delete(h.subscribers, s)
			}
			h.mu.Unlock()
			return

		case s := <-h.register:
			h.mu.Lock()
			h.subscribers[s] = true
			n := len(h.subscribers)
			h.mu.Unlock()
			h.logger.Info().Str("subscriber", s.ID).Int("total", n).Msg("live viewer connected")

		case s := <-h.unregister:
			h.remove(s)

		case msg := <-h.broadcast:
			h.mu.Lock()
			h.latest = msg
			var slow []*Subscriber
			for s := range h.subscribers {
				select {
				case s.send <- msg:
				default:
					slow = append(slow, s)
				}
			}
			h.mu.Unlock()

			for _, s := range slow {
				h.logger.Warn().Str("subscriber", s.ID).Msg("live viewer too slow, disconnecting")
				h.remove(s)
			}
		}
	}
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[s]; ok {
		delete(h.subscribers, s)
		close(s.send)
		h.logger.Info().Str("subscriber", s.ID).Int("total", len(h.subscribers)).Msg("live viewer disconnected")
	}
}

// Send broadcasts a JPEG frame to every subscriber.
func (h *Hub) Send(ctx context.Context, frameID int, jpeg []byte) error {
	select {
	case h.broadcast <- jpeg:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a new subscriber. The returned function removes it.
func (h *Hub) Subscribe() (*Subscriber, func()) {
	s := &Subscriber{ID: uuid.New().String(), send: make(chan []byte, subscriberBuffer)}
	select {
	case h.register <- s:
	case <-h.done:
		close(s.send)
		return s, func() {}
	}

	var once sync.Once
	return s, func() {
		once.Do(func() {
			select {
			case h.unregister <- s:
			case <-h.done:
			}
		})
	}
}

// Latest returns the most recent frame, or nil if none has been sent.
func (h *Hub) Latest() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// ServeHTTP upgrades the request to a websocket that receives every frame as
// a binary message.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub, cancel := h.Subscribe()
	c := &client{conn: conn, sub: sub}
	go c.writePump()
	c.readPump()
	cancel()
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// client is one websocket viewer.
type client struct {
	conn *websocket.Conn
	sub  *Subscriber
}

// readPump discards viewer messages and returns when the connection drops.
func (c *client) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards frames until the subscription closes.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.sub.Frames():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
