package live

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Broadcaster defaults.
const (
	DefaultQueueSize   = 4
	DefaultSendTimeout = 500 * time.Millisecond
)

// BroadcasterConfig holds Broadcaster settings.
type BroadcasterConfig struct {
	QueueSize   int
	SendTimeout time.Duration
	Logger      zerolog.Logger
}

// DefaultBroadcasterConfig returns the standard settings.
func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		QueueSize:   DefaultQueueSize,
		SendTimeout: DefaultSendTimeout,
		Logger:      zerolog.Nop(),
	}
}

// BroadcastStats counts what happened to offered frames.
type BroadcastStats struct {
	Sent    int64 `json:"sent"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

type liveFrame struct {
	id   int
	jpeg []byte
}

// Broadcaster delivers frames to a Sink from its own goroutine so the caller
// never waits on the network. Frames offered while the queue is full are
// dropped.
type Broadcaster struct {
	sink   Sink
	config BroadcasterConfig
	queue  chan liveFrame
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	sent    atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewBroadcaster starts a Broadcaster in front of sink.
func NewBroadcaster(sink Sink, config BroadcasterConfig) *Broadcaster {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultSendTimeout
	}

	b := &Broadcaster{
		sink:   sink,
		config: config,
		queue:  make(chan liveFrame, config.QueueSize),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

// TrySend queues a frame without blocking and reports whether it was
// accepted. Frames offered after Close are dropped.
func (b *Broadcaster) TrySend(frameID int, jpeg []byte) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.dropped.Add(1)
		return false
	}

	select {
	case b.queue <- liveFrame{id: frameID, jpeg: jpeg}:
		return true
	default:
		b.dropped.Add(1)
		b.config.Logger.Debug().Int("frame", frameID).Msg("live queue full, frame dropped")
		return false
	}
}

func (b *Broadcaster) run() {
	defer close(b.done)

	for f := range b.queue {
		ctx, cancel := context.WithTimeout(context.Background(), b.config.SendTimeout)
		err := b.sink.Send(ctx, f.id, f.jpeg)
		cancel()

		if err != nil {
			b.failed.Add(1)
			b.config.Logger.Debug().Err(err).Int("frame", f.id).Msg("live frame delivery failed")
			continue
		}
		b.sent.Add(1)
	}
}

// Close stops accepting frames and waits for queued frames to be delivered.
// It is safe to call more than once.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	<-b.done
}

// Stats returns the delivery counters.
func (b *Broadcaster) Stats() BroadcastStats {
	return BroadcastStats{
		Sent:    b.sent.Load(),
		Dropped: b.dropped.Load(),
		Failed:  b.failed.Load(),
	}
}
