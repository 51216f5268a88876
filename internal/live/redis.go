package live

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ayusman/courtside/internal/timeline"
)

// ErrCacheMiss is returned when a timeline is not cached.
var ErrCacheMiss = errors.New("timeline not cached")

// RedisConfig holds redis connection settings. An empty Addr disables redis.
type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	ChannelPrefix string        `mapstructure:"channel_prefix"`
	TimelineTTL   time.Duration `mapstructure:"timeline_ttl"`
}

// Enabled reports whether redis is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// Connect opens a redis client and checks it with a ping.
func Connect(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// RedisSink publishes live frames as msgpack FramePayloads on a pub/sub
// channel.
type RedisSink struct {
	client  *redis.Client
	channel string
	source  string
}

// NewRedisSink creates a sink publishing on prefix+"live:"+source.
func NewRedisSink(client *redis.Client, prefix, source string) *RedisSink {
	return &RedisSink{
		client:  client,
		channel: FrameChannel(prefix, source),
		source:  source,
	}
}

// FrameChannel returns the pub/sub channel carrying frames for source.
func FrameChannel(prefix, source string) string {
	return prefix + "live:" + source
}

// Channel returns the channel the sink publishes on.
func (s *RedisSink) Channel() string { return s.channel }

// Send publishes one frame.
func (s *RedisSink) Send(ctx context.Context, frameID int, jpeg []byte) error {
	data, err := msgpack.Marshal(&FramePayload{
		Source:    s.source,
		FrameID:   frameID,
		JPEG:      jpeg,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encode frame payload: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("publish frame %d: %w", frameID, err)
	}
	return nil
}

// DecodeFrame decodes a payload published by RedisSink.
func DecodeFrame(data []byte) (FramePayload, error) {
	var p FramePayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return FramePayload{}, fmt.Errorf("decode frame payload: %w", err)
	}
	return p, nil
}

// CachedTimeline is a finished analysis as kept in redis.
type CachedTimeline struct {
	AnalysisID string             `msgpack:"analysis_id" json:"analysis_id"`
	Segments   []timeline.Segment `msgpack:"segments" json:"segments"`
	Summary    timeline.Summary   `msgpack:"summary" json:"summary"`
}

// TimelineCache stores finished timelines in redis with an expiry.
type TimelineCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewTimelineCache creates a cache. A ttl of zero keeps entries forever.
func NewTimelineCache(client *redis.Client, prefix string, ttl time.Duration) *TimelineCache {
	return &TimelineCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *TimelineCache) key(id string) string {
	return c.prefix + "timeline:" + id
}

// Put caches entry under its AnalysisID.
func (c *TimelineCache) Put(ctx context.Context, entry CachedTimeline) error {
	data, err := msgpack.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("encode timeline %s: %w", entry.AnalysisID, err)
	}
	if err := c.client.Set(ctx, c.key(entry.AnalysisID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache timeline %s: %w", entry.AnalysisID, err)
	}
	return nil
}

// Get returns the cached timeline for id, or ErrCacheMiss.
func (c *TimelineCache) Get(ctx context.Context, id string) (CachedTimeline, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CachedTimeline{}, ErrCacheMiss
	}
	if err != nil {
		return CachedTimeline{}, fmt.Errorf("read timeline %s: %w", id, err)
	}

	var entry CachedTimeline
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return CachedTimeline{}, fmt.Errorf("decode timeline %s: %w", id, err)
	}
	return entry, nil
}

// Delete removes the cached timeline for id.
func (c *TimelineCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
