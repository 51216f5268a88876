// Package live delivers annotated frames to viewers while an analysis runs.
package live

import (
	"context"
	"errors"
)

// Sink receives encoded live frames. Implementations may block; callers on a
// hot path wrap them in a Broadcaster.
type Sink interface {
	Send(ctx context.Context, frameID int, jpeg []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, frameID int, jpeg []byte) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, frameID int, jpeg []byte) error {
	return f(ctx, frameID, jpeg)
}

// MultiSink fans a frame out to every sink. All sinks are tried; their errors
// are joined.
type MultiSink []Sink

// Send delivers the frame to each sink in order.
func (m MultiSink) Send(ctx context.Context, frameID int, jpeg []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, frameID, jpeg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FramePayload is the wire form of a live frame on redis.
type FramePayload struct {
	Source    string `msgpack:"source"`
	FrameID   int    `msgpack:"frame_id"`
	JPEG      []byte `msgpack:"jpeg"`
	Timestamp int64  `msgpack:"ts"`
}
