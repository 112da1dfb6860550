// Package bus provides the ZeroMQ transport the relay consumes from.
// Messages on the wire are two frames: the UTF-8 topic name (also the
// subscription filter) followed by a UTF-8 JSON payload.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Envelope is one decoded bus message.
type Envelope struct {
	Topic   string
	Payload json.RawMessage
}

// Source opens one subscription per topic filter. An empty filter matches
// every topic.
type Source interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription yields envelopes for a single topic filter. Recv blocks until
// a message arrives, the context is cancelled, or the transport fails.
type Subscription interface {
	Recv(ctx context.Context) (Envelope, error)
	Close() error
}

// DecodeFrames converts raw wire frames into an Envelope. The payload is
// passed through untouched; JSON validation is the consumer's concern.
func DecodeFrames(frames [][]byte) (Envelope, error) {
	if len(frames) != 2 {
		return Envelope{}, fmt.Errorf("expected 2 frames, got %d", len(frames))
	}
	if !utf8.Valid(frames[0]) {
		return Envelope{}, fmt.Errorf("topic frame is not valid UTF-8")
	}
	return Envelope{
		Topic:   string(frames[0]),
		Payload: json.RawMessage(frames[1]),
	}, nil
}
