package relay

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Client is one connected session. The hub owns its registration and
// interest set; the connection handler owns the socket and drains Out.
//
// Payloads are enqueued on a buffered channel only while the hub lock is
// held and the client is still registered; the channel is closed under the
// same lock when the client is disconnected, so a send never races a close.
type Client struct {
	ID string

	out      chan json.RawMessage
	interest map[string]struct{}
	gone     bool
}

func newClient(sendBuffer int) *Client {
	return &Client{
		ID:       uuid.NewString(),
		out:      make(chan json.RawMessage, sendBuffer),
		interest: make(map[string]struct{}),
	}
}

// Out yields payloads to deliver, in enqueue order. The channel is closed
// when the client is disconnected.
func (c *Client) Out() <-chan json.RawMessage {
	return c.out
}

// trySend enqueues without blocking. A full buffer means the client is not
// draining fast enough and counts as a delivery failure.
func (c *Client) trySend(payload json.RawMessage) bool {
	if c.gone {
		return false
	}
	select {
	case c.out <- payload:
		return true
	default:
		return false
	}
}
