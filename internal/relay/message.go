package relay

import (
	"encoding/json"
	"time"
)

// Message is one relayed bus message. Immutable once stored; the store only
// ever replaces whole entries, never mutates a Message in place.
type Message struct {
	Topic      string
	Payload    json.RawMessage
	ReceivedAt time.Time
}
