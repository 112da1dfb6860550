package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Publisher is the send side playback republishes through.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Player republishes a recording in capture order, preserving the
// inter-message gaps scaled by a speed factor.
type Player struct {
	store  *Store
	pub    Publisher
	speed  float64
	repeat bool
}

// NewPlayer creates a Player. speed is a multiplier (2.0 plays twice as
// fast); values <= 0 are treated as 1.0.
func NewPlayer(store *Store, pub Publisher, speed float64, repeat bool) *Player {
	if speed <= 0 {
		speed = 1.0
	}
	return &Player{store: store, pub: pub, speed: speed, repeat: repeat}
}

// Run plays the recording once, or in a loop when repeat is set. Returns
// early without error when ctx is cancelled.
func (p *Player) Run(ctx context.Context) error {
	msgs, err := p.store.Messages()
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return fmt.Errorf("recording has no messages")
	}

	loop := 0
	for {
		loop++
		for i, m := range msgs {
			if i > 0 {
				gap := m.At.Sub(msgs[i-1].At)
				scaled := time.Duration(float64(gap) / p.speed)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(scaled):
				}
			}
			if err := p.pub.Publish(m.Topic, m.Payload); err != nil {
				return fmt.Errorf("republish %s: %w", m.Topic, err)
			}
		}
		if !p.repeat {
			return nil
		}
		slog.Info("repeating playback", slog.Int("loop", loop))
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}
