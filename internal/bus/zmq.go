package bus

import (
	"context"
	"fmt"

	"github.com/go-zeromq/zmq4"
)

// Dialer is the ZeroMQ-backed Source. Each Subscribe opens its own SUB
// socket connected to the endpoint, filtered to the given topic.
type Dialer struct {
	Endpoint string
}

// Subscribe connects a SUB socket for one topic filter. The socket lives
// until the context is cancelled or Close is called.
func (d Dialer) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	sock := zmq4.NewSub(ctx)
	if err := sock.Dial(d.Endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("dial %s: %w", d.Endpoint, err)
	}
	if err := sock.SetOption(zmq4.OptionSubscribe, topic); err != nil {
		sock.Close()
		return nil, fmt.Errorf("subscribe %q: %w", topic, err)
	}
	return &zmqSubscription{sock: sock}, nil
}

type zmqSubscription struct {
	sock zmq4.Socket
}

func (s *zmqSubscription) Recv(ctx context.Context) (Envelope, error) {
	msg, err := s.sock.Recv()
	if err != nil {
		if ctx.Err() != nil {
			return Envelope{}, ctx.Err()
		}
		return Envelope{}, err
	}
	return DecodeFrames(msg.Frames)
}

func (s *zmqSubscription) Close() error {
	return s.sock.Close()
}

// Publisher binds a PUB socket and sends two-frame messages. Used by the
// playback tool and by producers embedding the relay's transport.
type Publisher struct {
	sock zmq4.Socket
}

// NewPublisher binds a PUB socket on the endpoint.
func NewPublisher(ctx context.Context, endpoint string) (*Publisher, error) {
	sock := zmq4.NewPub(ctx)
	if err := sock.Listen(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("bind %s: %w", endpoint, err)
	}
	return &Publisher{sock: sock}, nil
}

// Publish sends one [topic, payload] message.
func (p *Publisher) Publish(topic string, payload []byte) error {
	return p.sock.Send(zmq4.NewMsgFrom([]byte(topic), payload))
}

func (p *Publisher) Close() error {
	return p.sock.Close()
}
