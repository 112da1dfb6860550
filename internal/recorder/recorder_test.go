package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cviz/relay/internal/bus"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.db")

	s, err := Create(path, "tcp://127.0.0.1:5555", []string{"polygon", "point"})
	if err != nil {
		t.Fatal(err)
	}

	base := time.Now()
	if err := s.Append("polygon", []byte(`{"a":1}`), base); err != nil {
		t.Fatal(err)
	}
	if err := s.Append("point", []byte(`{"b":2}`), base.Add(10*time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if err := s.Finish(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	meta, err := r.Meta()
	if err != nil {
		t.Fatal(err)
	}
	if meta.MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", meta.MessageCount)
	}
	if len(meta.Topics) != 2 || meta.Topics[0] != "polygon" {
		t.Errorf("Topics = %v", meta.Topics)
	}
	if meta.EndedAt.IsZero() {
		t.Error("EndedAt not stamped")
	}

	msgs, err := r.Messages()
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Topic != "polygon" || string(msgs[0].Payload) != `{"a":1}` {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if !msgs[1].At.After(msgs[0].At) {
		t.Error("messages out of capture order")
	}
}

func TestStoreAllTopicsMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.db")
	s, err := Create(path, "tcp://127.0.0.1:5555", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	meta, err := s.Meta()
	if err != nil {
		t.Fatal(err)
	}
	if meta.Topics != nil {
		t.Errorf("Topics = %v, want nil for an all-topics recording", meta.Topics)
	}
}

// memSource feeds canned envelopes to every subscription.
type memSource struct {
	envs []bus.Envelope
}

func (m *memSource) Subscribe(ctx context.Context, topic string) (bus.Subscription, error) {
	ch := make(chan bus.Envelope, len(m.envs))
	for _, env := range m.envs {
		ch <- env
	}
	return &memSub{ch: ch}, nil
}

type memSub struct{ ch chan bus.Envelope }

func (s *memSub) Recv(ctx context.Context) (bus.Envelope, error) {
	select {
	case env := <-s.ch:
		return env, nil
	case <-ctx.Done():
		return bus.Envelope{}, ctx.Err()
	}
}

func (s *memSub) Close() error { return nil }

func TestRecorderCapturesUntilCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.db")
	store, err := Create(path, "test", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	source := &memSource{envs: []bus.Envelope{
		{Topic: "a", Payload: []byte(`{"n":1}`)},
		{Topic: "b", Payload: []byte(`{"n":2}`)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	rec := New(source, store, nil)

	done := make(chan int, 1)
	go func() {
		count, err := rec.Run(ctx)
		if err != nil {
			t.Error(err)
		}
		done <- count
	}()

	// Give the capture goroutine time to drain both envelopes, then stop.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if msgs, _ := store.Messages(); len(msgs) == 2 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()

	count := <-done
	if count != 2 {
		t.Fatalf("recorded %d messages, want 2", count)
	}

	meta, err := store.Meta()
	if err != nil {
		t.Fatal(err)
	}
	if meta.MessageCount != 2 {
		t.Fatalf("MessageCount = %d, want 2", meta.MessageCount)
	}
}

// downSource is a bus whose subscriptions always fail on receive.
type downSource struct {
	mu         sync.Mutex
	subscribes int
}

func (s *downSource) Subscribe(ctx context.Context, topic string) (bus.Subscription, error) {
	s.mu.Lock()
	s.subscribes++
	s.mu.Unlock()
	return downSub{}, nil
}

func (s *downSource) subscribeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribes
}

type downSub struct{}

func (downSub) Recv(ctx context.Context) (bus.Envelope, error) {
	return bus.Envelope{}, errors.New("transport down")
}

func (downSub) Close() error { return nil }

func TestRecorderBacksOffBetweenRedials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.db")
	store, err := Create(path, "test", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	source := &downSource{}
	rec := New(source, store, []string{"a"})
	rec.RedialWait = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 175*time.Millisecond)
	defer cancel()
	if _, err := rec.Run(ctx); err != nil {
		t.Fatal(err)
	}

	// With a 50ms wait between redials, 175ms allows at most a handful of
	// subscribe attempts. A hot loop would rack up thousands.
	if n := source.subscribeCount(); n > 5 {
		t.Fatalf("subscribed %d times in 175ms, want a wait between redials", n)
	}
}

// capturePublisher collects republished messages.
type capturePublisher struct {
	mu   sync.Mutex
	sent []bus.Envelope
}

func (p *capturePublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, bus.Envelope{Topic: topic, Payload: payload})
	return nil
}

func TestPlaybackOrderAndTopics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.db")
	store, err := Create(path, "test", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	base := time.Now()
	store.Append("a", []byte(`{"n":1}`), base)
	store.Append("b", []byte(`{"n":2}`), base.Add(5*time.Millisecond))
	store.Append("a", []byte(`{"n":3}`), base.Add(10*time.Millisecond))

	pub := &capturePublisher{}
	// High speed keeps the test fast while still exercising the gap path.
	player := NewPlayer(store, pub, 1000, false)
	if err := player.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(pub.sent) != 3 {
		t.Fatalf("republished %d messages, want 3", len(pub.sent))
	}
	wantTopics := []string{"a", "b", "a"}
	for i, env := range pub.sent {
		if env.Topic != wantTopics[i] {
			t.Errorf("sent[%d].Topic = %s, want %s", i, env.Topic, wantTopics[i])
		}
	}
	if string(pub.sent[2].Payload) != `{"n":3}` {
		t.Errorf("sent[2].Payload = %s", pub.sent[2].Payload)
	}
}

func TestPlaybackEmptyRecordingFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.db")
	store, err := Create(path, "test", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	player := NewPlayer(store, &capturePublisher{}, 1, false)
	if err := player.Run(context.Background()); err == nil {
		t.Fatal("empty recording should fail")
	}
}
