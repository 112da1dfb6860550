package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cviz/relay/internal/bus"
)

// Recorder captures bus traffic for a set of topic filters into a Store.
// An empty filter list records every topic.
type Recorder struct {
	source bus.Source
	store  *Store
	topics []string

	// RedialWait is how long to wait before retrying a failed subscription.
	RedialWait time.Duration
}

// New creates a Recorder writing into store.
func New(source bus.Source, store *Store, topics []string) *Recorder {
	return &Recorder{source: source, store: store, topics: topics, RedialWait: time.Second}
}

// Run records until ctx is cancelled, then stamps the session metadata.
// Returns the number of messages captured.
func (r *Recorder) Run(ctx context.Context) (int, error) {
	filters := r.topics
	if len(filters) == 0 {
		// Empty subscription filter matches every topic.
		filters = []string{""}
	}

	envs := make(chan bus.Envelope, 64)
	var wg sync.WaitGroup
	for _, filter := range filters {
		wg.Add(1)
		go func(filter string) {
			defer wg.Done()
			r.capture(ctx, filter, envs)
		}(filter)
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			if err := r.store.Finish(); err != nil {
				return count, err
			}
			return count, nil
		case env := <-envs:
			if err := r.store.Append(env.Topic, env.Payload, time.Now()); err != nil {
				slog.Error("failed to store message",
					slog.String("topic", env.Topic), slog.Any("error", err))
				continue
			}
			count++
			if count%100 == 0 {
				slog.Info("recording progress", slog.Int("messages", count))
			}
		}
	}
}

func (r *Recorder) capture(ctx context.Context, filter string, envs chan<- bus.Envelope) {
	for {
		sub, err := r.source.Subscribe(ctx, filter)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("bus subscribe failed, retrying",
				slog.String("filter", filter), slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.RedialWait):
			}
			continue
		}

		for {
			env, err := sub.Recv(ctx)
			if err != nil {
				break
			}
			select {
			case envs <- env:
			case <-ctx.Done():
				sub.Close()
				return
			}
		}
		sub.Close()
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.RedialWait):
		}
	}
}
