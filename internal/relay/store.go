package relay

import (
	"sort"
	"sync"
)

// Store holds the latest message per topic plus a bounded FIFO history.
// The broadcaster is the sole writer; replay readers see whole-entry
// snapshots only.
type Store struct {
	mu      sync.RWMutex
	latest  map[string]Message
	history map[string][]Message
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		latest:  make(map[string]Message),
		history: make(map[string][]Message),
	}
}

// Record overwrites the topic's cache entry. When historyLimit > 1 the
// message is also appended to the history buffer, evicting the oldest
// entries beyond the limit. With historyLimit == 1 the cache alone suffices
// and no buffer is kept.
func (s *Store) Record(msg Message, historyLimit int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest[msg.Topic] = msg

	if historyLimit > 1 {
		h := append(s.history[msg.Topic], msg)
		if excess := len(h) - historyLimit; excess > 0 {
			h = h[excess:]
		}
		s.history[msg.Topic] = h
	} else {
		delete(s.history, msg.Topic)
	}
}

// Latest returns the topic's cached message, if any.
func (s *Store) Latest(topic string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.latest[topic]
	return msg, ok
}

// History returns a copy of the topic's retained messages in arrival order.
func (s *Store) History(topic string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[topic]
	if len(h) == 0 {
		return nil
	}
	out := make([]Message, len(h))
	copy(out, h)
	return out
}

// Clear drops the cache entry and history buffer for a torn-down topic.
func (s *Store) Clear(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.latest, topic)
	delete(s.history, topic)
}

// CachedTopics returns a sorted snapshot of topics with at least one cached
// message, for the health endpoint.
func (s *Store) CachedTopics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	topics := make([]string, 0, len(s.latest))
	for topic := range s.latest {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}
