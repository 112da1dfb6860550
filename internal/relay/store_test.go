package relay

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"
)

func msg(topic, payload string) Message {
	return Message{Topic: topic, Payload: json.RawMessage(payload), ReceivedAt: time.Now()}
}

func TestRecordOverwritesLatest(t *testing.T) {
	s := NewStore()
	s.Record(msg("a", `{"x":1}`), 1)
	s.Record(msg("a", `{"x":2}`), 1)

	latest, ok := s.Latest("a")
	if !ok {
		t.Fatal("expected cached message")
	}
	if string(latest.Payload) != `{"x":2}` {
		t.Fatalf("latest = %s, want {\"x\":2}", latest.Payload)
	}
	if h := s.History("a"); h != nil {
		t.Fatalf("history should be empty with limit 1, got %d entries", len(h))
	}
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	s := NewStore()
	for i := 1; i <= 4; i++ {
		s.Record(msg("b", fmt.Sprintf(`{"y":%d}`, i)), 3)
	}

	h := s.History("b")
	got := make([]string, len(h))
	for i, m := range h {
		got[i] = string(m.Payload)
	}
	want := []string{`{"y":2}`, `{"y":3}`, `{"y":4}`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("history = %v, want %v", got, want)
	}

	latest, _ := s.Latest("b")
	if string(latest.Payload) != `{"y":4}` {
		t.Fatalf("latest = %s, want the newest history entry", latest.Payload)
	}
}

func TestHistoryNeverExceedsLimit(t *testing.T) {
	s := NewStore()
	for limit := 2; limit <= 5; limit++ {
		topic := fmt.Sprintf("t%d", limit)
		for i := 0; i < 20; i++ {
			s.Record(msg(topic, fmt.Sprintf(`{"n":%d}`, i)), limit)
			if got := len(s.History(topic)); got > limit {
				t.Fatalf("topic %s: history length %d exceeds limit %d", topic, got, limit)
			}
		}
	}
}

func TestClearDropsCacheAndHistory(t *testing.T) {
	s := NewStore()
	s.Record(msg("a", `{"x":1}`), 3)
	s.Clear("a")

	if _, ok := s.Latest("a"); ok {
		t.Fatal("expected no cached message after Clear")
	}
	if h := s.History("a"); h != nil {
		t.Fatal("expected no history after Clear")
	}
}

func TestCachedTopicsSorted(t *testing.T) {
	s := NewStore()
	s.Record(msg("zebra", `{}`), 1)
	s.Record(msg("alpha", `{}`), 1)

	got := s.CachedTopics()
	want := []string{"alpha", "zebra"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CachedTopics = %v, want %v", got, want)
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Record(msg("a", `{"x":1}`), 3)
	s.Record(msg("a", `{"x":2}`), 3)

	h := s.History("a")
	h[0] = msg("a", `{"mutated":true}`)

	if string(s.History("a")[0].Payload) != `{"x":1}` {
		t.Fatal("History must return a copy, not the internal buffer")
	}
}
