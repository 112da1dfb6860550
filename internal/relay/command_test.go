package relay

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Command
	}{
		{
			name: "subscribe with topic list",
			in:   `{"action":"subscribe","topics":["a","b"],"history_limit":3}`,
			want: Command{Action: ActionSubscribe, RawAction: "subscribe", Topics: []string{"a", "b"}, HistoryLimit: 3},
		},
		{
			name: "single topic string is normalized to a list",
			in:   `{"action":"subscribe","topics":"a"}`,
			want: Command{Action: ActionSubscribe, RawAction: "subscribe", Topics: []string{"a"}, HistoryLimit: 1},
		},
		{
			name: "history_limit defaults to 1",
			in:   `{"action":"unsubscribe","topics":["a"]}`,
			want: Command{Action: ActionUnsubscribe, RawAction: "unsubscribe", Topics: []string{"a"}, HistoryLimit: 1},
		},
		{
			name: "history_limit below 1 is clamped",
			in:   `{"action":"subscribe","topics":["a"],"history_limit":0}`,
			want: Command{Action: ActionSubscribe, RawAction: "subscribe", Topics: []string{"a"}, HistoryLimit: 1},
		},
		{
			name: "set_topics",
			in:   `{"action":"set_topics","topics":["a"],"history_limit":2}`,
			want: Command{Action: ActionSetTopics, RawAction: "set_topics", Topics: []string{"a"}, HistoryLimit: 2},
		},
		{
			name: "unrecognized action maps to unknown",
			in:   `{"action":"dance","topics":["a"]}`,
			want: Command{Action: ActionUnknown, RawAction: "dance", Topics: []string{"a"}, HistoryLimit: 1},
		},
		{
			name: "empty topic names are dropped",
			in:   `{"action":"subscribe","topics":["a","",""]}`,
			want: Command{Action: ActionSubscribe, RawAction: "subscribe", Topics: []string{"a"}, HistoryLimit: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand([]byte(tt.in))
			if err != nil {
				t.Fatalf("ParseCommand(%s) error: %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseCommand(%s) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseCommandMalformed(t *testing.T) {
	malformed := []string{
		`not json at all`,
		`{"action":"subscribe","topics":42}`,
		`{"action":"subscribe","topics":[1,2]}`,
	}
	for _, in := range malformed {
		if _, err := ParseCommand([]byte(in)); err == nil {
			t.Errorf("ParseCommand(%s) should fail", in)
		}
	}
}
