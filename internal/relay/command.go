package relay

import (
	"encoding/json"
	"fmt"
)

// Action identifies what a client command asks for. Unrecognized action
// strings decode to ActionUnknown so the hub can log and ignore them
// uniformly without closing the connection.
type Action int

const (
	ActionUnknown Action = iota
	ActionSubscribe
	ActionUnsubscribe
	ActionSetTopics
)

func (a Action) String() string {
	switch a {
	case ActionSubscribe:
		return "subscribe"
	case ActionUnsubscribe:
		return "unsubscribe"
	case ActionSetTopics:
		return "set_topics"
	default:
		return "unknown"
	}
}

// Command is the decoded form of one inbound client frame.
type Command struct {
	Action       Action
	RawAction    string
	Topics       []string
	HistoryLimit int
}

// ParseCommand decodes a client JSON frame of the shape
//
//	{"action": "subscribe"|"unsubscribe"|"set_topics",
//	 "topics": "name" | ["name", ...],
//	 "history_limit": 3}
//
// The topics field accepts a single name or a list and is normalized to a
// list. history_limit defaults to 1 and is clamped to at least 1.
func ParseCommand(data []byte) (Command, error) {
	var raw struct {
		Action       string          `json:"action"`
		Topics       json.RawMessage `json:"topics"`
		HistoryLimit *int            `json:"history_limit"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}

	topics, err := normalizeTopics(raw.Topics)
	if err != nil {
		return Command{}, err
	}

	limit := 1
	if raw.HistoryLimit != nil && *raw.HistoryLimit > 1 {
		limit = *raw.HistoryLimit
	}

	cmd := Command{RawAction: raw.Action, Topics: topics, HistoryLimit: limit}
	switch raw.Action {
	case "subscribe":
		cmd.Action = ActionSubscribe
	case "unsubscribe":
		cmd.Action = ActionUnsubscribe
	case "set_topics":
		cmd.Action = ActionSetTopics
	default:
		cmd.Action = ActionUnknown
	}
	return cmd, nil
}

func normalizeTopics(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil, nil
		}
		return []string{single}, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("topics must be a string or list of strings")
	}

	out := list[:0]
	for _, topic := range list {
		if topic != "" {
			out = append(out, topic)
		}
	}
	return out, nil
}
