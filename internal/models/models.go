package models

// ErrorResponse is the generic error body for API endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status string `json:"status"`
}

// TopicsResponse lists topics that currently hold at least one cached message.
type TopicsResponse struct {
	Topics []string `json:"topics"`
}

// TopicInfoResponse is the introspection snapshot for a single topic.
type TopicInfoResponse struct {
	Topic        string `json:"topic"`
	State        string `json:"state"`
	HistoryLimit int    `json:"history_limit"`
	Cached       int    `json:"cached"`
	Subscribers  int    `json:"subscribers"`
}
