package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cviz_messages_relayed_total",
		Help: "Bus messages recorded and fanned out, per topic.",
	}, []string{"topic"})

	decodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cviz_bus_decode_errors_total",
		Help: "Bus frames dropped because the payload was not valid JSON.",
	}, []string{"topic"})

	clientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cviz_clients_connected",
		Help: "Currently connected WebSocket clients.",
	})

	clientsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cviz_clients_dropped_total",
		Help: "Clients disconnected by the broadcaster after a delivery failure.",
	})

	topicsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cviz_topics_active",
		Help: "Topics with a running bus ingestion handle.",
	})
)
