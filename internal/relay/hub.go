// Package relay is the broker core: it bridges topic subscriptions on the
// ZeroMQ bus to WebSocket clients, with demand-driven topic lifecycle,
// latest-value caching and bounded history replay.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/cviz/relay/internal/bus"
)

// TopicState describes a topic's lifecycle position.
type TopicState int

const (
	// TopicInactive means the topic is not registered and has no ingestion handle.
	TopicInactive TopicState = iota
	// TopicActive means ingestion runs while at least one client is interested.
	TopicActive
	// TopicPinned means ingestion runs regardless of client interest.
	TopicPinned
)

func (s TopicState) String() string {
	switch s {
	case TopicActive:
		return "active"
	case TopicPinned:
		return "pinned"
	default:
		return "inactive"
	}
}

// topicEntry is one registered topic. Exactly one ingestion goroutine runs
// per entry; cancel stops it and done is closed when it has fully exited.
type topicEntry struct {
	name         string
	historyLimit int
	pinned       bool

	cancel context.CancelFunc
	done   chan struct{}

	// interested clients in registration order, for replay ordering.
	interested []*Client
}

// HubConfig tunes hub internals. Zero values get defaults.
type HubConfig struct {
	// SendBuffer is the per-client outbound queue length. A client whose
	// queue is full counts as failed and is disconnected.
	SendBuffer int
	// RedialWait is how long an ingestion handle waits before retrying
	// after a transport error.
	RedialWait time.Duration
}

const (
	defaultSendBuffer = 64
	defaultRedialWait = time.Second
)

// Hub owns the topic registry, the client registry and the message store.
// It is constructed once at process start and passed to every connection
// handler; there is no package-level shared state.
//
// All registry mutation happens under mu. Ingestion goroutines never take
// mu: they only push decoded messages into arrivals, which the broadcaster
// (Run) drains. The broadcaster is the sole writer of the store and the
// sole initiator of failure-driven disconnects.
type Hub struct {
	source bus.Source
	store  *Store
	cfg    HubConfig

	mu      sync.Mutex
	topics  map[string]*topicEntry
	clients map[*Client]struct{}

	arrivals chan Message

	// baseCtx parents every ingestion handle; baseCancel stops them all.
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// NewHub creates a hub reading from the given bus source.
func NewHub(source bus.Source, cfg HubConfig) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.RedialWait <= 0 {
		cfg.RedialWait = defaultRedialWait
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		source:     source,
		store:      NewStore(),
		cfg:        cfg,
		topics:     make(map[string]*topicEntry),
		clients:    make(map[*Client]struct{}),
		arrivals:   make(chan Message, 256),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Register creates or updates a topic. Idempotent: an existing topic gets
// its history limit updated (and is upgraded to pinned if requested)
// without its ingestion handle being restarted or duplicated.
func (h *Hub) Register(topic string, historyLimit int, pinned bool) TopicState {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.registerLocked(topic, historyLimit, pinned)
	return h.stateLocked(e)
}

// State reports the topic's current lifecycle state.
func (h *Hub) State(topic string) TopicState {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.topics[topic]
	if !ok {
		return TopicInactive
	}
	return h.stateLocked(e)
}

// CachedTopics returns the topics with at least one cached message, for the
// health endpoint.
func (h *Hub) CachedTopics() []string {
	return h.store.CachedTopics()
}

// TopicInfo is an introspection snapshot of one registered topic.
type TopicInfo struct {
	Topic        string
	State        TopicState
	HistoryLimit int
	Cached       int
	Subscribers  int
}

// Info returns the topic's snapshot, or false if it is not registered.
func (h *Hub) Info(topic string) (TopicInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.topics[topic]
	if !ok {
		return TopicInfo{}, false
	}
	info := TopicInfo{
		Topic:        topic,
		State:        h.stateLocked(e),
		HistoryLimit: e.historyLimit,
		Subscribers:  len(e.interested),
	}
	if e.historyLimit > 1 {
		info.Cached = len(h.store.History(topic))
	} else if _, ok := h.store.Latest(topic); ok {
		info.Cached = 1
	}
	return info, true
}

// Connect registers a new client session with an empty interest set.
func (h *Hub) Connect() *Client {
	c := newClient(h.cfg.SendBuffer)
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	clientsConnected.Inc()
	slog.Info("client connected", slog.String("client_id", c.ID))
	return c
}

// Disconnect removes the client from every topic it follows, tears down
// topics left without interest, and discards the session. Safe to call more
// than once.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectLocked(c)
}

// Apply executes one decoded client command.
func (h *Hub) Apply(c *Client, cmd Command) {
	switch cmd.Action {
	case ActionSubscribe:
		h.Subscribe(c, cmd.Topics, cmd.HistoryLimit)
	case ActionUnsubscribe:
		h.Unsubscribe(c, cmd.Topics)
	case ActionSetTopics:
		h.SetTopics(c, cmd.Topics, cmd.HistoryLimit)
	case ActionUnknown:
		slog.Warn("ignoring unknown command action",
			slog.String("action", cmd.RawAction),
			slog.String("client_id", c.ID))
	}
}

// Subscribe adds the client to each topic it does not already follow,
// starting ingestion for new topics, then immediately replays the cached
// state. historyLimit applies when the subscription creates the topic;
// an existing topic's limit is only ever widened, never narrowed.
// Subscribing twice to the same topic is a no-op: no duplicate replay,
// no duplicate ingestion handle.
func (h *Hub) Subscribe(c *Client, topics []string, historyLimit int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subscribeLocked(c, topics, historyLimit)
}

// Unsubscribe removes the client's interest in the given topics, tearing
// down any topic left without interest that is not pinned.
func (h *Hub) Unsubscribe(c *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	for _, topic := range topics {
		h.dropInterestLocked(c, topic)
	}
}

// SetTopics replaces the client's whole subscription set: equivalent to
// unsubscribing from everything followed by subscribing to the new list.
// Used for bulk resynchronization.
func (h *Hub) SetTopics(c *Client, topics []string, historyLimit int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	for topic := range c.interest {
		h.dropInterestLocked(c, topic)
	}
	h.subscribeLocked(c, topics, historyLimit)
}

func (h *Hub) subscribeLocked(c *Client, topics []string, historyLimit int) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	for _, topic := range topics {
		if _, ok := c.interest[topic]; ok {
			continue
		}
		e, ok := h.topics[topic]
		if !ok {
			e = h.registerLocked(topic, historyLimit, false)
		} else {
			// An existing topic keeps its configured limit; a subscriber
			// can widen it but never narrow it for everyone else.
			if historyLimit > e.historyLimit {
				e.historyLimit = historyLimit
			}
			h.ensureRunningLocked(e)
		}
		e.interested = append(e.interested, c)
		c.interest[topic] = struct{}{}
		if !h.replayLocked(c, e) {
			h.disconnectLocked(c)
			return
		}
	}
}

// Run is the broadcaster: it drains arrivals from every ingestion handle,
// records each message in the store, and fans it out to interested clients.
// Clients that fail delivery are disconnected after the fan-out. Returns
// when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.arrivals:
			h.dispatch(msg)
		}
	}
}

// Shutdown stops every ingestion handle and waits for each to exit.
func (h *Hub) Shutdown() {
	h.baseCancel()
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, e := range h.topics {
		if e.cancel != nil {
			e.cancel()
			<-e.done
		}
		h.store.Clear(name)
		delete(h.topics, name)
		topicsActive.Dec()
	}
}

func (h *Hub) dispatch(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// The topic may have been torn down while this message was in flight.
	e, ok := h.topics[msg.Topic]
	if !ok {
		return
	}

	h.store.Record(msg, e.historyLimit)
	messagesRelayed.WithLabelValues(msg.Topic).Inc()

	var failed []*Client
	for _, c := range e.interested {
		if !c.trySend(msg.Payload) {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		slog.Warn("dropping client after delivery failure",
			slog.String("client_id", c.ID),
			slog.String("topic", msg.Topic))
		clientsDropped.Inc()
		h.disconnectLocked(c)
	}
}

// replayLocked sends the topic's retained state to a newly subscribed
// client. When the history buffer is kept (limit > 1) it already contains
// the latest message, so the history alone is sent and the client never
// sees the last value twice. Reports false on delivery failure.
func (h *Hub) replayLocked(c *Client, e *topicEntry) bool {
	if e.historyLimit > 1 {
		for _, msg := range h.store.History(e.name) {
			if !c.trySend(msg.Payload) {
				return false
			}
		}
		return true
	}
	if msg, ok := h.store.Latest(e.name); ok {
		return c.trySend(msg.Payload)
	}
	return true
}

func (h *Hub) registerLocked(topic string, historyLimit int, pinned bool) *topicEntry {
	if historyLimit < 1 {
		historyLimit = 1
	}
	e, ok := h.topics[topic]
	if !ok {
		e = &topicEntry{name: topic, historyLimit: historyLimit, pinned: pinned}
		h.topics[topic] = e
	} else {
		e.historyLimit = historyLimit
		if pinned {
			e.pinned = true
		}
	}
	h.ensureRunningLocked(e)
	return e
}

// ensureRunningLocked starts the topic's ingestion handle if it is not
// already running. Never starts a second handle for the same topic.
func (h *Hub) ensureRunningLocked(e *topicEntry) {
	if e.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(h.baseCtx)
	e.cancel = cancel
	e.done = make(chan struct{})
	topicsActive.Inc()
	go h.runTopic(ctx, e.name, e.done)
	slog.Info("topic ingestion started", slog.String("topic", e.name))
}

// releaseIfUnusedLocked tears the topic down if it is not pinned and no
// client is interested: ingestion is cancelled and awaited, the store
// entries are cleared, and the registry entry is removed. No-op otherwise.
func (h *Hub) releaseIfUnusedLocked(topic string) {
	e, ok := h.topics[topic]
	if !ok || e.pinned || len(e.interested) > 0 {
		return
	}
	if e.cancel != nil {
		e.cancel()
		// Await the handle so a teardown never races an in-flight record.
		<-e.done
	}
	h.store.Clear(topic)
	delete(h.topics, topic)
	topicsActive.Dec()
	slog.Info("topic ingestion stopped", slog.String("topic", topic))
}

func (h *Hub) dropInterestLocked(c *Client, topic string) {
	if _, ok := c.interest[topic]; !ok {
		return
	}
	delete(c.interest, topic)
	if e, ok := h.topics[topic]; ok {
		for i, other := range e.interested {
			if other == c {
				e.interested = append(e.interested[:i], e.interested[i+1:]...)
				break
			}
		}
	}
	h.releaseIfUnusedLocked(topic)
}

func (h *Hub) disconnectLocked(c *Client) {
	if c.gone {
		return
	}
	if _, ok := h.clients[c]; !ok {
		return
	}
	for topic := range c.interest {
		h.dropInterestLocked(c, topic)
	}
	delete(h.clients, c)
	c.gone = true
	close(c.out)
	clientsConnected.Dec()
	slog.Info("client disconnected", slog.String("client_id", c.ID))
}

func (h *Hub) stateLocked(e *topicEntry) TopicState {
	if e.pinned {
		return TopicPinned
	}
	return TopicActive
}

// runTopic is one topic's ingestion handle. It subscribes on the bus and
// pushes decoded messages into arrivals. Transport errors are logged and
// retried; the handle only exits on cancellation, closing done last.
func (h *Hub) runTopic(ctx context.Context, topic string, done chan struct{}) {
	defer close(done)

	for {
		sub, err := h.source.Subscribe(ctx, topic)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("bus subscribe failed, retrying",
				slog.String("topic", topic), slog.Any("error", err))
			if !sleepCtx(ctx, h.cfg.RedialWait) {
				return
			}
			continue
		}

		h.pump(ctx, topic, sub)
		sub.Close()

		if ctx.Err() != nil {
			return
		}
		if !sleepCtx(ctx, h.cfg.RedialWait) {
			return
		}
	}
}

// pump receives from one subscription until cancellation or a transport
// error. Undecodable payloads are logged and dropped; the subscription
// keeps going.
func (h *Hub) pump(ctx context.Context, topic string, sub bus.Subscription) {
	for {
		env, err := sub.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("bus receive failed",
				slog.String("topic", topic), slog.Any("error", err))
			return
		}
		if !json.Valid(env.Payload) {
			decodeErrors.WithLabelValues(topic).Inc()
			slog.Warn("dropping malformed bus payload", slog.String("topic", topic))
			continue
		}

		msg := Message{Topic: env.Topic, Payload: env.Payload, ReceivedAt: time.Now()}
		select {
		case h.arrivals <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
