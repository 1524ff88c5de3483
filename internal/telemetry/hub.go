package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/camera-remote/ccb/internal/config"
)

// Event types.
const (
	EventReady        = "ready"
	EventHeartbeat    = "heartbeat"
	EventSettings     = "settings"
	EventTimelapse    = "timelapse"
	EventAutoExposure = "autoExposure"
	EventCameraStatus = "cameraStatus"
	EventFault        = "fault"
)

// Event is one telemetry record. Payload carries the typed value for
// in-process subscribers and is never serialized.
type Event struct {
	ID      int64                  `json:"id,omitempty"`
	Type    string                 `json:"type"`
	Data    map[string]interface{} `json:"data"`
	Camera  string                 `json:"camera,omitempty"`
	Time    time.Time              `json:"ts"`
	Payload interface{}            `json:"-"`
}

// Client is an SSE connection.
type Client struct {
	ID      string
	Writer  http.ResponseWriter
	Context context.Context
	Cancel  context.CancelFunc
	LastID  int64
	Events  chan Event
	once    sync.Once
	mu      sync.Mutex
}

// subscriber is an in-process consumer registered with Attach.
type subscriber struct {
	id     string
	events chan Event
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.events) })
}

// Hub fans telemetry out to SSE clients and subscribers.
//
// Lock order: pubMu, then mu, then EventBuffer.mu, then Client.mu.
type Hub struct {
	// pubMu serializes Publish so every consumer sees increasing IDs.
	pubMu       sync.Mutex
	mu          sync.RWMutex
	cameraID    string
	nextID      int64
	clients     map[string]*Client
	subscribers map[string]*subscriber
	buffer      *EventBuffer
	snapshot    func() interface{}

	config *config.TimingConfig
	logger zerolog.Logger

	heartbeatTicker *time.Ticker
	stopHeartbeat   chan struct{}

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHub creates a hub for one camera.
func NewHub(cameraID string, timing *config.TimingConfig, logger zerolog.Logger) *Hub {
	return &Hub{
		cameraID:    cameraID,
		clients:     make(map[string]*Client),
		subscribers: make(map[string]*subscriber),
		buffer:      NewEventBuffer(timing.EventBufferSize, timing.EventBufferRetention),
		config:      timing,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// SetSnapshotSource sets the function whose result is sent in the ready
// event of every new SSE client.
func (h *Hub) SetSnapshotSource(fn func() interface{}) {
	h.mu.Lock()
	h.snapshot = fn
	h.mu.Unlock()
}

// Attach registers an in-process subscriber. The returned function
// detaches it and closes the channel. The channel is also closed when
// ctx ends or the hub stops.
func (h *Hub) Attach(ctx context.Context) (<-chan Event, func()) {
	sub := &subscriber{id: uuid.NewString(), events: make(chan Event, 64)}

	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		sub.close()
		return sub.events, func() {}
	default:
	}
	h.subscribers[sub.id] = sub
	h.mu.Unlock()

	detach := func() {
		h.mu.Lock()
		delete(h.subscribers, sub.id)
		sub.close()
		h.mu.Unlock()
	}

	go func() {
		select {
		case <-ctx.Done():
			detach()
		case <-h.done:
		}
	}()

	return sub.events, detach
}

// Subscribe streams events to an SSE client until ctx ends.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientCtx, cancel := context.WithCancel(ctx)

	lastEventID := int64(0)
	if s := r.Header.Get("Last-Event-ID"); s != "" {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			lastEventID = id
		}
	}

	client := &Client{
		ID:      uuid.NewString(),
		Writer:  w,
		Context: clientCtx,
		Cancel:  cancel,
		LastID:  lastEventID,
		Events:  make(chan Event, 100),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	if err := h.sendReadyEvent(client); err != nil {
		h.unregisterClient(client.ID)
		return fmt.Errorf("failed to send ready event: %w", err)
	}

	if lastEventID > 0 {
		for _, event := range h.buffer.GetEventsAfter(lastEventID) {
			if err := h.sendEventToClient(client, event); err != nil {
				h.unregisterClient(client.ID)
				return fmt.Errorf("failed to replay events: %w", err)
			}
		}
	}

	h.mu.Lock()
	if len(h.clients) == 1 && h.heartbeatTicker == nil {
		h.startHeartbeat()
	}
	h.mu.Unlock()

	h.logger.Debug().Str("client", client.ID).Int64("lastEventId", lastEventID).Msg("telemetry client subscribed")
	h.handleClient(client)
	return nil
}

// Publish numbers, buffers and delivers an event.
func (h *Hub) Publish(event Event) {
	select {
	case <-h.done:
		return
	default:
	}

	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.Lock()
	if event.ID == 0 {
		h.nextID++
		event.ID = h.nextID
	}
	if event.Camera == "" {
		event.Camera = h.cameraID
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	if event.Type != EventHeartbeat {
		h.buffer.AddEvent(event)
	}

	// Subscribers are closed only under h.mu, so the read lock keeps
	// their channels open while delivering.
	h.mu.RLock()
	for _, s := range h.subscribers {
		h.deliver(s, event)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case <-client.Context.Done():
			continue
		case <-h.done:
			return
		case client.Events <- event:
		case <-time.After(100 * time.Millisecond):
			h.logger.Warn().Str("client", client.ID).Int64("event", event.ID).Msg("dropping event for slow client")
		}
	}
}

// deliver hands the event to a subscriber without blocking.
func (h *Hub) deliver(s *subscriber, event Event) {
	select {
	case s.events <- event:
	default:
		h.logger.Warn().Str("subscriber", s.id).Int64("event", event.ID).Msg("dropping event for slow subscriber")
	}
}

func (h *Hub) sendReadyEvent(client *Client) error {
	h.mu.RLock()
	fn := h.snapshot
	h.mu.RUnlock()

	data := map[string]interface{}{"camera": h.cameraID}
	if fn != nil {
		data["snapshot"] = fn()
	}
	return h.sendEventToClient(client, Event{Type: EventReady, Data: data})
}

func (h *Hub) sendEventToClient(client *Client, event Event) error {
	client.mu.Lock()
	defer client.mu.Unlock()

	if event.ID > 0 {
		if _, err := fmt.Fprintf(client.Writer, "id: %d\n", event.ID); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}
	if _, err := fmt.Fprintf(client.Writer, "event: %s\n", event.Type); err != nil {
		return fmt.Errorf("failed to write event type: %w", err)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(client.Writer, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event data: %w", err)
	}

	if flusher, ok := client.Writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func (h *Hub) handleClient(client *Client) {
	defer func() {
		client.once.Do(func() { close(client.Events) })
		h.unregisterClient(client.ID)
	}()

	for {
		select {
		case <-client.Context.Done():
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			if err := h.sendEventToClient(client, event); err != nil {
				h.logger.Debug().Err(err).Str("client", client.ID).Msg("telemetry client write failed")
				return
			}
		}
	}
}

func (h *Hub) unregisterClient(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	client.Cancel()
	delete(h.clients, clientID)

	if len(h.clients) == 0 && h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
}

// startHeartbeat must be called with h.mu held.
func (h *Hub) startHeartbeat() {
	interval := h.config.HeartbeatInterval + h.config.HeartbeatJitter/2

	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	h.heartbeatTicker = ticker
	h.stopHeartbeat = stop

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ticker.C:
				h.Publish(Event{
					Type: EventHeartbeat,
					Data: map[string]interface{}{"ts": time.Now().UTC().Format(time.RFC3339)},
				})
			case <-stop:
				return
			case <-h.done:
				return
			}
		}
	}()
}

// ClientCount returns the number of SSE clients and subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) + len(h.subscribers)
}

// Stop disconnects everybody and waits for the heartbeat to exit.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		for _, c := range h.clients {
			c.Cancel()
		}
		if h.heartbeatTicker != nil {
			h.heartbeatTicker.Stop()
			h.heartbeatTicker = nil
			close(h.stopHeartbeat)
			h.stopHeartbeat = nil
		}
		for _, s := range h.subscribers {
			s.close()
		}
		h.subscribers = make(map[string]*subscriber)
		h.mu.Unlock()

		done := make(chan struct{})
		go func() {
			h.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			h.logger.Warn().Msg("telemetry hub stop timed out")
		}
	})
}

// EventBuffer keeps the most recent events for replay.
type EventBuffer struct {
	mu        sync.RWMutex
	events    []Event
	capacity  int
	retention time.Duration
}

// NewEventBuffer creates a buffer. A zero retention keeps events until
// they are pushed out by capacity.
func NewEventBuffer(capacity int, retention time.Duration) *EventBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &EventBuffer{
		events:    make([]Event, 0, capacity),
		capacity:  capacity,
		retention: retention,
	}
}

// AddEvent appends event, evicting the oldest beyond capacity.
func (b *EventBuffer) AddEvent(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)
	if len(b.events) > b.capacity {
		b.events = b.events[len(b.events)-b.capacity:]
	}
}

// GetEventsAfter returns the retained events with an ID above lastID.
func (b *EventBuffer) GetEventsAfter(lastID int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var cutoff time.Time
	if b.retention > 0 {
		cutoff = time.Now().Add(-b.retention)
	}

	var result []Event
	for _, event := range b.events {
		if event.ID <= lastID {
			continue
		}
		if !cutoff.IsZero() && !event.Time.IsZero() && event.Time.Before(cutoff) {
			continue
		}
		result = append(result, event)
	}
	return result
}

// Capacity returns the maximum number of buffered events.
func (b *EventBuffer) Capacity() int {
	return b.capacity
}

// Size returns the number of buffered events.
func (b *EventBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
