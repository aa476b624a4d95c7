package queue

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/clock"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
	"github.com/clinicdesk/clinicdesk/internal/platform/websocket"
)

// FeedPayload is the websocket frame body pushed to displays on every store
// change: the current partitions plus the patients whose call should trigger
// the audible alert.
type FeedPayload struct {
	Date    string            `json:"date"`
	Alerts  []patient.Patient `json:"alerts"`
	Serving []patient.Patient `json:"nowServing"`
	Waiting []patient.Patient `json:"waiting"`
}

// Feed recomputes the queue view on every store change and broadcasts it
// through the websocket hub. The alert tracker lives here so the
// edge-trigger survives across broadcasts.
type Feed struct {
	src Source
	hub *websocket.Hub
	clk clock.Clock
	log zerolog.Logger

	mu      sync.Mutex
	tracker *AlertTracker
}

// NewFeed builds the live feed. Call Publish once after construction to
// push the initial state, then wire Publish into the store's change
// notifications.
func NewFeed(src Source, hub *websocket.Hub, clk clock.Clock, log zerolog.Logger) *Feed {
	return &Feed{
		src:     src,
		hub:     hub,
		clk:     clk,
		log:     log.With().Str("component", "queue-feed").Logger(),
		tracker: NewAlertTracker(),
	}
}

// Publish recomputes the partitions, runs alert detection and broadcasts
// the result to every connected display.
func (f *Feed) Publish() {
	today := clock.Today(f.clk)
	parts := Partition(f.src.Patients(), today)

	f.mu.Lock()
	alerts := f.tracker.Observe(parts.NowServing)
	f.mu.Unlock()
	if alerts == nil {
		alerts = []patient.Patient{}
	}

	payload := FeedPayload{
		Date:    today,
		Alerts:  alerts,
		Serving: parts.NowServing,
		Waiting: parts.Waiting,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		f.log.Error().Err(err).Msg("marshal queue payload")
		return
	}
	f.hub.BroadcastAll(websocket.Event{
		Type:      "queue",
		Timestamp: time.Now(),
		Data:      data,
	})
}
