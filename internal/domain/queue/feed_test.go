package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/clock"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
	"github.com/clinicdesk/clinicdesk/internal/platform/websocket"
)

type stubSource struct {
	patients []patient.Patient
}

func (s *stubSource) Patients() []patient.Patient { return s.patients }

func TestFeedPublishBroadcastsAndAlertsOnce(t *testing.T) {
	dayTime, _ := time.Parse(clock.DayFormat, day)
	clk := clock.Fixed{T: dayTime}

	src := &stubSource{patients: []patient.Patient{
		visit("a", 1, patient.QueueInProgress),
		visit("b", 2, patient.QueueWaiting),
	}}
	hub := websocket.NewHub(zerolog.Nop())
	client := &websocket.Client{ID: "display", Send: make(chan []byte, 4)}
	hub.Register(client)

	feed := NewFeed(src, hub, clk, zerolog.Nop())
	feed.Publish()

	var ev websocket.Event
	select {
	case raw := <-client.Send:
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
	default:
		t.Fatal("no broadcast after Publish")
	}
	if ev.Type != "queue" {
		t.Fatalf("event type = %q", ev.Type)
	}

	var payload FeedPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if len(payload.Alerts) != 1 || payload.Alerts[0].ID != "a" {
		t.Fatalf("alerts = %+v, want [a]", payload.Alerts)
	}
	if len(payload.Serving) != 1 || len(payload.Waiting) != 1 {
		t.Fatalf("partitions = %+v", payload)
	}

	// Unchanged state: broadcast repeats but the alert does not.
	feed.Publish()
	raw := <-client.Send
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Alerts) != 0 {
		t.Fatalf("repeat publish re-alerted: %+v", payload.Alerts)
	}
}
