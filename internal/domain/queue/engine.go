// Package queue implements the token-queue engine: date-scoped token
// assignment, the queue-status state machine, and the live display
// partitions consumed by the waiting-room screen.
package queue

import (
	"errors"
	"sort"

	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
)

// ErrInvalidTransition is returned when a queue-status change is not allowed
// by the state machine.
var ErrInvalidTransition = errors.New("invalid queue transition")

// NextToken computes the token number for a new registration on the given
// business day: one more than the highest token already issued for that day,
// starting at 1. Tokens on other days never influence the result. Deleted
// patients leave permanent gaps; the sequence is never renumbered.
func NextToken(patients []patient.Patient, date string) int {
	max := 0
	for _, p := range patients {
		if p.Date == date && p.TokenNumber > max {
			max = p.TokenNumber
		}
	}
	return max + 1
}

// CanTransition reports whether the state machine allows moving a patient
// from one queue status to another. Call moves Waiting to In Progress,
// Finish moves In Progress to Completed, and Revert moves either non-waiting
// state back to Waiting. Skipping straight from Waiting to Completed is
// never allowed.
func CanTransition(from, to patient.QueueStatus) bool {
	switch from {
	case patient.QueueWaiting:
		return to == patient.QueueInProgress
	case patient.QueueInProgress:
		return to == patient.QueueCompleted || to == patient.QueueWaiting
	case patient.QueueCompleted:
		return to == patient.QueueWaiting
	}
	return false
}

// Transition validates and returns the new status, or ErrInvalidTransition.
func Transition(from, to patient.QueueStatus) (patient.QueueStatus, error) {
	if !CanTransition(from, to) {
		return from, ErrInvalidTransition
	}
	return to, nil
}

// Actionable reports whether queue actions should be offered for a patient.
// Transitions are only exposed for the current business day; historical
// records are read-only in the UI. This is a display policy, so it is
// surfaced as a flag rather than enforced by Transition.
func Actionable(p patient.Patient, today string) bool {
	return p.Date == today
}

// Partitions holds the live display split of today's queue.
type Partitions struct {
	NowServing []patient.Patient `json:"nowServing"`
	Waiting    []patient.Patient `json:"waiting"`
}

// Partition splits today's patients into the now-serving and waiting sets,
// each ordered by token number ascending.
func Partition(patients []patient.Patient, today string) Partitions {
	parts := Partitions{
		NowServing: []patient.Patient{},
		Waiting:    []patient.Patient{},
	}
	for _, p := range patients {
		if p.Date != today {
			continue
		}
		switch p.QueueStatus {
		case patient.QueueInProgress:
			parts.NowServing = append(parts.NowServing, p)
		case patient.QueueWaiting:
			parts.Waiting = append(parts.Waiting, p)
		}
	}
	byToken := func(ps []patient.Patient) {
		sort.Slice(ps, func(i, j int) bool { return ps[i].TokenNumber < ps[j].TokenNumber })
	}
	byToken(parts.NowServing)
	byToken(parts.Waiting)
	return parts
}

// AlertTracker detects entries that newly appeared in the now-serving set
// since the previous observation, compared by patient id. The detection is
// edge-triggered: an entry that stays in progress across repeated
// observations fires exactly once, on the observation where it first
// appears.
type AlertTracker struct {
	prev map[string]struct{}
}

// NewAlertTracker returns a tracker with an empty previous snapshot, so the
// first observation reports every current entry as new.
func NewAlertTracker() *AlertTracker {
	return &AlertTracker{prev: make(map[string]struct{})}
}

// Observe records the current now-serving set and returns the patients that
// were absent from the previous snapshot.
func (t *AlertTracker) Observe(nowServing []patient.Patient) []patient.Patient {
	var appeared []patient.Patient
	next := make(map[string]struct{}, len(nowServing))
	for _, p := range nowServing {
		next[p.ID] = struct{}{}
		if _, seen := t.prev[p.ID]; !seen {
			appeared = append(appeared, p)
		}
	}
	t.prev = next
	return appeared
}
