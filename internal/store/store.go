// Package store is the in-memory system of record for the clinic. All
// mutations pass through it: it assigns ids and token numbers, freezes
// billing figures at registration, enforces the queue state machine, and
// persists the full envelope through the storage gateway after every change.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/clock"
	"github.com/clinicdesk/clinicdesk/internal/domain/expense"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
	"github.com/clinicdesk/clinicdesk/internal/domain/queue"
	"github.com/clinicdesk/clinicdesk/internal/domain/ratecard"
	"github.com/clinicdesk/clinicdesk/internal/platform/storage"
)

// ErrNotFound is returned by operations that require the record to exist.
// Plain updates and deletes on absent ids are silent no-ops instead.
var ErrNotFound = errors.New("record not found")

// ErrNotToday is returned when a queue action targets a patient from a day
// other than the current business day.
var ErrNotToday = errors.New("queue actions are limited to today's patients")

// Store owns the envelope. A single mutex guards all state; persistence
// happens under the lock, observer notification after it is released.
type Store struct {
	gw  storage.Gateway
	clk clock.Clock
	log zerolog.Logger

	mu  sync.Mutex
	env *storage.Envelope

	obsMu     sync.Mutex
	observers []func()
}

// New loads existing state through the gateway, seeding the first-run
// envelope (empty records, default rate card) when none exists yet.
func New(gw storage.Gateway, clk clock.Clock, log zerolog.Logger) (*Store, error) {
	s := &Store{
		gw:  gw,
		clk: clk,
		log: log.With().Str("component", "store").Logger(),
	}
	env, found, err := gw.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if !found {
		env = storage.NewEnvelope()
		if err := gw.Save(env); err != nil {
			return nil, fmt.Errorf("seed state: %w", err)
		}
		s.log.Info().Msg("no existing state, seeded defaults")
	}
	s.env = env
	return s, nil
}

// Subscribe registers fn to run after every committed mutation and after
// every external reload. Callbacks must not call back into the store's
// mutating methods.
func (s *Store) Subscribe(fn func()) {
	s.obsMu.Lock()
	s.observers = append(s.observers, fn)
	s.obsMu.Unlock()
}

func (s *Store) notify() {
	s.obsMu.Lock()
	obs := make([]func(), len(s.observers))
	copy(obs, s.observers)
	s.obsMu.Unlock()
	for _, fn := range obs {
		fn()
	}
}

// persistLocked saves the envelope; the caller must hold s.mu. Write
// failures are logged, never returned: the in-memory state stays the
// source of truth and the operator keeps working, with manual backup as
// the mitigation for a persistently failing disk.
func (s *Store) persistLocked() {
	if err := s.gw.Save(s.env); err != nil {
		s.log.Error().Err(err).Msg("persist state failed")
	}
}

// Watch starts a goroutine that reloads the envelope whenever the gateway
// reports an external change. Unsaved in-memory state is discarded in favor
// of the persisted document, matching last-writer-wins semantics.
func (s *Store) Watch(ctx context.Context) error {
	ch, err := s.gw.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for range ch {
			env, found, err := s.gw.Load()
			if err != nil {
				s.log.Error().Err(err).Msg("reload after external change failed")
				continue
			}
			if !found {
				continue
			}
			s.mu.Lock()
			s.env = env
			s.mu.Unlock()
			s.log.Info().Msg("state reloaded after external change")
			s.notify()
		}
	}()
	return nil
}

// AddPatient validates the registration input, assigns the next token for
// the patient's business day, copies the list price from the rate card and
// freezes the referral commission. The commission is amountReceived minus
// the study's landing price, floored at zero; with no rate card entry to
// price against it is zero.
func (s *Store) AddPatient(in patient.NewInput) (patient.Patient, error) {
	if err := in.Validate(); err != nil {
		return patient.Patient{}, err
	}

	s.mu.Lock()
	var mrp, landing int64
	item, priced := ratecard.Find(s.env.RateCard, in.TestID)
	if priced {
		mrp, landing = item.MRP, item.LandingPrice
	}
	var referralAmount int64
	if priced {
		if referralAmount = in.AmountReceived - landing; referralAmount < 0 {
			referralAmount = 0
		}
	}
	p := patient.Patient{
		ID:             uuid.NewString(),
		Date:           in.Date,
		Name:           in.Name,
		Age:            in.Age,
		Gender:         in.Gender,
		Contact:        in.Contact,
		DoctorRef:      in.DoctorRef,
		TestID:         in.TestID,
		MRP:            mrp,
		AmountReceived: in.AmountReceived,
		PaymentMode:    in.PaymentMode,
		Remarks:        in.Remarks,
		ReceivedBy:     in.ReceivedBy,
		PatientType:    in.PatientType,
		PRO:            in.PRO,
		ReferralAmount: referralAmount,
		ReferralStatus: patient.ReferralPending,
		PaidDate:       in.PaidDate,
		PaidTo:         in.PaidTo,
		TokenNumber:    queue.NextToken(s.env.Patients, in.Date),
		QueueStatus:    patient.QueueWaiting,
	}
	s.env.Patients = append(s.env.Patients, p)
	s.persistLocked()
	s.mu.Unlock()

	s.log.Info().Str("patient_id", p.ID).Int("token", p.TokenNumber).Str("date", p.Date).Msg("patient registered")
	s.notify()
	return p, nil
}

// UpdatePatient replaces the stored record with the same id, keeping the
// original token number and queue status. Unknown ids are a silent no-op.
func (s *Store) UpdatePatient(upd patient.Patient) error {
	s.mu.Lock()
	replaced := false
	for i, p := range s.env.Patients {
		if p.ID == upd.ID {
			upd.TokenNumber = p.TokenNumber
			upd.QueueStatus = p.QueueStatus
			s.env.Patients[i] = upd
			replaced = true
			break
		}
	}
	if replaced {
		s.persistLocked()
	}
	s.mu.Unlock()
	if !replaced {
		s.log.Debug().Str("patient_id", upd.ID).Msg("update for unknown patient ignored")
		return nil
	}
	s.notify()
	return nil
}

// DeletePatient removes the record. The token number it held is never
// reissued for that day; later arrivals keep counting past the gap. Unknown
// ids are a silent no-op.
func (s *Store) DeletePatient(id string) error {
	s.mu.Lock()
	removed := false
	for i, p := range s.env.Patients {
		if p.ID == id {
			s.env.Patients = append(s.env.Patients[:i], s.env.Patients[i+1:]...)
			removed = true
			break
		}
	}
	if removed {
		s.persistLocked()
	}
	s.mu.Unlock()
	if !removed {
		s.log.Debug().Str("patient_id", id).Msg("delete for unknown patient ignored")
		return nil
	}
	s.notify()
	return nil
}

// UpdateQueueStatus moves a patient through the queue state machine. Only
// patients registered on the current business day may be moved.
func (s *Store) UpdateQueueStatus(id string, to patient.QueueStatus) (patient.Patient, error) {
	today := clock.Today(s.clk)

	s.mu.Lock()
	idx := -1
	for i, p := range s.env.Patients {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return patient.Patient{}, ErrNotFound
	}
	p := s.env.Patients[idx]
	if !queue.Actionable(p, today) {
		s.mu.Unlock()
		return patient.Patient{}, ErrNotToday
	}
	next, err := queue.Transition(p.QueueStatus, to)
	if err != nil {
		s.mu.Unlock()
		return patient.Patient{}, fmt.Errorf("%w: %s to %s", err, p.QueueStatus, to)
	}
	s.env.Patients[idx].QueueStatus = next
	p = s.env.Patients[idx]
	s.persistLocked()
	s.mu.Unlock()

	s.log.Info().Str("patient_id", id).Int("token", p.TokenNumber).Str("status", string(next)).Msg("queue status changed")
	s.notify()
	return p, nil
}

// UpdateReferral settles or re-opens a referral commission. When the status
// moves to Paid with no payment date supplied, today is recorded.
func (s *Store) UpdateReferral(id string, status patient.ReferralStatus, paidDate, paidTo string) (patient.Patient, error) {
	s.mu.Lock()
	idx := -1
	for i, p := range s.env.Patients {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return patient.Patient{}, ErrNotFound
	}
	if status == patient.ReferralPaid && paidDate == "" {
		paidDate = clock.Today(s.clk)
	}
	s.env.Patients[idx].ReferralStatus = status
	s.env.Patients[idx].PaidDate = paidDate
	s.env.Patients[idx].PaidTo = paidTo
	p := s.env.Patients[idx]
	s.persistLocked()
	s.mu.Unlock()

	s.log.Info().Str("patient_id", id).Str("referral_status", string(status)).Msg("referral updated")
	s.notify()
	return p, nil
}

// AddRateItem appends a new study to the rate card.
func (s *Store) AddRateItem(studyName string, mrp, landingPrice int64) (ratecard.Item, error) {
	item := ratecard.Item{
		ID:           uuid.NewString(),
		StudyName:    studyName,
		MRP:          mrp,
		LandingPrice: landingPrice,
	}
	s.mu.Lock()
	s.env.RateCard = append(s.env.RateCard, item)
	s.persistLocked()
	s.mu.Unlock()
	s.notify()
	return item, nil
}

// UpdateRateItem replaces a rate card entry. Patients registered under the
// old prices keep their frozen figures. Unknown ids are a silent no-op.
func (s *Store) UpdateRateItem(upd ratecard.Item) error {
	s.mu.Lock()
	replaced := false
	for i, it := range s.env.RateCard {
		if it.ID == upd.ID {
			s.env.RateCard[i] = upd
			replaced = true
			break
		}
	}
	if replaced {
		s.persistLocked()
	}
	s.mu.Unlock()
	if replaced {
		s.notify()
	}
	return nil
}

// DeleteRateItem removes a study. Patient records referencing it keep their
// dangling testId and render as N/A. Unknown ids are a silent no-op.
func (s *Store) DeleteRateItem(id string) error {
	s.mu.Lock()
	removed := false
	for i, it := range s.env.RateCard {
		if it.ID == id {
			s.env.RateCard = append(s.env.RateCard[:i], s.env.RateCard[i+1:]...)
			removed = true
			break
		}
	}
	if removed {
		s.persistLocked()
	}
	s.mu.Unlock()
	if removed {
		s.notify()
	}
	return nil
}

// AddExpense validates and records an outgoing payment.
func (s *Store) AddExpense(in expense.NewInput) (expense.Expense, error) {
	if err := in.Validate(); err != nil {
		return expense.Expense{}, err
	}
	e := expense.Expense{
		ID:          uuid.NewString(),
		Date:        in.Date,
		Description: in.Description,
		Amount:      in.Amount,
		Category:    in.Category,
		PaidTo:      in.PaidTo,
	}
	s.mu.Lock()
	s.env.Expenses = append(s.env.Expenses, e)
	s.persistLocked()
	s.mu.Unlock()
	s.notify()
	return e, nil
}

// UpdateExpense replaces an expense record. Unknown ids are a silent no-op.
func (s *Store) UpdateExpense(upd expense.Expense) error {
	s.mu.Lock()
	replaced := false
	for i, e := range s.env.Expenses {
		if e.ID == upd.ID {
			s.env.Expenses[i] = upd
			replaced = true
			break
		}
	}
	if replaced {
		s.persistLocked()
	}
	s.mu.Unlock()
	if replaced {
		s.notify()
	}
	return nil
}

// DeleteExpense removes an expense record. Unknown ids are a silent no-op.
func (s *Store) DeleteExpense(id string) error {
	s.mu.Lock()
	removed := false
	for i, e := range s.env.Expenses {
		if e.ID == id {
			s.env.Expenses = append(s.env.Expenses[:i], s.env.Expenses[i+1:]...)
			removed = true
			break
		}
	}
	if removed {
		s.persistLocked()
	}
	s.mu.Unlock()
	if removed {
		s.notify()
	}
	return nil
}

// UpdateSettings replaces the clinic settings wholesale.
func (s *Store) UpdateSettings(settings storage.Settings) error {
	s.mu.Lock()
	s.env.Settings = settings
	s.persistLocked()
	s.mu.Unlock()
	s.notify()
	return nil
}

// Restore replaces patients, rate card and expenses from a backup. Missing
// expenses restore as an empty list; settings are kept from the running
// instance.
func (s *Store) Restore(env *storage.Envelope) error {
	s.mu.Lock()
	s.env.Patients = env.Patients
	s.env.RateCard = env.RateCard
	if env.Expenses != nil {
		s.env.Expenses = env.Expenses
	} else {
		s.env.Expenses = []expense.Expense{}
	}
	s.persistLocked()
	s.mu.Unlock()
	s.log.Info().Int("patients", len(env.Patients)).Int("rate_items", len(env.RateCard)).Msg("state restored from backup")
	s.notify()
	return nil
}

// ClearAll resets the clinic to factory state: no records, default rate
// card. Settings survive.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	s.env.Patients = []patient.Patient{}
	s.env.Expenses = []expense.Expense{}
	s.env.RateCard = ratecard.Default()
	s.persistLocked()
	s.mu.Unlock()
	s.log.Warn().Msg("all data cleared")
	s.notify()
	return nil
}

// Patients returns a copy of every patient record.
func (s *Store) Patients() []patient.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]patient.Patient, len(s.env.Patients))
	copy(out, s.env.Patients)
	return out
}

// RateCard returns a copy of the rate card.
func (s *Store) RateCard() []ratecard.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ratecard.Item, len(s.env.RateCard))
	copy(out, s.env.RateCard)
	return out
}

// Expenses returns a copy of every expense record.
func (s *Store) Expenses() []expense.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]expense.Expense, len(s.env.Expenses))
	copy(out, s.env.Expenses)
	return out
}

// Settings returns the current clinic settings.
func (s *Store) Settings() storage.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env.Settings
}

// Snapshot returns a deep copy of the full envelope, suitable for backup
// serialization.
func (s *Store) Snapshot() *storage.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	env := &storage.Envelope{
		Patients: make([]patient.Patient, len(s.env.Patients)),
		RateCard: make([]ratecard.Item, len(s.env.RateCard)),
		Expenses: make([]expense.Expense, len(s.env.Expenses)),
		Settings: s.env.Settings,
	}
	copy(env.Patients, s.env.Patients)
	copy(env.RateCard, s.env.RateCard)
	copy(env.Expenses, s.env.Expenses)
	return env
}
