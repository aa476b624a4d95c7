package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/clock"
	"github.com/clinicdesk/clinicdesk/internal/domain/expense"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
	"github.com/clinicdesk/clinicdesk/internal/domain/queue"
	"github.com/clinicdesk/clinicdesk/internal/platform/storage"
)

// memGateway is an in-memory storage.Gateway for tests. Save stores a deep
// copy so later store mutations cannot leak into the "persisted" document.
type memGateway struct {
	env     *storage.Envelope
	saves   int
	saveErr error
	change  chan struct{}
}

func newMemGateway() *memGateway {
	return &memGateway{change: make(chan struct{}, 1)}
}

func (g *memGateway) Load() (*storage.Envelope, bool, error) {
	if g.env == nil {
		return nil, false, nil
	}
	raw, err := json.Marshal(g.env)
	if err != nil {
		return nil, false, err
	}
	var env storage.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, err
	}
	return &env, true, nil
}

func (g *memGateway) Save(env *storage.Envelope) error {
	if g.saveErr != nil {
		return g.saveErr
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	var cp storage.Envelope
	if err := json.Unmarshal(raw, &cp); err != nil {
		return err
	}
	g.env = &cp
	g.saves++
	return nil
}

func (g *memGateway) Watch(ctx context.Context) (<-chan struct{}, error) {
	return g.change, nil
}

func (g *memGateway) Close() error { return nil }

const testDay = "2025-03-10"

func testClock() clock.Clock {
	t, _ := time.Parse(clock.DayFormat, testDay)
	return clock.Fixed{T: t}
}

func newTestStore(t *testing.T) (*Store, *memGateway) {
	t.Helper()
	gw := newMemGateway()
	s, err := New(gw, testClock(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, gw
}

func registration(date string) patient.NewInput {
	return patient.NewInput{
		Date:           date,
		Name:           "Test Patient",
		Age:            30,
		Gender:         "Female",
		Contact:        "9876543210",
		TestID:         "1",
		AmountReceived: 1000,
		PaymentMode:    patient.PaymentCash,
		PatientType:    patient.TypeDirect,
	}
}

func TestFirstRunSeedsDefaults(t *testing.T) {
	s, gw := newTestStore(t)
	if gw.saves != 1 {
		t.Fatalf("expected one seed save, got %d", gw.saves)
	}
	if len(s.Patients()) != 0 {
		t.Fatal("expected no patients on first run")
	}
	if len(s.RateCard()) != 4 {
		t.Fatalf("expected default rate card, got %d items", len(s.RateCard()))
	}
}

func TestAddPatientAssignsSequentialTokens(t *testing.T) {
	s, _ := newTestStore(t)
	for want := 1; want <= 3; want++ {
		p, err := s.AddPatient(registration(testDay))
		if err != nil {
			t.Fatalf("AddPatient: %v", err)
		}
		if p.TokenNumber != want {
			t.Fatalf("token = %d, want %d", p.TokenNumber, want)
		}
		if p.QueueStatus != patient.QueueWaiting {
			t.Fatalf("new patient status = %q, want Waiting", p.QueueStatus)
		}
	}
}

func TestTokensScopedPerDay(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.AddPatient(registration(testDay)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddPatient(registration(testDay)); err != nil {
		t.Fatal(err)
	}
	p, err := s.AddPatient(registration("2025-03-11"))
	if err != nil {
		t.Fatal(err)
	}
	if p.TokenNumber != 1 {
		t.Fatalf("different day should restart at 1, got %d", p.TokenNumber)
	}
}

func TestDeleteLeavesTokenGap(t *testing.T) {
	s, _ := newTestStore(t)
	var ids []string
	for i := 0; i < 3; i++ {
		p, err := s.AddPatient(registration(testDay))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, p.ID)
	}
	if err := s.DeletePatient(ids[1]); err != nil {
		t.Fatalf("DeletePatient: %v", err)
	}
	p, err := s.AddPatient(registration(testDay))
	if err != nil {
		t.Fatal(err)
	}
	if p.TokenNumber != 4 {
		t.Fatalf("token after delete = %d, want 4 (gaps are never reused)", p.TokenNumber)
	}
}

func TestAddPatientFreezesBilling(t *testing.T) {
	s, _ := newTestStore(t)

	in := registration(testDay)
	in.TestID = "2" // USG KUB: mrp 1200, landing 1000
	in.AmountReceived = 1150
	in.PatientType = patient.TypeReferral
	in.PRO = "Dr. Singh"
	p, err := s.AddPatient(in)
	if err != nil {
		t.Fatal(err)
	}
	if p.MRP != 1200 {
		t.Fatalf("mrp = %d, want 1200 copied from rate card", p.MRP)
	}
	if p.ReferralAmount != 150 {
		t.Fatalf("referral amount = %d, want 150", p.ReferralAmount)
	}
	if p.ReferralStatus != patient.ReferralPending {
		t.Fatalf("referral status = %q, want Pending", p.ReferralStatus)
	}

	// Commission never goes negative.
	in.AmountReceived = 500
	p, err = s.AddPatient(in)
	if err != nil {
		t.Fatal(err)
	}
	if p.ReferralAmount != 0 {
		t.Fatalf("referral amount = %d, want 0 when received below landing", p.ReferralAmount)
	}

	// The figure is frozen for every patient type; aggregates scope to
	// referral patients at read time.
	in.PatientType = patient.TypeDirect
	in.AmountReceived = 5000
	p, err = s.AddPatient(in)
	if err != nil {
		t.Fatal(err)
	}
	if p.ReferralAmount != 4000 {
		t.Fatalf("direct patient referral amount = %d, want 4000", p.ReferralAmount)
	}
}

func TestAddPatientDanglingStudyFreezesZero(t *testing.T) {
	s, _ := newTestStore(t)

	// The study was deleted between form load and submit. With no landing
	// price to subtract, the commission is zero, not the full payment.
	in := registration(testDay)
	in.TestID = "missing"
	in.AmountReceived = 1000
	in.PatientType = patient.TypeReferral
	in.PRO = "Dr. Singh"
	p, err := s.AddPatient(in)
	if err != nil {
		t.Fatal(err)
	}
	if p.MRP != 0 {
		t.Fatalf("mrp for unknown study = %d, want 0", p.MRP)
	}
	if p.ReferralAmount != 0 {
		t.Fatalf("referral amount for unknown study = %d, want 0", p.ReferralAmount)
	}
}

func TestFrozenFiguresSurviveRateCardEdits(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.AddPatient(registration(testDay))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRateItem("1"); err != nil {
		t.Fatal(err)
	}
	got := s.Patients()[0]
	if got.MRP != p.MRP || got.TestID != "1" {
		t.Fatalf("patient record changed after rate card delete: %+v", got)
	}
}

func TestQueueTransitions(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.AddPatient(registration(testDay))
	if err != nil {
		t.Fatal(err)
	}

	// Waiting straight to Completed is forbidden.
	if _, err := s.UpdateQueueStatus(p.ID, patient.QueueCompleted); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Fatalf("Waiting->Completed err = %v, want ErrInvalidTransition", err)
	}

	for _, step := range []patient.QueueStatus{
		patient.QueueInProgress, // call
		patient.QueueCompleted,  // finish
		patient.QueueWaiting,    // revert
	} {
		got, err := s.UpdateQueueStatus(p.ID, step)
		if err != nil {
			t.Fatalf("transition to %s: %v", step, err)
		}
		if got.QueueStatus != step {
			t.Fatalf("status = %q, want %q", got.QueueStatus, step)
		}
	}

	if _, err := s.UpdateQueueStatus("nope", patient.QueueInProgress); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id err = %v, want ErrNotFound", err)
	}
}

func TestQueueActionsRejectOtherDays(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.AddPatient(registration("2025-03-09"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateQueueStatus(p.ID, patient.QueueInProgress); !errors.Is(err, ErrNotToday) {
		t.Fatalf("err = %v, want ErrNotToday", err)
	}
}

func TestUpdatePatientPreservesTokenAndQueue(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.AddPatient(registration(testDay))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateQueueStatus(p.ID, patient.QueueInProgress); err != nil {
		t.Fatal(err)
	}

	upd := p
	upd.Name = "Renamed"
	upd.TokenNumber = 99
	upd.QueueStatus = patient.QueueCompleted
	if err := s.UpdatePatient(upd); err != nil {
		t.Fatal(err)
	}

	got := s.Patients()[0]
	if got.Name != "Renamed" {
		t.Fatalf("name = %q, want Renamed", got.Name)
	}
	if got.TokenNumber != p.TokenNumber {
		t.Fatalf("token = %d, edits must not change it", got.TokenNumber)
	}
	if got.QueueStatus != patient.QueueInProgress {
		t.Fatalf("queue status = %q, edits must not change it", got.QueueStatus)
	}
}

func TestMutationsOnAbsentIDsAreNoOps(t *testing.T) {
	s, gw := newTestStore(t)
	before := gw.saves
	if err := s.UpdatePatient(patient.Patient{ID: "ghost"}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeletePatient("ghost"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteExpense("ghost"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRateItem("ghost"); err != nil {
		t.Fatal(err)
	}
	if gw.saves != before {
		t.Fatalf("no-op mutations persisted: %d saves", gw.saves-before)
	}
}

func TestUpdateReferralDefaultsPaidDate(t *testing.T) {
	s, _ := newTestStore(t)
	in := registration(testDay)
	in.PatientType = patient.TypeReferral
	in.PRO = "Dr. Singh"
	p, err := s.AddPatient(in)
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.UpdateReferral(p.ID, patient.ReferralPaid, "", "Accounts")
	if err != nil {
		t.Fatal(err)
	}
	if got.ReferralStatus != patient.ReferralPaid {
		t.Fatalf("status = %q, want Paid", got.ReferralStatus)
	}
	if got.PaidDate != testDay {
		t.Fatalf("paidDate = %q, want today (%s)", got.PaidDate, testDay)
	}
	if got.PaidTo != "Accounts" {
		t.Fatalf("paidTo = %q", got.PaidTo)
	}
}

func TestRestoreDefaultsMissingExpenses(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.AddExpense(expenseInput()); err != nil {
		t.Fatal(err)
	}

	backup := storage.NewEnvelope()
	backup.Patients = []patient.Patient{{ID: "b1", Date: testDay, Name: "From Backup", TokenNumber: 1, QueueStatus: patient.QueueWaiting}}
	backup.Expenses = nil
	if err := s.Restore(backup); err != nil {
		t.Fatal(err)
	}

	if got := s.Patients(); len(got) != 1 || got[0].Name != "From Backup" {
		t.Fatalf("patients after restore: %+v", got)
	}
	if got := s.Expenses(); len(got) != 0 {
		t.Fatalf("expenses after restore = %d, want 0", len(got))
	}
}

func TestClearAllResetsToDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.AddPatient(registration(testDay)); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearAll(); err != nil {
		t.Fatal(err)
	}
	if len(s.Patients()) != 0 || len(s.Expenses()) != 0 {
		t.Fatal("records survived ClearAll")
	}
	if len(s.RateCard()) != 4 {
		t.Fatalf("rate card after reset = %d items, want defaults", len(s.RateCard()))
	}
}

func TestFailedPersistDoesNotBlockWork(t *testing.T) {
	s, gw := newTestStore(t)

	notified := make(chan struct{}, 1)
	s.Subscribe(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})

	// The disk starts failing. Registration still succeeds, the record is
	// visible and the queue feed is still told to refresh.
	gw.saveErr = errors.New("disk full")
	p, err := s.AddPatient(registration(testDay))
	if err != nil {
		t.Fatalf("AddPatient with failing gateway: %v", err)
	}
	if got := s.Patients(); len(got) != 1 || got[0].ID != p.ID {
		t.Fatalf("patient missing from in-memory state: %+v", got)
	}
	select {
	case <-notified:
	default:
		t.Fatal("observers not notified when persist fails")
	}

	if _, err := s.UpdateQueueStatus(p.ID, patient.QueueInProgress); err != nil {
		t.Fatalf("queue action with failing gateway: %v", err)
	}
}

func TestExternalChangeReloadsAndNotifies(t *testing.T) {
	s, gw := newTestStore(t)
	if _, err := s.AddPatient(registration(testDay)); err != nil {
		t.Fatal(err)
	}

	notified := make(chan struct{}, 1)
	s.Subscribe(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})

	// Another process rewrites the persisted document.
	ext := storage.NewEnvelope()
	ext.Patients = []patient.Patient{
		{ID: "x1", Date: testDay, Name: "External", TokenNumber: 7, QueueStatus: patient.QueueWaiting},
	}
	if err := gw.Save(ext); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	gw.change <- struct{}{}

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("no notification after external change")
	}

	got := s.Patients()
	if len(got) != 1 || got[0].ID != "x1" {
		t.Fatalf("in-memory state not replaced by persisted document: %+v", got)
	}
}

func TestLoadDemo(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.LoadDemo(); err != nil {
		t.Fatal(err)
	}
	ps := s.Patients()
	if len(ps) != 5 {
		t.Fatalf("demo patients = %d, want 5", len(ps))
	}
	for _, p := range ps {
		if p.Date != testDay {
			t.Fatalf("demo patient dated %q, want today", p.Date)
		}
	}
	if len(s.Expenses()) != 3 {
		t.Fatalf("demo expenses = %d, want 3", len(s.Expenses()))
	}
}

func expenseInput() expense.NewInput {
	return expense.NewInput{
		Date:        testDay,
		Description: "Printer Paper",
		Amount:      450,
		Category:    expense.CategoryOfficeSupplies,
		PaidTo:      "Stationery Mart",
	}
}
