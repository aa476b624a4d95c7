// Package billing holds the daily aggregation engine: pure functions that
// fold patient and expense snapshots into the figures shown on the billing
// and dashboard screens. Amounts are whole rupees kept in int64; only the
// average is a float, and only for display.
package billing

import (
	"github.com/clinicdesk/clinicdesk/internal/clock"
	"github.com/clinicdesk/clinicdesk/internal/domain/expense"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
)

// DateRange is an inclusive [From, To] span of ISO day strings. Day strings
// sort lexicographically, so string comparison is date comparison.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Today returns the single-day range for the current business day.
func Today(c clock.Clock) DateRange {
	d := clock.Today(c)
	return DateRange{From: d, To: d}
}

// ThisMonth spans the first of the current month through today.
func ThisMonth(c clock.Clock) DateRange {
	return DateRange{From: clock.FirstOfMonth(c), To: clock.Today(c)}
}

// Contains reports whether the day falls inside the range, inclusive on
// both ends.
func (r DateRange) Contains(day string) bool {
	return day >= r.From && day <= r.To
}

// Summary is the headline billing aggregate for a range.
type Summary struct {
	TotalRevenue   int64   `json:"totalRevenue"`
	TotalPatients  int     `json:"totalPatients"`
	AveragePayment float64 `json:"averagePayment"`
	PaymentPending int64   `json:"paymentPending"`
}

// Summarize folds the patients falling in the range. Revenue is the sum of
// amounts actually received. Pending is the sum of mrp minus received,
// deliberately unclamped: overpaid visits offset underpaid ones, matching
// the ledger view the clinic reconciles against. An empty range yields a
// zero average, not NaN.
func Summarize(patients []patient.Patient, r DateRange) Summary {
	var s Summary
	for _, p := range patients {
		if !r.Contains(p.Date) {
			continue
		}
		s.TotalPatients++
		s.TotalRevenue += p.AmountReceived
		s.PaymentPending += p.MRP - p.AmountReceived
	}
	if s.TotalPatients > 0 {
		s.AveragePayment = float64(s.TotalRevenue) / float64(s.TotalPatients)
	}
	return s
}

// ModeBucket is one slice of the payment-mode chart.
type ModeBucket struct {
	Mode   patient.PaymentMode `json:"mode"`
	Amount int64               `json:"amount"`
	Count  int                 `json:"count"`
}

// PaymentModeBreakdown totals received amounts per payment mode over the
// range. Every mode appears in the result, zero buckets included, so charts
// keep a stable category set.
func PaymentModeBreakdown(patients []patient.Patient, r DateRange) []ModeBucket {
	byMode := make(map[patient.PaymentMode]*ModeBucket)
	modes := patient.PaymentModes()
	out := make([]ModeBucket, len(modes))
	for i, m := range modes {
		out[i] = ModeBucket{Mode: m}
		byMode[m] = &out[i]
	}
	for _, p := range patients {
		if !r.Contains(p.Date) {
			continue
		}
		if b, ok := byMode[p.PaymentMode]; ok {
			b.Amount += p.AmountReceived
			b.Count++
		}
	}
	return out
}

// ExpenseTotal sums expenses falling in the range.
func ExpenseTotal(expenses []expense.Expense, r DateRange) int64 {
	var total int64
	for _, e := range expenses {
		if r.Contains(e.Date) {
			total += e.Amount
		}
	}
	return total
}

// DashboardStats is the front-desk landing view for today.
type DashboardStats struct {
	PatientCount   int   `json:"patientCount"`
	Revenue        int64 `json:"revenue"`
	PaymentPending int64 `json:"paymentPending"`
	WaitingCount   int   `json:"waitingCount"`
	TodaysExpenses int64 `json:"todaysExpenses"`
	NetIncome      int64 `json:"netIncome"`
}

// TodayStats computes the dashboard figures for the current business day.
func TodayStats(patients []patient.Patient, expenses []expense.Expense, c clock.Clock) DashboardStats {
	r := Today(c)
	sum := Summarize(patients, r)
	stats := DashboardStats{
		PatientCount:   sum.TotalPatients,
		Revenue:        sum.TotalRevenue,
		PaymentPending: sum.PaymentPending,
		TodaysExpenses: ExpenseTotal(expenses, r),
	}
	for _, p := range patients {
		if r.Contains(p.Date) && p.QueueStatus == patient.QueueWaiting {
			stats.WaitingCount++
		}
	}
	stats.NetIncome = stats.Revenue - stats.TodaysExpenses
	return stats
}

// RecentPatients returns the last n registrations in creation order, newest
// first. Registration order is slice order, so this is simply the tail
// reversed.
func RecentPatients(patients []patient.Patient, n int) []patient.Patient {
	out := make([]patient.Patient, 0, n)
	for i := len(patients) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, patients[i])
	}
	return out
}
