// Package referral computes commission listings and settlement totals for
// referral patients.
package referral

import (
	"sort"

	"github.com/clinicdesk/clinicdesk/internal/domain/billing"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
)

// Filter narrows the referral listing. Zero values match everything.
type Filter struct {
	PRO    string
	Status patient.ReferralStatus
	Range  *billing.DateRange
}

func (f Filter) matches(p patient.Patient) bool {
	if p.PatientType != patient.TypeReferral {
		return false
	}
	if f.PRO != "" && p.PRO != f.PRO {
		return false
	}
	if f.Status != "" && p.ReferralStatus != f.Status {
		return false
	}
	if f.Range != nil && !f.Range.Contains(p.Date) {
		return false
	}
	return true
}

// List returns the referral patients matching the filter, newest visit
// first.
func List(patients []patient.Patient, f Filter) []patient.Patient {
	out := []patient.Patient{}
	for _, p := range patients {
		if f.matches(p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// Totals are the settlement headline figures. Pending includes partially
// settled commissions; a commission counts as paid only once fully settled.
type Totals struct {
	TotalPending int64 `json:"totalPending"`
	TotalPaid    int64 `json:"totalPaid"`
	Count        int   `json:"count"`
}

// Summarize folds the matching referral patients into settlement totals.
func Summarize(patients []patient.Patient, f Filter) Totals {
	var t Totals
	for _, p := range patients {
		if !f.matches(p) {
			continue
		}
		t.Count++
		switch p.ReferralStatus {
		case patient.ReferralPaid:
			t.TotalPaid += p.ReferralAmount
		case patient.ReferralPending, patient.ReferralPartial:
			t.TotalPending += p.ReferralAmount
		}
	}
	return t
}

// Parties returns the unique non-empty referring parties, sorted.
func Parties(patients []patient.Patient) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, p := range patients {
		if p.PatientType != patient.TypeReferral || p.PRO == "" {
			continue
		}
		if _, ok := seen[p.PRO]; ok {
			continue
		}
		seen[p.PRO] = struct{}{}
		out = append(out, p.PRO)
	}
	sort.Strings(out)
	return out
}
