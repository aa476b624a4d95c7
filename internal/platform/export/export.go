// Package export renders tabular datasets as CSV downloads. The escaping
// matches the files the clinic's older spreadsheets were built from: a cell
// is quoted only when it contains a comma or a quote, quotes are doubled,
// and rows are joined with bare newlines.
package export

import (
	"strconv"
	"strings"

	"github.com/clinicdesk/clinicdesk/internal/domain/billing"
	"github.com/clinicdesk/clinicdesk/internal/domain/expense"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
	"github.com/clinicdesk/clinicdesk/internal/domain/ratecard"
)

func escape(cell string) string {
	if strings.ContainsAny(cell, ",\"") {
		return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
	}
	return cell
}

// CSV renders the header and rows. An empty dataset produces just the
// header line.
func CSV(header []string, rows [][]string) string {
	var b strings.Builder
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, join(header))
	for _, row := range rows {
		lines = append(lines, join(row))
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

func join(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = escape(c)
	}
	return strings.Join(escaped, ",")
}

func rupees(v int64) string { return strconv.FormatInt(v, 10) }

// Patients renders the patient register. Study names are resolved against
// the current rate card, with deleted studies shown as N/A.
func Patients(ps []patient.Patient, rc []ratecard.Item) string {
	header := []string{"Token", "Date", "Name", "Age", "Gender", "Contact", "Doctor Ref", "Study", "MRP", "Amount Received", "Payment Mode", "Patient Type", "Queue Status", "Received By", "Remarks"}
	rows := make([][]string, 0, len(ps))
	for _, p := range ps {
		rows = append(rows, []string{
			strconv.Itoa(p.TokenNumber),
			p.Date,
			p.Name,
			strconv.Itoa(p.Age),
			p.Gender,
			p.Contact,
			p.DoctorRef,
			ratecard.StudyName(rc, p.TestID),
			rupees(p.MRP),
			rupees(p.AmountReceived),
			string(p.PaymentMode),
			string(p.PatientType),
			string(p.QueueStatus),
			p.ReceivedBy,
			p.Remarks,
		})
	}
	return CSV(header, rows)
}

// Billing renders the billing register for a range, one row per visit.
func Billing(ps []patient.Patient, rc []ratecard.Item, r billing.DateRange) string {
	header := []string{"Date", "Name", "Study", "MRP", "Amount Received", "Pending", "Payment Mode"}
	rows := [][]string{}
	for _, p := range ps {
		if !r.Contains(p.Date) {
			continue
		}
		rows = append(rows, []string{
			p.Date,
			p.Name,
			ratecard.StudyName(rc, p.TestID),
			rupees(p.MRP),
			rupees(p.AmountReceived),
			rupees(p.MRP - p.AmountReceived),
			string(p.PaymentMode),
		})
	}
	return CSV(header, rows)
}

// Expenses renders the expense book.
func Expenses(es []expense.Expense) string {
	header := []string{"Date", "Description", "Category", "Amount", "Paid To"}
	rows := make([][]string, 0, len(es))
	for _, e := range es {
		rows = append(rows, []string{e.Date, e.Description, string(e.Category), rupees(e.Amount), e.PaidTo})
	}
	return CSV(header, rows)
}

// Referrals renders the commission ledger for the given (already filtered)
// referral patients.
func Referrals(ps []patient.Patient) string {
	header := []string{"Date", "Patient", "Referred By", "Commission", "Status", "Paid Date", "Paid To"}
	rows := make([][]string, 0, len(ps))
	for _, p := range ps {
		rows = append(rows, []string{p.Date, p.Name, p.PRO, rupees(p.ReferralAmount), string(p.ReferralStatus), p.PaidDate, p.PaidTo})
	}
	return CSV(header, rows)
}

// RateCard renders the study catalogue.
func RateCard(items []ratecard.Item) string {
	header := []string{"Study Name", "MRP", "Landing Price"}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{it.StudyName, rupees(it.MRP), rupees(it.LandingPrice)})
	}
	return CSV(header, rows)
}
