package store

import (
	"github.com/clinicdesk/clinicdesk/internal/clock"
	"github.com/clinicdesk/clinicdesk/internal/domain/expense"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
	"github.com/clinicdesk/clinicdesk/internal/domain/ratecard"
)

// LoadDemo replaces all records with a showcase dataset dated today and
// resets the rate card to defaults. Intended for demos and training, never
// for a live clinic.
func (s *Store) LoadDemo() error {
	today := clock.Today(s.clk)

	patients := []patient.Patient{
		{ID: "d1", Date: today, Name: "Rahul Sharma", Age: 45, Gender: "Male", Contact: "9876543210", DoctorRef: "Dr. Gupta", TestID: "1", MRP: 1000, AmountReceived: 1000, PaymentMode: patient.PaymentCash, Remarks: "Full payment", ReceivedBy: "Receptionist A", PatientType: patient.TypeDirect, ReferralStatus: patient.ReferralPending, TokenNumber: 1, QueueStatus: patient.QueueCompleted},
		{ID: "d2", Date: today, Name: "Priya Verma", Age: 28, Gender: "Female", Contact: "9123456789", DoctorRef: "Dr. Singh", TestID: "4", MRP: 2500, AmountReceived: 2500, PaymentMode: patient.PaymentOnline, Remarks: "Emergency scan", ReceivedBy: "Receptionist B", PatientType: patient.TypeReferral, PRO: "Dr. Singh", ReferralAmount: 300, ReferralStatus: patient.ReferralPaid, TokenNumber: 2, QueueStatus: patient.QueueInProgress},
		{ID: "d3", Date: today, Name: "Amit Patel", Age: 52, Gender: "Male", Contact: "9988776655", DoctorRef: "Dr. Khan", TestID: "2", MRP: 1200, AmountReceived: 1200, PaymentMode: patient.PaymentCash, ReceivedBy: "Receptionist A", PatientType: patient.TypeDirect, ReferralStatus: patient.ReferralPending, TokenNumber: 3, QueueStatus: patient.QueueWaiting},
		{ID: "d4", Date: today, Name: "Surbhi Jain", Age: 31, Gender: "Female", Contact: "9345678901", DoctorRef: "Dr. Mehta", TestID: "3", MRP: 900, AmountReceived: 800, PaymentMode: patient.PaymentCash, Remarks: "Discount given", ReceivedBy: "Receptionist A", PatientType: patient.TypeDirect, ReferralStatus: patient.ReferralPending, TokenNumber: 4, QueueStatus: patient.QueueWaiting},
		{ID: "d5", Date: today, Name: "Vijay Kumar", Age: 60, Gender: "Male", Contact: "9567890123", DoctorRef: "Dr. Gupta", TestID: "1", MRP: 1000, AmountReceived: 1000, PaymentMode: patient.PaymentCard, ReceivedBy: "Receptionist B", PatientType: patient.TypeDirect, ReferralStatus: patient.ReferralPending, TokenNumber: 5, QueueStatus: patient.QueueWaiting},
	}

	expenses := []expense.Expense{
		{ID: "e1", Date: today, Description: "Office Electricity Bill", Amount: 1500, Category: expense.CategoryMaintenance, PaidTo: "MP Electricity Board"},
		{ID: "e2", Date: today, Description: "Staff Tea & Coffee", Amount: 200, Category: expense.CategoryRefreshments, PaidTo: "Local Vendor"},
		{ID: "e3", Date: today, Description: "Printer Paper Ream", Amount: 450, Category: expense.CategoryOfficeSupplies, PaidTo: "Stationery Mart"},
	}

	s.mu.Lock()
	s.env.Patients = patients
	s.env.Expenses = expenses
	s.env.RateCard = ratecard.Default()
	s.persistLocked()
	s.mu.Unlock()
	s.log.Info().Msg("demo data loaded")
	s.notify()
	return nil
}
