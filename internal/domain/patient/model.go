// Package patient defines the patient visit record, its enumerations and the
// validated registration input accepted at the form boundary.
package patient

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// PaymentMode is how a patient settled the bill.
type PaymentMode string

const (
	PaymentCash   PaymentMode = "Cash"
	PaymentCard   PaymentMode = "Card"
	PaymentCheck  PaymentMode = "Check"
	PaymentOnline PaymentMode = "Online"
)

// PaymentModes lists every mode in display order. Aggregations iterate this
// so charts always see the full category set, including zero buckets.
func PaymentModes() []PaymentMode {
	return []PaymentMode{PaymentCash, PaymentCard, PaymentCheck, PaymentOnline}
}

// Type classifies how the patient reached the clinic.
type Type string

const (
	TypeDirect   Type = "Direct"
	TypeReferral Type = "Referral"
	TypeCredit   Type = "Credit"
)

// ReferralStatus tracks settlement of a referral commission.
type ReferralStatus string

const (
	ReferralPending ReferralStatus = "Pending"
	ReferralPartial ReferralStatus = "Partial"
	ReferralPaid    ReferralStatus = "Paid"
)

// QueueStatus is the patient's position in the day's queue lifecycle.
type QueueStatus string

const (
	QueueWaiting    QueueStatus = "Waiting"
	QueueInProgress QueueStatus = "In Progress"
	QueueCompleted  QueueStatus = "Completed"
)

// Patient is one clinic visit/registration. JSON field names match the
// persisted envelope of the front-desk application so backups taken by older
// builds restore unchanged.
type Patient struct {
	ID             string         `json:"id"`
	Date           string         `json:"date"` // ISO day, scoping key for tokens and aggregates
	Name           string         `json:"name"`
	Age            int            `json:"age"`
	Gender         string         `json:"gender"`
	Contact        string         `json:"contact"`
	DoctorRef      string         `json:"doctorRef"`
	TestID         string         `json:"testId"` // lookup key into the rate card, may dangle
	MRP            int64          `json:"mrp"`    // list price frozen at registration
	AmountReceived int64          `json:"amountReceived"`
	PaymentMode    PaymentMode    `json:"paymentMode"`
	Remarks        string         `json:"remarks"`
	ReceivedBy     string         `json:"receivedBy"`
	PatientType    Type           `json:"patientType"`
	PRO            string         `json:"pro"` // referring party, empty for direct patients
	ReferralAmount int64          `json:"referralAmount"`
	ReferralStatus ReferralStatus `json:"referralStatus"`
	PaidDate       string         `json:"paidDate,omitempty"`
	PaidTo         string         `json:"paidTo,omitempty"`
	TokenNumber    int            `json:"tokenNumber"`
	QueueStatus    QueueStatus    `json:"queueStatus"`
}

// NewInput is the registration form payload. ID, token number, queue status,
// MRP and referral amount are assigned by the store, never by the caller.
type NewInput struct {
	Date           string         `json:"date" validate:"required"`
	Name           string         `json:"name" validate:"required"`
	Age            int            `json:"age" validate:"gte=0"`
	Gender         string         `json:"gender" validate:"required,oneof=Male Female Other"`
	Contact        string         `json:"contact" validate:"required,len=10,numeric"`
	DoctorRef      string         `json:"doctorRef"`
	TestID         string         `json:"testId" validate:"required"`
	AmountReceived int64          `json:"amountReceived" validate:"gte=0"`
	PaymentMode    PaymentMode    `json:"paymentMode" validate:"required,oneof=Cash Card Check Online"`
	Remarks        string         `json:"remarks"`
	ReceivedBy     string         `json:"receivedBy"`
	PatientType    Type           `json:"patientType" validate:"required,oneof=Direct Referral Credit"`
	PRO            string         `json:"pro"`
	PaidDate       string         `json:"paidDate"`
	PaidTo         string         `json:"paidTo"`
}

var validate = validator.New()

// Validate checks the form-level rules: required name/contact/test, a
// 10-digit numeric contact number, and non-negative amounts. The store trusts
// input that passes here.
func (in *NewInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid patient input: %w", err)
	}
	return nil
}
