// Package expense defines clinic expense records.
package expense

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Category buckets an expense for reporting.
type Category string

const (
	CategoryRefreshments   Category = "Refreshments"
	CategoryOfficeSupplies Category = "Office Supplies"
	CategoryMaintenance    Category = "Maintenance"
	CategoryMiscellaneous  Category = "Miscellaneous"
)

// Expense is an independent outgoing payment. It participates only in
// net-income aggregation and has no links to patient records.
type Expense struct {
	ID          string   `json:"id"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Amount      int64    `json:"amount"`
	Category    Category `json:"category"`
	PaidTo      string   `json:"paidTo"`
}

// NewInput is the expense entry form payload.
type NewInput struct {
	Date        string   `json:"date" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Amount      int64    `json:"amount" validate:"gt=0"`
	Category    Category `json:"category" validate:"required,oneof=Refreshments 'Office Supplies' Maintenance Miscellaneous"`
	PaidTo      string   `json:"paidTo"`
}

var validate = validator.New()

// Validate enforces the form-level rules before the store is touched.
func (in *NewInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid expense input: %w", err)
	}
	return nil
}
