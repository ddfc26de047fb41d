package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Manual line item or expense added to the invoice. Amount is nil when the
// caller did not supply one, which is a validation failure.
type LineItem struct {
	Description string
	Amount      *decimal.Decimal
}

// The computed charge of one assignment.
type AssignmentCharge struct {
	AssignmentID string
	ChargeType   ChargeType
	Quantity     decimal.Decimal
	Rate         decimal.Decimal
	Amount       decimal.Decimal
}

// InvoiceSummary is the immutable result of one aggregation run.
// Totals are exact; FormatMoney is applied only for presentation.
type InvoiceSummary struct {
	Charges          []AssignmentCharge
	AssignmentsTotal decimal.Decimal
	LineItemsTotal   decimal.Decimal
	ExpensesTotal    decimal.Decimal
	Total            decimal.Decimal
}

// FormatMoney renders an amount with two decimals, rounding half away from zero.
func FormatMoney(d decimal.Decimal) string { return d.StringFixed(2) }

// InvoiceSubmission is handed to the external persistence collaborator.
// Assignments carry their billed overrides and EmptyMiles.
type InvoiceSubmission struct {
	SubmissionID string
	DraftID      string
	Assignments  []Assignment
	LineItems    []LineItem
	Expenses     []LineItem
	Summary      InvoiceSummary
	SubmittedAt  time.Time
}
