package submission

import (
	"time"

	"route-invoice-service/internal/domain"

	"github.com/shopspring/decimal"
)

// Wire form of an invoice submission. Decimals marshal as strings so no
// amount passes through a float.
type invoiceSubmitted struct {
	SubmissionID string             `json:"submission_id"`
	DraftID      string             `json:"draft_id"`
	SubmittedAt  time.Time          `json:"submitted_at"`
	Assignments  []assignmentRecord `json:"assignments"`
	LineItems    []lineItemRecord   `json:"line_items"`
	Expenses     []lineItemRecord   `json:"expenses"`
	Total        decimal.Decimal    `json:"total"`
	TotalDisplay string             `json:"total_display"`
}

type assignmentRecord struct {
	ID                  string           `json:"id"`
	ChargeType          string           `json:"charge_type"`
	ChargeValue         *decimal.Decimal `json:"charge_value"`
	BilledDistanceMiles *decimal.Decimal `json:"billed_distance_miles,omitempty"`
	BilledDurationHours *decimal.Decimal `json:"billed_duration_hours,omitempty"`
	BilledLoadRate      *decimal.Decimal `json:"billed_load_rate,omitempty"`
	EmptyMiles          *decimal.Decimal `json:"empty_miles,omitempty"`
	Amount              decimal.Decimal  `json:"amount"`
}

type lineItemRecord struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

func newInvoiceSubmitted(sub domain.InvoiceSubmission) invoiceSubmitted {
	amounts := make(map[string]decimal.Decimal, len(sub.Summary.Charges))
	for _, c := range sub.Summary.Charges {
		amounts[c.AssignmentID] = c.Amount
	}

	msg := invoiceSubmitted{
		SubmissionID: sub.SubmissionID,
		DraftID:      sub.DraftID,
		SubmittedAt:  sub.SubmittedAt.UTC(),
		Assignments:  make([]assignmentRecord, 0, len(sub.Assignments)),
		LineItems:    lineItemRecords(sub.LineItems),
		Expenses:     lineItemRecords(sub.Expenses),
		Total:        sub.Summary.Total,
		TotalDisplay: domain.FormatMoney(sub.Summary.Total),
	}

	for _, a := range sub.Assignments {
		msg.Assignments = append(msg.Assignments, assignmentRecord{
			ID:                  a.ID,
			ChargeType:          string(a.ChargeType),
			ChargeValue:         a.ChargeValue,
			BilledDistanceMiles: a.BilledDistanceMiles,
			BilledDurationHours: a.BilledDurationHours,
			BilledLoadRate:      a.BilledLoadRate,
			EmptyMiles:          a.EmptyMiles,
			Amount:              amounts[a.ID],
		})
	}

	return msg
}

func lineItemRecords(items []domain.LineItem) []lineItemRecord {
	out := make([]lineItemRecord, 0, len(items))
	for _, it := range items {
		rec := lineItemRecord{Description: it.Description}
		if it.Amount != nil {
			rec.Amount = *it.Amount
		}
		out = append(out, rec)
	}
	return out
}
