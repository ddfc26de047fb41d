package services

import (
	"fmt"

	"route-invoice-service/internal/domain"

	"github.com/shopspring/decimal"
)

// RecalculateRequest carries everything one aggregation needs. Routes are
// keyed by assignment id; a missing route counts as zero miles and hours.
type RecalculateRequest struct {
	Assignments []domain.Assignment
	Routes      map[string]domain.AssignmentRoute
	EmptyMiles  domain.EmptyMilesMap
	LineItems   []domain.LineItem
	Expenses    []domain.LineItem
}

// Recalculate prices every assignment and sums assignments, line items and
// expenses exactly. It returns a fresh summary and never mutates the request.
// Any failed check is reported and no total is produced.
func Recalculate(req RecalculateRequest) (domain.InvoiceSummary, error) {
	var errs domain.ValidationErrors

	summary := domain.InvoiceSummary{
		Charges:          make([]domain.AssignmentCharge, 0, len(req.Assignments)),
		AssignmentsTotal: decimal.Zero,
		LineItemsTotal:   decimal.Zero,
		ExpensesTotal:    decimal.Zero,
	}

	for i, a := range req.Assignments {
		charge, fieldErrs := priceAssignment(i, a, req.Routes[a.ID], req.EmptyMiles)
		if len(fieldErrs) > 0 {
			errs = append(errs, fieldErrs...)
			continue
		}
		summary.Charges = append(summary.Charges, charge)
		summary.AssignmentsTotal = summary.AssignmentsTotal.Add(charge.Amount)
	}

	var itemErrs domain.ValidationErrors
	summary.LineItemsTotal, itemErrs = sumItems("line_items", req.LineItems)
	errs = append(errs, itemErrs...)

	summary.ExpensesTotal, itemErrs = sumItems("expenses", req.Expenses)
	errs = append(errs, itemErrs...)

	if len(errs) > 0 {
		return domain.InvoiceSummary{}, errs
	}

	summary.Total = summary.AssignmentsTotal.Add(summary.LineItemsTotal).Add(summary.ExpensesTotal)
	return summary, nil
}

func priceAssignment(
	i int,
	a domain.Assignment,
	route domain.AssignmentRoute,
	emptyMiles domain.EmptyMilesMap,
) (domain.AssignmentCharge, domain.ValidationErrors) {
	field := func(name string) string { return fmt.Sprintf("assignments[%d].%s", i, name) }

	var errs domain.ValidationErrors
	if !a.ChargeType.Valid() {
		errs = append(errs, &domain.ValidationError{
			Field:  field("charge_type"),
			Reason: fmt.Sprintf("unknown charge type %q", a.ChargeType),
		})
	}
	if a.ChargeValue == nil {
		errs = append(errs, &domain.ValidationError{Field: field("charge_value"), Reason: "is required"})
	}
	if len(errs) > 0 {
		return domain.AssignmentCharge{}, errs
	}

	var quantity decimal.Decimal
	switch a.ChargeType {
	case domain.ChargePerMile:
		if a.BilledDistanceMiles != nil {
			quantity = *a.BilledDistanceMiles
		} else {
			quantity = decimal.NewFromFloat(route.TotalDistanceMiles).Add(assignmentEmptyMiles(a, emptyMiles))
		}
	case domain.ChargePerHour:
		if a.BilledDurationHours != nil {
			quantity = *a.BilledDurationHours
		} else {
			quantity = decimal.NewFromFloat(route.TotalDurationHours)
		}
	case domain.ChargePercentageOfLoad:
		switch {
		case a.BilledLoadRate != nil:
			quantity = *a.BilledLoadRate
		case a.LoadRate != nil:
			quantity = *a.LoadRate
		default:
			return domain.AssignmentCharge{}, domain.ValidationErrors{
				{Field: field("load_rate"), Reason: "is required for PERCENTAGE_OF_LOAD"},
			}
		}
	}

	amount := quantity.Mul(*a.ChargeValue)
	if amount.IsNegative() {
		return domain.AssignmentCharge{}, domain.ValidationErrors{
			{Field: field("amount"), Reason: fmt.Sprintf("computed amount %s is negative", amount.String())},
		}
	}

	return domain.AssignmentCharge{
		AssignmentID: a.ID,
		ChargeType:   a.ChargeType,
		Quantity:     quantity,
		Rate:         *a.ChargeValue,
		Amount:       amount,
	}, nil
}

// The live map wins over a value stored on the assignment, which is only
// filled in at submission.
func assignmentEmptyMiles(a domain.Assignment, m domain.EmptyMilesMap) decimal.Decimal {
	if v, ok := m.ForAssignment(a.ID); ok {
		return v
	}
	if a.EmptyMiles != nil {
		return *a.EmptyMiles
	}
	return decimal.Zero
}

func sumItems(name string, items []domain.LineItem) (decimal.Decimal, domain.ValidationErrors) {
	var errs domain.ValidationErrors
	sum := decimal.Zero

	for i, it := range items {
		field := fmt.Sprintf("%s[%d].amount", name, i)
		switch {
		case it.Amount == nil:
			errs = append(errs, &domain.ValidationError{Field: field, Reason: "is required"})
		case it.Amount.IsNegative():
			errs = append(errs, &domain.ValidationError{Field: field, Reason: "must not be negative"})
		default:
			sum = sum.Add(*it.Amount)
		}
	}

	return sum, errs
}
