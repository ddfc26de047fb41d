package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// ChargeType is the billing model of an assignment.
type ChargeType string

const (
	ChargePerMile          ChargeType = "PER_MILE"
	ChargePerHour          ChargeType = "PER_HOUR"
	ChargePercentageOfLoad ChargeType = "PERCENTAGE_OF_LOAD"
)

func (c ChargeType) Valid() bool {
	switch c {
	case ChargePerMile, ChargePerHour, ChargePercentageOfLoad:
		return true
	}
	return false
}

// A single stop on an assignment. Point is nil when the stop has not been
// geocoded; Address is kept so an upstream geocoder can fill it in.
type Stop struct {
	Address string
	Point   *GeoPoint
}

// Assignment is one multi-stop job billed to the invoice.
//
// Billed* fields are optional overrides entered by the user; when nil the
// computed route value (or the load rate) is used. EmptyMiles is populated
// from the EmptyMilesMap at submission time.
type Assignment struct {
	ID          string
	ChargeType  ChargeType
	ChargeValue *decimal.Decimal
	Stops       []Stop
	LoadRate    *decimal.Decimal

	BilledDistanceMiles *decimal.Decimal
	BilledDurationHours *decimal.Decimal
	BilledLoadRate      *decimal.Decimal
	EmptyMiles          *decimal.Decimal

	StartAt   *time.Time
	CreatedAt time.Time
}

// SortKey is the timestamp used for chronological ordering.
func (a Assignment) SortKey() time.Time {
	if a.StartAt != nil {
		return *a.StartAt
	}
	return a.CreatedAt
}

// FirstStop and LastStop return the endpoints of the assignment, or nil when
// the stop list is empty.
func (a Assignment) FirstStop() *Stop {
	if len(a.Stops) == 0 {
		return nil
	}
	return &a.Stops[0]
}

func (a Assignment) LastStop() *Stop {
	if len(a.Stops) == 0 {
		return nil
	}
	return &a.Stops[len(a.Stops)-1]
}

// SortChronologically returns a copy ordered by start time (creation time when
// absent). Ties are broken by id so the order is deterministic.
func SortChronologically(assignments []Assignment) []Assignment {
	out := slices.Clone(assignments)
	slices.SortStableFunc(out, func(a, b Assignment) int {
		if c := a.SortKey().Compare(b.SortKey()); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

// MileBilled filters the assignments charged per mile, preserving order.
func MileBilled(assignments []Assignment) []Assignment {
	out := make([]Assignment, 0, len(assignments))
	for _, a := range assignments {
		if a.ChargeType == ChargePerMile {
			out = append(out, a)
		}
	}
	return out
}
