package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type PointRequest struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lon float64 `json:"lon" validate:"longitude"`
}

// A stop needs either a point or an address the server can geocode.
type StopRequest struct {
	Address string        `json:"address" validate:"max=500"`
	Point   *PointRequest `json:"point"`
}

type AssignmentRequest struct {
	ID                  string           `json:"id" validate:"required,max=64"`
	ChargeType          string           `json:"charge_type" validate:"required,oneof=PER_MILE PER_HOUR PERCENTAGE_OF_LOAD"`
	ChargeValue         *decimal.Decimal `json:"charge_value"`
	Stops               []StopRequest    `json:"stops" validate:"min=2,dive"`
	LoadRate            *decimal.Decimal `json:"load_rate"`
	BilledDistanceMiles *decimal.Decimal `json:"billed_distance_miles"`
	BilledDurationHours *decimal.Decimal `json:"billed_duration_hours"`
	BilledLoadRate      *decimal.Decimal `json:"billed_load_rate"`
	EmptyMiles          *decimal.Decimal `json:"empty_miles"`
	StartAt             *time.Time       `json:"start_at"`
	CreatedAt           *time.Time       `json:"created_at"`
}

type LineItemRequest struct {
	Description string           `json:"description" validate:"max=200"`
	Amount      *decimal.Decimal `json:"amount"`
}

type CreateDraftRequest struct {
	Assignments []AssignmentRequest `json:"assignments" validate:"required,min=1,max=200,unique=ID,dive"`
	LineItems   []LineItemRequest   `json:"line_items" validate:"max=200,dive"`
	Expenses    []LineItemRequest   `json:"expenses" validate:"max=200,dive"`
}

type ReplaceAssignmentsRequest struct {
	Assignments []AssignmentRequest `json:"assignments" validate:"required,min=1,max=200,unique=ID,dive"`
}

type SetEmptyMilesRequest struct {
	Key   string           `json:"key" validate:"required"`
	Miles *decimal.Decimal `json:"miles" validate:"required"`
}

// An empty AssignmentID clears focus.
type FocusRequest struct {
	AssignmentID string `json:"assignment_id"`
}

type RouteResponse struct {
	AssignmentID       string      `json:"assignment_id"`
	Coordinates        [][]float64 `json:"coordinates"`
	TotalDistanceMiles float64     `json:"total_distance_miles"`
	TotalDurationHours float64     `json:"total_duration_hours"`
	FallbackLegs       int         `json:"fallback_legs"`
}

type EmptyMilesResponse struct {
	Key        string          `json:"key"`
	FromID     string          `json:"from_id"`
	ToID       string          `json:"to_id"`
	Miles      decimal.Decimal `json:"miles"`
	Overridden bool            `json:"overridden"`
	Fallback   bool            `json:"fallback"`
}

type ChargeResponse struct {
	AssignmentID string          `json:"assignment_id"`
	ChargeType   string          `json:"charge_type"`
	Quantity     decimal.Decimal `json:"quantity"`
	Rate         decimal.Decimal `json:"rate"`
	Amount       decimal.Decimal `json:"amount"`
}

// Totals are rendered with two decimals.
type TotalsResponse struct {
	Assignments string `json:"assignments"`
	LineItems   string `json:"line_items"`
	Expenses    string `json:"expenses"`
	Total       string `json:"total"`
}

type FieldErrorResponse struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type DraftResponse struct {
	ID               string               `json:"id"`
	Epoch            uint64               `json:"epoch"`
	FocusID          string               `json:"focus_assignment_id,omitempty"`
	AssignmentIDs    []string             `json:"assignment_ids"`
	Routes           []RouteResponse      `json:"routes"`
	EmptyMiles       []EmptyMilesResponse `json:"empty_miles"`
	Charges          []ChargeResponse     `json:"charges"`
	Totals           *TotalsResponse      `json:"totals,omitempty"`
	ValidationErrors []FieldErrorResponse `json:"validation_errors,omitempty"`
	FallbackLegs     int                  `json:"fallback_legs"`
	EmptyMilesStale  bool                 `json:"empty_miles_stale"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

type SubmitResponse struct {
	SubmissionID string    `json:"submission_id"`
	DraftID      string    `json:"draft_id"`
	Total        string    `json:"total"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

type ErrorResponse struct {
	Error  string               `json:"error"`
	Fields []FieldErrorResponse `json:"fields,omitempty"`
}
