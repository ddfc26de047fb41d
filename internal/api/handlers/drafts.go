package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"route-invoice-service/internal/api/dto"
	"route-invoice-service/internal/domain"
	"route-invoice-service/internal/ports"
	"route-invoice-service/internal/services"
)

type DraftHandler struct {
	Store     *services.SessionStore
	Geocoder  ports.Geocoder
	Submitter ports.InvoiceSubmitter
}

// Create starts a drafting session: stops without coordinates are geocoded,
// every assignment is routed and the first draft is returned.
func (h *DraftHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateDraftRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	assignments, ok := h.assignments(w, r, req.Assignments)
	if !ok {
		return
	}

	s, err := h.Store.Create(r.Context(), services.DraftInput{
		Assignments: assignments,
		LineItems:   toLineItems(req.LineItems),
		Expenses:    toLineItems(req.Expenses),
	})
	if err != nil {
		writeDomainError(w, r, "create draft", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toDraftResponse(s.Draft()))
}

func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, "get draft", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toDraftResponse(s.Draft()))
}

// SetEmptyMiles stores a user override and returns the recomputed draft.
func (h *DraftHandler) SetEmptyMiles(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, "set empty miles", err)
		return
	}

	var req dto.SetEmptyMilesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	d, err := s.SetEmptyMiles(req.Key, *req.Miles)
	if err != nil {
		writeDomainError(w, r, "set empty miles", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toDraftResponse(d))
}

func (h *DraftHandler) Focus(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, "focus", err)
		return
	}

	var req dto.FocusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	d, err := s.Focus(r.Context(), strings.TrimSpace(req.AssignmentID))
	if err != nil {
		writeDomainError(w, r, "focus", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toDraftResponse(d))
}

// Recalculate clears the route cache and all overrides and reroutes everything.
func (h *DraftHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, "recalculate", err)
		return
	}

	d, err := s.Recalculate(r.Context())
	if err != nil {
		writeDomainError(w, r, "recalculate", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toDraftResponse(d))
}

func (h *DraftHandler) ReplaceAssignments(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.Get(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, "replace assignments", err)
		return
	}

	var req dto.ReplaceAssignmentsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	assignments, ok := h.assignments(w, r, req.Assignments)
	if !ok {
		return
	}

	d, err := s.ReplaceAssignments(r.Context(), assignments)
	if err != nil {
		writeDomainError(w, r, "replace assignments", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toDraftResponse(d))
}

// Submit hands the draft to the invoicing system and forgets the session.
func (h *DraftHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s, err := h.Store.Get(id)
	if err != nil {
		writeDomainError(w, r, "submit", err)
		return
	}

	sub, err := s.Submit(r.Context(), h.Submitter)
	if err != nil {
		writeDomainError(w, r, "submit", err)
		return
	}
	h.Store.Delete(id)

	writeJSON(w, r, http.StatusAccepted, dto.SubmitResponse{
		SubmissionID: sub.SubmissionID,
		DraftID:      sub.DraftID,
		Total:        domain.FormatMoney(sub.Summary.Total),
		SubmittedAt:  sub.SubmittedAt,
	})
}

// assignments converts request assignments and resolves address-only stops.
func (h *DraftHandler) assignments(w http.ResponseWriter, r *http.Request, in []dto.AssignmentRequest) ([]domain.Assignment, bool) {
	var fields []dto.FieldErrorResponse
	out := make([]domain.Assignment, 0, len(in))
	now := time.Now()

	for i, a := range in {
		stops := make([]domain.Stop, 0, len(a.Stops))
		for j, st := range a.Stops {
			if st.Point == nil && strings.TrimSpace(st.Address) == "" {
				fields = append(fields, dto.FieldErrorResponse{
					Field:  fmt.Sprintf("assignments[%d].stops[%d]", i, j),
					Reason: "needs a point or an address",
				})
				continue
			}
			stop := domain.Stop{Address: strings.TrimSpace(st.Address)}
			if st.Point != nil {
				stop.Point = &domain.GeoPoint{Lat: st.Point.Lat, Lon: st.Point.Lon}
			}
			stops = append(stops, stop)
		}

		created := now
		if a.CreatedAt != nil {
			created = *a.CreatedAt
		}

		out = append(out, domain.Assignment{
			ID:                  a.ID,
			ChargeType:          domain.ChargeType(a.ChargeType),
			ChargeValue:         a.ChargeValue,
			Stops:               stops,
			LoadRate:            a.LoadRate,
			BilledDistanceMiles: a.BilledDistanceMiles,
			BilledDurationHours: a.BilledDurationHours,
			BilledLoadRate:      a.BilledLoadRate,
			EmptyMiles:          a.EmptyMiles,
			StartAt:             a.StartAt,
			CreatedAt:           created,
		})
	}

	if len(fields) > 0 {
		writeJSON(w, r, http.StatusUnprocessableEntity, dto.ErrorResponse{Error: "validation failed", Fields: fields})
		return nil, false
	}

	return services.ResolveStops(r.Context(), h.Geocoder, out), true
}

func toLineItems(in []dto.LineItemRequest) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(in))
	for _, it := range in {
		out = append(out, domain.LineItem{Description: it.Description, Amount: it.Amount})
	}
	return out
}

func toDraftResponse(d *services.Draft) dto.DraftResponse {
	res := dto.DraftResponse{
		ID:              d.ID,
		Epoch:           d.Epoch,
		FocusID:         d.FocusID,
		AssignmentIDs:   make([]string, 0, len(d.Assignments)),
		Routes:          make([]dto.RouteResponse, 0, len(d.Routes)),
		EmptyMiles:      make([]dto.EmptyMilesResponse, 0, d.EmptyMiles.Len()),
		Charges:         make([]dto.ChargeResponse, 0, len(d.Summary.Charges)),
		FallbackLegs:    d.FallbackLegs,
		EmptyMilesStale: d.MilesStale,
		UpdatedAt:       d.UpdatedAt,
	}

	for _, a := range d.Assignments {
		res.AssignmentIDs = append(res.AssignmentIDs, a.ID)
	}

	for _, rt := range d.VisibleRoutes() {
		coords := make([][]float64, 0, len(rt.Coordinates))
		for _, p := range rt.Coordinates {
			coords = append(coords, []float64{p.Lat, p.Lon})
		}
		res.Routes = append(res.Routes, dto.RouteResponse{
			AssignmentID:       rt.AssignmentID,
			Coordinates:        coords,
			TotalDistanceMiles: rt.TotalDistanceMiles,
			TotalDurationHours: rt.TotalDurationHours,
			FallbackLegs:       rt.FallbackLegs,
		})
	}

	for _, e := range d.EmptyMiles.Entries {
		res.EmptyMiles = append(res.EmptyMiles, dto.EmptyMilesResponse{
			Key:        e.Key,
			FromID:     e.FromID,
			ToID:       e.ToID,
			Miles:      e.Miles,
			Overridden: e.Overridden,
			Fallback:   e.Fallback,
		})
	}

	if len(d.Validation) > 0 {
		res.ValidationErrors = fieldErrors(d.Validation)
		return res
	}

	for _, c := range d.Summary.Charges {
		res.Charges = append(res.Charges, dto.ChargeResponse{
			AssignmentID: c.AssignmentID,
			ChargeType:   string(c.ChargeType),
			Quantity:     c.Quantity,
			Rate:         c.Rate,
			Amount:       c.Amount,
		})
	}
	res.Totals = &dto.TotalsResponse{
		Assignments: domain.FormatMoney(d.Summary.AssignmentsTotal),
		LineItems:   domain.FormatMoney(d.Summary.LineItemsTotal),
		Expenses:    domain.FormatMoney(d.Summary.ExpensesTotal),
		Total:       domain.FormatMoney(d.Summary.Total),
	}

	return res
}
