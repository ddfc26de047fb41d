package api

import (
	"net/http"

	"route-invoice-service/internal/api/handlers"
	"route-invoice-service/internal/ports"
	"route-invoice-service/internal/services"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
// geocoder may be nil, in which case address-only stops stay unresolved.
func NewRouter(store *services.SessionStore, geocoder ports.Geocoder, submitter ports.InvoiceSubmitter) http.Handler {
	mux := http.NewServeMux()

	drafts := &handlers.DraftHandler{
		Store:     store,
		Geocoder:  geocoder,
		Submitter: submitter,
	}

	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("POST /drafts", drafts.Create)
	mux.HandleFunc("GET /drafts/{id}", drafts.Get)
	mux.HandleFunc("PUT /drafts/{id}/empty-miles", drafts.SetEmptyMiles)
	mux.HandleFunc("POST /drafts/{id}/focus", drafts.Focus)
	mux.HandleFunc("POST /drafts/{id}/recalculate", drafts.Recalculate)
	mux.HandleFunc("PUT /drafts/{id}/assignments", drafts.ReplaceAssignments)
	mux.HandleFunc("POST /drafts/{id}/submit", drafts.Submit)

	return requestIDMiddleware(loggingMiddleware(mux))
}
