package services

import (
	"context"
	"log"
	"slices"
	"strings"

	"route-invoice-service/internal/domain"
	"route-invoice-service/internal/ports"
)

// ResolveStops fills in coordinates of stops that only carry an address.
// It runs before a draft is created. Geocoding failures are logged and the
// stop stays without coordinates; routing then falls back for its legs.
func ResolveStops(ctx context.Context, geocoder ports.Geocoder, assignments []domain.Assignment) []domain.Assignment {
	if geocoder == nil {
		return assignments
	}

	var addresses []string
	for _, a := range assignments {
		for _, st := range a.Stops {
			if st.Point == nil && strings.TrimSpace(st.Address) != "" {
				addresses = append(addresses, normalizeAddress(st.Address))
			}
		}
	}
	if len(addresses) == 0 {
		return assignments
	}

	found, err := geocoder.GeocodeMany(ctx, addresses)
	if err != nil {
		log.Printf("resolve stops: geocode %d addresses: %v", len(addresses), err)
		return assignments
	}

	out := make([]domain.Assignment, len(assignments))
	for i, a := range assignments {
		a.Stops = slices.Clone(a.Stops)
		for j, st := range a.Stops {
			if st.Point != nil {
				continue
			}
			if p, ok := found[normalizeAddress(st.Address)]; ok {
				a.Stops[j].Point = &p
			}
		}
		out[i] = a
	}
	return out
}

func normalizeAddress(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
