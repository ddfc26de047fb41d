package services

import (
	"context"
	"testing"
	"time"

	"route-invoice-service/internal/adapters/cache"
	"route-invoice-service/internal/adapters/directions"
	"route-invoice-service/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	phoenix    = domain.GeoPoint{Lat: 33.448400, Lon: -112.074000}
	tempe      = domain.GeoPoint{Lat: 33.425500, Lon: -111.940000}
	mesa       = domain.GeoPoint{Lat: 33.415200, Lon: -111.831500}
	chandler   = domain.GeoPoint{Lat: 33.306200, Lon: -111.841300}
	gilbert    = domain.GeoPoint{Lat: 33.352800, Lon: -111.789000}
	scottsdale = domain.GeoPoint{Lat: 33.494200, Lon: -111.926100}
)

func pt(p domain.GeoPoint) *domain.GeoPoint { return &p }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func at(hour int) *time.Time {
	t := time.Date(2026, 2, 3, hour, 0, 0, 0, time.UTC)
	return &t
}

func stops(points ...domain.GeoPoint) []domain.Stop {
	out := make([]domain.Stop, 0, len(points))
	for _, p := range points {
		out = append(out, domain.Stop{Point: pt(p)})
	}
	return out
}

func perMile(id string, start int, rate string, points ...domain.GeoPoint) domain.Assignment {
	return domain.Assignment{
		ID:          id,
		ChargeType:  domain.ChargePerMile,
		ChargeValue: dec(rate),
		Stops:       stops(points...),
		StartAt:     at(start),
	}
}

func newTestCache(t *testing.T) *cache.TTLRouteCache {
	t.Helper()
	c, err := cache.NewTTLRouteCache(context.Background(), cache.NewMemoryBlobStore(), "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func newTestPlanner(t *testing.T, legs []directions.MockLeg) (*Planner, *directions.MockDirectionsProvider, *cache.TTLRouteCache) {
	t.Helper()
	provider := directions.NewMockDirectionsProvider(legs)
	rc := newTestCache(t)
	planner := NewPlanner(provider, rc, PlannerConfig{
		LegRouterConfig: LegRouterConfig{Timeout: 2 * time.Second, FallbackSpeedMPH: 50},
		Concurrency:     4,
	})
	return planner, provider, rc
}

func leg(from, to domain.GeoPoint, miles, hours float64) directions.MockLeg {
	return directions.MockLeg{Points: []domain.GeoPoint{from, to}, Miles: miles, Hours: hours}
}
