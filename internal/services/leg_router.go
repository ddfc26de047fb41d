package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"route-invoice-service/internal/domain"
	"route-invoice-service/internal/platform/obs"
	"route-invoice-service/internal/ports"

	"github.com/twpayne/go-polyline"
)

// Reasons a leg was not routed by the provider. They appear in route.fallback
// log lines and in LegRoute.FallbackReason.
const (
	FallbackMissingCoordinates = "missing_coordinates"
	FallbackProviderError      = "provider_error"
	FallbackTimeout            = "timeout"
)

const (
	defaultLegTimeout       = 10 * time.Second
	defaultFallbackSpeedMPH = 50.0
)

type LegRouterConfig struct {
	// Timeout bounds one provider call, retries included.
	Timeout time.Duration
	// FallbackSpeedMPH estimates the duration of straight-line legs.
	FallbackSpeedMPH float64
}

// LegRouter resolves a single leg: route cache first, then the directions
// provider, then a great-circle straight line. It never fails.
type LegRouter struct {
	provider ports.DirectionsProvider
	cache    ports.RouteCache
	timeout  time.Duration
	speedMPH float64
}

// NewLegRouter builds a router; cache may be nil to always hit the provider.
func NewLegRouter(provider ports.DirectionsProvider, cache ports.RouteCache, cfg LegRouterConfig) *LegRouter {
	r := &LegRouter{
		provider: provider,
		cache:    cache,
		timeout:  cfg.Timeout,
		speedMPH: cfg.FallbackSpeedMPH,
	}
	if r.timeout <= 0 {
		r.timeout = defaultLegTimeout
	}
	if r.speedMPH <= 0 {
		r.speedMPH = defaultFallbackSpeedMPH
	}
	return r
}

// Generation is the route cache generation new fetches should be tagged with.
func (r *LegRouter) Generation() uint64 {
	if r.cache == nil {
		return 0
	}
	return r.cache.Generation()
}

// RouteLeg routes from -> to. label identifies the leg in logs.
//
// A leg with a missing endpoint has no coordinates and zero distance. A leg
// the provider could not route is a two-point straight line measured with
// the haversine formula.
func (r *LegRouter) RouteLeg(
	ctx context.Context,
	generation uint64,
	label string,
	from, to *domain.GeoPoint,
) domain.LegRoute {
	if from == nil || to == nil {
		missing := &domain.MissingCoordinateError{Leg: label, Endpoint: "from"}
		if from != nil {
			missing.Endpoint = "to"
		}
		log.Printf("req_id=%s route.fallback leg=%s reason=%s err=%v", obs.RequestID(ctx), label, FallbackMissingCoordinates, missing)
		return domain.LegRoute{Fallback: true, FallbackReason: FallbackMissingCoordinates, Err: missing}
	}

	points := []domain.GeoPoint{*from, *to}
	key := domain.RouteKey(points)

	if r.cache != nil {
		if res, ok := r.cache.Get(ctx, key); ok {
			leg, err := legFromResult(res, points)
			if err == nil {
				return leg
			}
			log.Printf("route cache entry unreadable key=%s err=%v", key, err)
		}
	}

	legCtx, cancel := context.WithTimeout(ctx, r.timeout)
	res, err := r.provider.FetchRoute(legCtx, points)
	timedOut := errors.Is(legCtx.Err(), context.DeadlineExceeded)
	cancel()

	if err != nil {
		var perr *domain.ProviderError
		if !errors.As(err, &perr) {
			err = &domain.ProviderError{Err: err}
		}
		reason := FallbackProviderError
		if timedOut {
			reason = FallbackTimeout
		}
		log.Printf("req_id=%s route.fallback leg=%s reason=%s err=%v", obs.RequestID(ctx), label, reason, err)
		return r.straightLine(*from, *to, reason, err)
	}

	leg, err := legFromResult(res, points)
	if err != nil {
		perr := &domain.ProviderError{Err: fmt.Errorf("decode path: %w", err)}
		log.Printf("req_id=%s route.fallback leg=%s reason=%s err=%v", obs.RequestID(ctx), label, FallbackProviderError, perr)
		return r.straightLine(*from, *to, FallbackProviderError, perr)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, generation, key, res); err != nil && !errors.Is(err, domain.ErrStaleGeneration) {
			log.Printf("route cache write failed: %v", err)
		}
	}

	return leg
}

func (r *LegRouter) straightLine(from, to domain.GeoPoint, reason string, cause error) domain.LegRoute {
	miles := domain.HaversineMiles(from, to)
	return domain.LegRoute{
		Coordinates:    []domain.GeoPoint{from, to},
		DistanceMiles:  miles,
		DurationHours:  miles / r.speedMPH,
		Fallback:       true,
		FallbackReason: reason,
		Err:            cause,
	}
}

// legFromResult decodes the provider path. Miles are taken as reported, never
// re-derived from the geometry. An empty path is drawn as a straight line.
func legFromResult(res domain.RouteResult, points []domain.GeoPoint) (domain.LegRoute, error) {
	if res.DistanceMiles < 0 {
		return domain.LegRoute{}, errors.New("negative distance")
	}

	leg := domain.LegRoute{
		DistanceMiles: res.DistanceMiles,
		DurationHours: res.DurationHours,
	}

	if res.EncodedPath == "" {
		leg.Coordinates = append([]domain.GeoPoint(nil), points...)
		return leg, nil
	}

	coords, _, err := polyline.DecodeCoords([]byte(res.EncodedPath))
	if err != nil {
		return domain.LegRoute{}, err
	}

	leg.Coordinates = make([]domain.GeoPoint, 0, len(coords))
	for _, c := range coords {
		leg.Coordinates = append(leg.Coordinates, domain.GeoPoint{Lat: c[0], Lon: c[1]})
	}
	return leg, nil
}
