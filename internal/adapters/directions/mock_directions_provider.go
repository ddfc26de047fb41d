package directions

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"route-invoice-service/internal/domain"

	"github.com/twpayne/go-polyline"
)

// MockLeg is one canned answer of MockDirectionsProvider. Path defaults to
// Points when empty.
type MockLeg struct {
	Points []domain.GeoPoint
	Path   []domain.GeoPoint
	Miles  float64
	Hours  float64
	Err    error
}

// MockDirectionsProvider answers FetchRoute from a fixed table keyed like the
// route cache. Unknown legs fail with a 404 ProviderError.
type MockDirectionsProvider struct {
	mu    sync.RWMutex
	m     map[string]MockLeg
	delay time.Duration
	calls atomic.Int64
}

func NewMockDirectionsProvider(legs []MockLeg) *MockDirectionsProvider {
	m := make(map[string]MockLeg, len(legs))
	for _, l := range legs {
		m[domain.RouteKey(l.Points)] = l
	}
	return &MockDirectionsProvider{m: m}
}

// SetDelay makes every call block for d or until ctx is done.
func (p *MockDirectionsProvider) SetDelay(d time.Duration) {
	p.mu.Lock()
	p.delay = d
	p.mu.Unlock()
}

// SetLeg adds or replaces a canned answer.
func (p *MockDirectionsProvider) SetLeg(l MockLeg) {
	p.mu.Lock()
	p.m[domain.RouteKey(l.Points)] = l
	p.mu.Unlock()
}

// Calls reports how many times FetchRoute ran.
func (p *MockDirectionsProvider) Calls() int {
	return int(p.calls.Load())
}

func (p *MockDirectionsProvider) FetchRoute(ctx context.Context, points []domain.GeoPoint) (domain.RouteResult, error) {
	p.calls.Add(1)

	p.mu.RLock()
	leg, ok := p.m[domain.RouteKey(points)]
	delay := p.delay
	p.mu.RUnlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.RouteResult{}, &domain.ProviderError{Err: ctx.Err()}
		case <-timer.C:
		}
	}

	if !ok {
		return domain.RouteResult{}, &domain.ProviderError{
			StatusCode: 404,
			Err:        fmt.Errorf("no mock leg for %s", domain.RouteKey(points)),
		}
	}
	if leg.Err != nil {
		return domain.RouteResult{}, &domain.ProviderError{Err: leg.Err}
	}

	path := leg.Path
	if len(path) == 0 {
		path = leg.Points
	}

	return domain.RouteResult{
		EncodedPath:   EncodePath(path),
		DistanceMiles: leg.Miles,
		DurationHours: leg.Hours,
	}, nil
}

// EncodePath encodes points as a 5-digit precision polyline.
func EncodePath(points []domain.GeoPoint) string {
	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}
