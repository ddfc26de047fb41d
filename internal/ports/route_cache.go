package ports

import (
	"context"
	"route-invoice-service/internal/domain"
)

// Coordinate-keyed store of prior directions results with time-based expiry.
//
// Every Clear starts a new generation. Set calls tagged with an older
// generation are dropped with domain.ErrStaleGeneration.
type RouteCache interface {
	Get(ctx context.Context, key string) (domain.RouteResult, bool)
	Set(ctx context.Context, generation uint64, key string, result domain.RouteResult) error
	Clear(ctx context.Context) error
	Generation() uint64
}
