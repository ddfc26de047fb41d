package ports

import (
	"context"
	"route-invoice-service/internal/domain"
)

// Contract for routing one leg through an external directions provider.
type DirectionsProvider interface {
	// Route the ordered points (at least two). Failures are *domain.ProviderError.
	FetchRoute(ctx context.Context, points []domain.GeoPoint) (domain.RouteResult, error)
}
