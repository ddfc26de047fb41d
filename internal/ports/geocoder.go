package ports

import (
	"context"
	"route-invoice-service/internal/domain"
)

// Upstream collaborator turning addresses into coordinates.
// Results are keyed by the normalized address.
type Geocoder interface {
	GeocodeMany(ctx context.Context, addresses []string) (map[string]domain.GeoPoint, error)
}
