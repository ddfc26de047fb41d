package cache

import (
	"context"
	"path/filepath"
	"testing"

	"route-invoice-service/internal/domain"
	"route-invoice-service/internal/platform/db"
)

func TestSQLGeocodeCacheGetPutMany(t *testing.T) {
	ctx := context.Background()

	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "geo.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer conn.Close()

	if err := InitSchema(ctx, conn); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	gc, err := NewSQLGeocodeCache(conn, DialectSQLite)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}

	err = gc.PutMany(ctx, map[string]domain.GeoPoint{
		"1901 W Madison St, Phoenix, AZ": {Lat: 33.4815, Lon: -112.0975},
		"100 Main St, Tempe, AZ":         {Lat: 33.4255, Lon: -111.9400},
	})
	if err != nil {
		t.Fatalf("put many: %v", err)
	}

	got, err := gc.GetMany(ctx, []string{
		"1901 W Madison St, Phoenix, AZ",
		" 1901 W Madison St, Phoenix, AZ ",
		"unknown",
		"",
	})
	if err != nil {
		t.Fatalf("get many: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 hit, got %d: %v", len(got), got)
	}
	p := got["1901 W Madison St, Phoenix, AZ"]
	if p.Lat != 33.4815 || p.Lon != -112.0975 {
		t.Fatalf("unexpected point %+v", p)
	}

	if err := gc.PutMany(ctx, map[string]domain.GeoPoint{"100 Main St, Tempe, AZ": {Lat: 1, Lon: 2}}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = gc.GetMany(ctx, []string{"100 Main St, Tempe, AZ"})
	if got["100 Main St, Tempe, AZ"] != (domain.GeoPoint{Lat: 1, Lon: 2}) {
		t.Fatalf("overwrite not applied: %+v", got)
	}
}
