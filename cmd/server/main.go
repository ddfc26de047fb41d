package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"route-invoice-service/internal/adapters/cache"
	"route-invoice-service/internal/adapters/directions"
	"route-invoice-service/internal/adapters/submission"
	"route-invoice-service/internal/api"
	"route-invoice-service/internal/config"
	"route-invoice-service/internal/platform/db"
	"route-invoice-service/internal/ports"
	"route-invoice-service/internal/services"
)

// main is the application composition root.
// It wires concrete adapters (cache backend, ORS, broker) behind ports and starts the HTTP server.
func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.ORSAPIKey == "" {
		log.Fatal("ORS_API_KEY is required")
	}

	ctx := context.Background()

	store, sqlDB, closeStore, err := openBlobStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()

	routeCache, err := cache.NewTTLRouteCache(ctx, store, cfg.CacheNamespace, cache.WithTTL(cfg.RouteCacheTTL))
	if err != nil {
		log.Fatal(err)
	}

	orsOpts := directions.ORSOptions{
		BaseURL: cfg.ORSBaseURL,
		Profile: cfg.ORSProfile,
		Timeout: cfg.DirectionsTimeout,
	}
	provider, err := directions.NewORSDirectionsProvider(cfg.ORSAPIKey, orsOpts)
	if err != nil {
		log.Fatal(err)
	}

	geocoder, err := newGeocoder(cfg, orsOpts, sqlDB)
	if err != nil {
		log.Fatal(err)
	}

	submitter, closeSubmitter, err := newSubmitter(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeSubmitter()

	planner := services.NewPlanner(provider, routeCache, services.PlannerConfig{
		LegRouterConfig: services.LegRouterConfig{
			Timeout:          cfg.DirectionsTimeout,
			FallbackSpeedMPH: cfg.FallbackSpeedMPH,
		},
		Concurrency: cfg.LegConcurrency,
	})
	router := api.NewRouter(services.NewSessionStore(planner), geocoder, submitter)

	// Timeouts are tuned for cold-cache routing of a whole draft (external API latency).
	log.Printf("Server listening addr=:%s cache_backend=%s", cfg.Port, cfg.CacheBackend)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}

// openBlobStore picks the route cache backend. The returned *sql.DB is nil
// unless the backend is SQL, in which case it also backs the geocode cache.
func openBlobStore(ctx context.Context, cfg *config.Config) (ports.BlobStore, *sql.DB, func(), error) {
	switch cfg.CacheBackend {
	case config.BackendMemory:
		return cache.NewMemoryBlobStore(), nil, func() {}, nil

	case config.BackendRedis:
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return cache.NewRedisBlobStore(client), nil, func() { client.Close() }, nil

	case config.BackendPostgres:
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return sqlStore(ctx, conn, cache.DialectPostgres)

	default:
		conn, err := db.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, nil, nil, err
		}
		return sqlStore(ctx, conn, cache.DialectSQLite)
	}
}

func sqlStore(ctx context.Context, conn *sql.DB, dialect string) (ports.BlobStore, *sql.DB, func(), error) {
	if err := cache.InitSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("open blob store: %w", err)
	}

	store, err := cache.NewSQLBlobStore(conn, dialect)
	if err != nil {
		conn.Close()
		return nil, nil, nil, err
	}

	return store, conn, func() { conn.Close() }, nil
}

// newGeocoder persists lookups next to the route cache when the backend is SQL.
func newGeocoder(cfg *config.Config, opts directions.ORSOptions, conn *sql.DB) (ports.Geocoder, error) {
	var geoCache directions.GeocodeCache
	if conn != nil {
		dialect := cache.DialectSQLite
		if cfg.CacheBackend == config.BackendPostgres {
			dialect = cache.DialectPostgres
		}
		c, err := cache.NewSQLGeocodeCache(conn, dialect)
		if err != nil {
			return nil, err
		}
		geoCache = c
	}

	g, err := directions.NewORSGeocoder(cfg.ORSAPIKey, opts, geoCache)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// newSubmitter publishes to RabbitMQ when RABBITMQ_URL is set and only logs otherwise.
func newSubmitter(cfg *config.Config) (ports.InvoiceSubmitter, func(), error) {
	if cfg.RabbitMQURL == "" {
		log.Println("RABBITMQ_URL not set; submitted invoices are only logged")
		return submission.LogSubmitter{}, func() {}, nil
	}

	rmq, err := submission.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return nil, nil, err
	}

	sub, err := submission.NewRabbitMQSubmitter(rmq.Channel)
	if err != nil {
		rmq.Close()
		return nil, nil, err
	}
	return sub, rmq.Close, nil
}
