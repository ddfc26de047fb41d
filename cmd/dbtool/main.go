package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"

	"route-invoice-service/internal/adapters/cache"
	"route-invoice-service/internal/config"
	"route-invoice-service/internal/platform/db"
	"route-invoice-service/internal/ports"
)

// dbtool prepares and inspects the route cache backend configured in the environment.
func main() {
	clearCache := flag.Bool("clear", false, "delete the persisted route cache namespace")
	stats := flag.Bool("stats", false, "print live entry count and the oldest entry")
	flag.Parse()

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore()

	if *clearCache {
		log.Printf("Clearing route cache namespace=%s", cfg.CacheNamespace)
		if err := store.Delete(ctx, cfg.CacheNamespace); err != nil {
			log.Fatalf("clear failed: %v", err)
		}
		log.Println("Route cache cleared.")
	}

	if *stats {
		c, err := cache.NewTTLRouteCache(ctx, store, cfg.CacheNamespace, cache.WithTTL(cfg.RouteCacheTTL))
		if err != nil {
			log.Fatalf("load route cache: %v", err)
		}
		s := c.Stats()
		fmt.Printf("namespace=%s backend=%s entries=%d", cfg.CacheNamespace, cfg.CacheBackend, s.Entries)
		if !s.Oldest.IsZero() {
			fmt.Printf(" oldest=%s", s.Oldest.UTC().Format("2006-01-02T15:04:05Z"))
		}
		fmt.Println()
	}
}

// openStore initializes the schema for SQL backends before handing back the store.
func openStore(ctx context.Context, cfg *config.Config) (ports.BlobStore, func(), error) {
	var (
		conn    *sql.DB
		dialect string
		err     error
	)

	switch cfg.CacheBackend {
	case config.BackendMemory:
		return nil, nil, errors.New("dbtool: the memory backend has nothing to manage")
	case config.BackendRedis:
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewRedisBlobStore(client), func() { client.Close() }, nil
	case config.BackendPostgres:
		conn, err = db.Open(cfg.DatabaseURL)
		dialect = cache.DialectPostgres
	default:
		conn, err = db.OpenSQLite(cfg.DBPath)
		dialect = cache.DialectSQLite
	}
	if err != nil {
		return nil, nil, err
	}

	log.Println("Initializing database schema...")
	if err := cache.InitSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("schema initialization failed: %w", err)
	}
	log.Println("Schema ready.")

	store, err := cache.NewSQLBlobStore(conn, dialect)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return store, func() { conn.Close() }, nil
}
