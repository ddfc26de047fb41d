package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"route-invoice-service/internal/platform/obs"
)

// SQL dialects understood by SQLBlobStore.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

var placeholderRe = regexp.MustCompile(`\$\d+`)

// SQLBlobStore persists namespaced blobs in a single table.
// The same queries serve SQLite and Postgres; only placeholders differ.
type SQLBlobStore struct {
	DB      *sql.DB
	dialect string
}

func NewSQLBlobStore(db *sql.DB, dialect string) (*SQLBlobStore, error) {
	switch dialect {
	case DialectSQLite, DialectPostgres:
	default:
		return nil, fmt.Errorf("sql blob store: unsupported dialect %q", dialect)
	}
	return &SQLBlobStore{DB: db, dialect: dialect}, nil
}

// Queries are written with $n placeholders; SQLite gets them rebound to ?.
func (s *SQLBlobStore) rebind(q string) string {
	if s.dialect == DialectSQLite {
		return placeholderRe.ReplaceAllString(q, "?")
	}
	return q
}

func (s *SQLBlobStore) Load(ctx context.Context, namespace string) (_ []byte, err error) {
	defer obs.Time(ctx, "blob.sql.Load")(&err)

	if s.DB == nil {
		return nil, errors.New("blob store: db is nil")
	}
	if strings.TrimSpace(namespace) == "" {
		return nil, errors.New("load blob: namespace must not be empty")
	}

	q := s.rebind(`
	SELECT payload
    FROM blob_store
    WHERE namespace = $1;
	`)

	var payload string
	err = s.DB.QueryRowContext(ctx, q, namespace).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load blob: query blob_store table: %w", err)
	}

	return []byte(payload), nil
}

func (s *SQLBlobStore) Save(ctx context.Context, namespace string, payload []byte) (err error) {
	defer obs.Time(ctx, "blob.sql.Save")(&err)

	if s.DB == nil {
		return errors.New("blob store: db is nil")
	}
	if strings.TrimSpace(namespace) == "" {
		return errors.New("save blob: namespace must not be empty")
	}

	q := s.rebind(`
	INSERT INTO blob_store (namespace, payload, updated_at)
    VALUES ($1, $2, $3)
	ON CONFLICT (namespace) DO UPDATE
	SET payload = EXCLUDED.payload,
		updated_at = EXCLUDED.updated_at;
	`)

	if _, err := s.DB.ExecContext(ctx, q, namespace, string(payload), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("save blob namespace=%q: %w", namespace, err)
	}

	return nil
}

func (s *SQLBlobStore) Delete(ctx context.Context, namespace string) error {
	if s.DB == nil {
		return errors.New("blob store: db is nil")
	}

	q := s.rebind(`DELETE FROM blob_store WHERE namespace = $1;`)
	if _, err := s.DB.ExecContext(ctx, q, namespace); err != nil {
		return fmt.Errorf("delete blob namespace=%q: %w", namespace, err)
	}

	return nil
}
