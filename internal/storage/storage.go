// Package storage is the data access layer of the ledger. It translates
// repository calls into parameterized SQL against a single transactions
// table, on either SQLite or PostgreSQL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ledger/internal/core"
)

// ErrNotFound is returned when no transaction matches the requested id.
var ErrNotFound = errors.New("transaction not found")

// ErrInMemorySQLite rejects SQLite DSNs whose data lives only inside one
// connection. The startup migration and the pool would each see their own
// empty database.
var ErrInMemorySQLite = errors.New("in-memory sqlite databases are not supported")

// Repository is the storage contract used by the service layer. Each
// method issues one SQL statement, except Summary which issues three.
type Repository interface {
	List(ctx context.Context, userID string) ([]core.Transaction, error)
	Create(ctx context.Context, t core.NewTransaction) (core.Transaction, error)
	Delete(ctx context.Context, id int64) (core.Transaction, error)
	Summary(ctx context.Context, userID string) (core.Summary, error)
	Ping(ctx context.Context) error
	Close() error
}

// Backend identifies the database engine behind a connection string.
type Backend string

const (
	SQLiteBackend   Backend = "sqlite"
	PostgresBackend Backend = "postgres"
)

// String implements fmt.Stringer
func (b Backend) String() string {
	return string(b)
}

// Options configures Open.
type Options struct {
	DatabaseURL string
	MaxConns    int
}

// ParseDatabaseURL selects the backend for a connection string and returns
// the backend-specific DSN. postgres:// and postgresql:// URLs select
// PostgreSQL; sqlite:// URLs, file: URIs and bare paths select SQLite.
func ParseDatabaseURL(raw string) (Backend, string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return "", "", errors.New("empty database url")
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return PostgresBackend, raw, nil
	case strings.HasPrefix(raw, "sqlite://"):
		return sqlitePath(strings.TrimPrefix(raw, "sqlite://"))
	case strings.HasPrefix(raw, "sqlite:"):
		return sqlitePath(strings.TrimPrefix(raw, "sqlite:"))
	case strings.HasPrefix(raw, "file:"):
		return sqlitePath(raw)
	case strings.Contains(raw, "://"):
		return "", "", fmt.Errorf("unsupported database url scheme in %q", raw[:strings.Index(raw, "://")])
	default:
		return sqlitePath(raw)
	}
}

func sqlitePath(path string) (Backend, string, error) {
	if path == "" {
		return "", "", errors.New("empty sqlite path")
	}
	if isInMemorySQLite(path) {
		return "", "", ErrInMemorySQLite
	}
	return SQLiteBackend, path, nil
}

func isInMemorySQLite(dsn string) bool {
	name := strings.TrimPrefix(dsn, "file:")
	if strings.HasPrefix(name, ":memory:") || name == "" {
		return true
	}
	_, query, _ := strings.Cut(dsn, "?")
	for _, param := range strings.Split(query, "&") {
		if param == "mode=memory" {
			return true
		}
	}
	return false
}

// Open connects to the database named by opts.DatabaseURL, verifies the
// connection and creates the transactions table if it is missing.
func Open(ctx context.Context, opts Options) (Repository, Backend, error) {
	backend, dsn, err := ParseDatabaseURL(opts.DatabaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("parse database url: %w", err)
	}

	var repo Repository
	switch backend {
	case PostgresBackend:
		repo, err = NewPostgresRepository(ctx, dsn, opts.MaxConns)
	default:
		repo, err = NewSQLiteRepository(ctx, dsn, opts.MaxConns)
	}
	if err != nil {
		return nil, backend, err
	}

	slog.InfoContext(ctx, "Database ready", "backend", backend.String(), "max_conns", opts.MaxConns)
	return repo, backend, nil
}
