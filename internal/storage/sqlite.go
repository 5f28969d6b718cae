package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ledger/internal/core"

	_ "modernc.org/sqlite"
)

const (
	sqliteColumns = `id, user_id, title, amount_cents, category, created_at`

	sqliteListQuery = `SELECT ` + sqliteColumns + `
FROM transactions
WHERE user_id = ?
ORDER BY created_at DESC, id DESC`

	sqliteInsertQuery = `INSERT INTO transactions (user_id, title, amount_cents, category)
VALUES (?, ?, ?, ?)
RETURNING ` + sqliteColumns

	sqliteDeleteQuery = `DELETE FROM transactions WHERE id = ? RETURNING ` + sqliteColumns
)

// Amounts are stored as integer cents so SUM stays exact.
var sqliteSumQueries = map[sumKind]string{
	sumBalance:  `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE user_id = ?`,
	sumIncome:   `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE user_id = ? AND amount_cents > 0`,
	sumExpenses: `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE user_id = ? AND amount_cents < 0`,
}

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the SQLite database file at
// path and runs the startup migration.
func NewSQLiteRepository(ctx context.Context, path string, maxConns int) (*SQLiteRepository, error) {
	if isInMemorySQLite(path) {
		return nil, ErrInMemorySQLite
	}
	if dir := sqliteDir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := sqliteDSN(path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunSQLiteMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// sqliteDir returns the directory holding the database file, or "" when
// nothing needs creating.
func sqliteDir(path string) string {
	if strings.HasPrefix(path, "file:") {
		return ""
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}

// sqliteDSN adds a busy timeout so concurrent writers wait instead of
// failing with SQLITE_BUSY.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) List(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, sqliteListQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanSQLiteTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, n core.NewTransaction) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, sqliteInsertQuery, n.UserID, n.Title, n.Amount.Cents(), n.Category)
	t, err := scanSQLiteTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"user_id", t.UserID,
		"amount", t.Amount.String())

	return t, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanSQLiteTransaction(r.db.QueryRowContext(ctx, sqliteDeleteQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return t, nil
}

func (r *SQLiteRepository) Summary(ctx context.Context, userID string) (core.Summary, error) {
	return summarize(ctx, func(ctx context.Context, kind sumKind) (core.Amount, error) {
		var cents int64
		if err := r.db.QueryRowContext(ctx, sqliteSumQueries[kind], userID).Scan(&cents); err != nil {
			return core.Amount{}, fmt.Errorf("sum transactions: %w", err)
		}
		return core.AmountFromCents(cents), nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		cents     int64
		createdAt string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &cents, &t.Category, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(createdAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	t.Amount = core.AmountFromCents(cents)
	t.CreatedAt = date
	return t, nil
}
