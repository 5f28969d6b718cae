package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledger/internal/core"
)

// Numeric and date columns are read back as text so decimals never pass
// through float64.
const (
	pgColumns = `id, user_id, title, amount::text, category, created_at::text`

	pgListQuery = `SELECT ` + pgColumns + `
FROM transactions
WHERE user_id = $1
ORDER BY created_at DESC, id DESC`

	pgInsertQuery = `INSERT INTO transactions (user_id, title, amount, category)
VALUES ($1, $2, $3, $4)
RETURNING ` + pgColumns

	// The cast keeps $1 a bigint when an adopted table has a SERIAL key, so
	// ids beyond int4 miss instead of failing to encode.
	pgDeleteQuery = `DELETE FROM transactions WHERE id = $1::bigint RETURNING ` + pgColumns
)

var pgSumQueries = map[sumKind]string{
	sumBalance:  `SELECT COALESCE(SUM(amount), 0)::text FROM transactions WHERE user_id = $1`,
	sumIncome:   `SELECT COALESCE(SUM(amount), 0)::text FROM transactions WHERE user_id = $1 AND amount > 0`,
	sumExpenses: `SELECT COALESCE(SUM(amount), 0)::text FROM transactions WHERE user_id = $1 AND amount < 0`,
}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects a pool to databaseURL and runs the startup
// migration.
func NewPostgresRepository(ctx context.Context, databaseURL string, maxConns int) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunPostgresMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) List(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, pgListQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanPostgresTransaction(rows)
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

func (r *PostgresRepository) Create(ctx context.Context, n core.NewTransaction) (core.Transaction, error) {
	row := r.pool.QueryRow(ctx, pgInsertQuery, n.UserID, n.Title, n.Amount.String(), n.Category)
	t, err := scanPostgresTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to Postgres",
		"id", t.ID,
		"user_id", t.UserID,
		"amount", t.Amount.String())

	return t, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanPostgresTransaction(r.pool.QueryRow(ctx, pgDeleteQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return t, nil
}

func (r *PostgresRepository) Summary(ctx context.Context, userID string) (core.Summary, error) {
	return summarize(ctx, func(ctx context.Context, kind sumKind) (core.Amount, error) {
		var total string
		if err := r.pool.QueryRow(ctx, pgSumQueries[kind], userID).Scan(&total); err != nil {
			return core.Amount{}, fmt.Errorf("sum transactions: %w", err)
		}
		return core.ParseAmount(total)
	})
}

func scanPostgresTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t         core.Transaction
		amount    string
		createdAt string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &amount, &t.Category, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	a, err := core.ParseAmount(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	date, err := core.ParseDate(createdAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	t.Amount = a
	t.CreatedAt = date
	return t, nil
}
