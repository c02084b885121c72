package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	now    func() time.Time
}

func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool, logger: logger, now: time.Now}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// RunMigrations creates the ledger tables if they do not exist yet.
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS obligations (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			person_name TEXT NOT NULL,
			direction TEXT NOT NULL DEFAULT 'owed_to_owner' CHECK (direction IN ('owed_to_owner', 'owner_owes')),
			kind TEXT NOT NULL DEFAULT 'one_time' CHECK (kind IN ('one_time', 'recurring')),
			total_amount DOUBLE PRECISION NOT NULL CHECK (total_amount > 0),
			expected_per_cycle DOUBLE PRECISION,
			remaining_amount DOUBLE PRECISION NOT NULL CHECK (remaining_amount >= 0),
			status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'settled')),
			note TEXT NOT NULL DEFAULT '',
			group_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_obligations_person ON obligations (lower(btrim(person_name)), status);
		CREATE INDEX IF NOT EXISTS idx_obligations_status ON obligations (status);

		CREATE TABLE IF NOT EXISTS obligation_transactions (
			id BIGSERIAL PRIMARY KEY,
			obligation_id TEXT NOT NULL REFERENCES obligations(id) ON DELETE CASCADE,
			amount DOUBLE PRECISION NOT NULL CHECK (amount > 0),
			paid_at TIMESTAMPTZ NOT NULL,
			note TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_obligation_transactions_obligation ON obligation_transactions(obligation_id);
	`)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	db.logger.Info("database migrations applied")
	return nil
}
