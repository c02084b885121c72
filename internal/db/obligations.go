package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/thedatamonk/spendly/internal/ledger"
)

var _ ledger.Store = (*DB)(nil)

const obligationColumns = `id, person_name, direction, kind, total_amount, expected_per_cycle,
	remaining_amount, status, note, group_id, created_at`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (db *DB) Create(ctx context.Context, o ledger.Obligation) (ledger.Obligation, error) {
	if err := ledger.Validate(o); err != nil {
		return ledger.Obligation{}, err
	}
	o = ledger.Prepare(o, db.now())
	_, err := db.pool.Exec(ctx,
		`INSERT INTO obligations (`+obligationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.PersonName, string(o.Direction), string(o.Kind), o.TotalAmount, o.ExpectedPerCycle,
		o.RemainingAmount, string(o.Status), o.Note, o.GroupID, o.CreatedAt,
	)
	if err != nil {
		return ledger.Obligation{}, fmt.Errorf("insert obligation: %w", err)
	}
	o.Transactions = []ledger.Transaction{}
	db.logger.Debug("obligation inserted", zap.String("obligation_id", o.ID))
	return o, nil
}

func (db *DB) Get(ctx context.Context, id string) (ledger.Obligation, error) {
	o, err := scanObligation(db.pool.QueryRow(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE id = $1`, id))
	if err != nil {
		return ledger.Obligation{}, err
	}
	if err := loadTransactions(ctx, db.pool, []*ledger.Obligation{&o}); err != nil {
		return ledger.Obligation{}, err
	}
	return o, nil
}

func (db *DB) List(ctx context.Context, status ledger.Status) ([]ledger.Obligation, error) {
	return db.list(ctx,
		`SELECT `+obligationColumns+` FROM obligations
		WHERE ($1 = '' OR status = $1) ORDER BY seq`,
		string(status))
}

func (db *DB) ListByPerson(ctx context.Context, name string, status ledger.Status) ([]ledger.Obligation, error) {
	return db.list(ctx,
		`SELECT `+obligationColumns+` FROM obligations
		WHERE lower(btrim(person_name)) = lower(btrim($1)) AND ($2 = '' OR status = $2) ORDER BY seq`,
		name, string(status))
}

func (db *DB) ApplyTransaction(ctx context.Context, id string, amount float64, note string) (ledger.Obligation, error) {
	now := db.now()
	return db.mutate(ctx, id, func(o *ledger.Obligation) error {
		return ledger.ApplyPayment(o, amount, note, now)
	})
}

func (db *DB) RecordPayment(ctx context.Context, id string, amount float64, note string) (ledger.Obligation, error) {
	now := db.now()
	return db.mutate(ctx, id, func(o *ledger.Obligation) error {
		return ledger.ApplyDirectPayment(o, amount, note, now)
	})
}

func (db *DB) Settle(ctx context.Context, id string) (ledger.Obligation, error) {
	now := db.now()
	return db.mutate(ctx, id, func(o *ledger.Obligation) error {
		ledger.MarkSettled(o, now)
		return nil
	})
}

func (db *DB) Edit(ctx context.Context, id string, c ledger.Changes) (ledger.Obligation, error) {
	return db.mutate(ctx, id, func(o *ledger.Obligation) error {
		return ledger.ApplyChanges(o, c)
	})
}

func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.pool.Exec(ctx, "DELETE FROM obligations WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete obligation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// mutate locks the row, applies fn and writes back the record together with
// any transactions fn appended.
func (db *DB) mutate(ctx context.Context, id string, fn func(*ledger.Obligation) error) (ledger.Obligation, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return ledger.Obligation{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanObligation(tx.QueryRow(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return ledger.Obligation{}, err
	}
	if err := loadTransactions(ctx, tx, []*ledger.Obligation{&o}); err != nil {
		return ledger.Obligation{}, err
	}
	before := len(o.Transactions)

	if err := fn(&o); err != nil {
		return ledger.Obligation{}, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE obligations SET person_name = $2, total_amount = $3, expected_per_cycle = $4,
			remaining_amount = $5, status = $6, note = $7
		WHERE id = $1`,
		o.ID, o.PersonName, o.TotalAmount, o.ExpectedPerCycle, o.RemainingAmount, string(o.Status), o.Note,
	)
	if err != nil {
		return ledger.Obligation{}, fmt.Errorf("update obligation: %w", err)
	}
	for _, t := range o.Transactions[before:] {
		if _, err := tx.Exec(ctx,
			`INSERT INTO obligation_transactions (obligation_id, amount, paid_at, note) VALUES ($1, $2, $3, $4)`,
			o.ID, t.Amount, t.PaidAt, t.Note,
		); err != nil {
			return ledger.Obligation{}, fmt.Errorf("insert transaction: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ledger.Obligation{}, fmt.Errorf("commit: %w", err)
	}
	return o, nil
}

func (db *DB) list(ctx context.Context, sql string, args ...any) ([]ledger.Obligation, error) {
	rows, err := db.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	defer rows.Close()

	obs := []ledger.Obligation{}
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}

	ptrs := make([]*ledger.Obligation, len(obs))
	for i := range obs {
		ptrs[i] = &obs[i]
	}
	if err := loadTransactions(ctx, db.pool, ptrs); err != nil {
		return nil, err
	}
	return obs, nil
}

func scanObligation(row pgx.Row) (ledger.Obligation, error) {
	var (
		o                       ledger.Obligation
		direction, kind, status string
	)
	err := row.Scan(&o.ID, &o.PersonName, &direction, &kind, &o.TotalAmount, &o.ExpectedPerCycle,
		&o.RemainingAmount, &status, &o.Note, &o.GroupID, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Obligation{}, ledger.ErrNotFound
		}
		return ledger.Obligation{}, fmt.Errorf("scan obligation: %w", err)
	}
	o.Direction = ledger.Direction(direction)
	o.Kind = ledger.Kind(kind)
	o.Status = ledger.Status(status)
	o.Transactions = []ledger.Transaction{}
	return o, nil
}

func loadTransactions(ctx context.Context, q querier, obs []*ledger.Obligation) error {
	if len(obs) == 0 {
		return nil
	}
	byID := make(map[string]*ledger.Obligation, len(obs))
	ids := make([]string, 0, len(obs))
	for _, o := range obs {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := q.Query(ctx,
		`SELECT obligation_id, amount, paid_at, note FROM obligation_transactions
		WHERE obligation_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id string
			t  ledger.Transaction
		)
		if err := rows.Scan(&id, &t.Amount, &t.PaidAt, &t.Note); err != nil {
			return fmt.Errorf("scan transaction: %w", err)
		}
		if o, ok := byID[id]; ok {
			o.Transactions = append(o.Transactions, t)
		}
	}
	return rows.Err()
}
