// Package postgres implements the remote store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/store"
)

const uniqueViolation = "23505"

type Store struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

var _ store.RemoteStore = (*Store)(nil)

// Connect opens a pool on dsn, applies migrations and pings the server.
func Connect(ctx context.Context, dsn string, logger *log.Logger) (*Store, error) {
	if err := RunMigrations(dsn); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(pool, logger), nil
}

// New wraps an existing pool. The schema must already be migrated.
func New(pool *pgxpool.Pool, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{pool: pool, logger: logger.WithComponent(log.ComponentStorage)}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) UpsertMonth(ctx context.Context, row store.MonthRow) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO months (user_id, month_key, label, salary1, salary2, closed)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6)
		ON CONFLICT (user_id, month_key) DO UPDATE SET
			label = EXCLUDED.label,
			salary1 = EXCLUDED.salary1,
			salary2 = EXCLUDED.salary2,
			closed = EXCLUDED.closed,
			updated_at = now()
		RETURNING id`,
		row.UserID, row.MonthID, row.Label, numeric(row.Salary1), numeric(row.Salary2), row.Closed,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert month %s: %w", row.MonthID, err)
	}
	return id, nil
}

func (s *Store) SelectMonths(ctx context.Context, userID string) ([]store.MonthRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, month_key, label, salary1::text, salary2::text, closed
		FROM months WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("select months: %w", err)
	}
	defer rows.Close()

	var out []store.MonthRow
	for rows.Next() {
		var (
			m      store.MonthRow
			s1, s2 string
		)
		if err := rows.Scan(&m.RowID, &m.UserID, &m.MonthID, &m.Label, &s1, &s2, &m.Closed); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		if m.Salary1, err = money(s1); err != nil {
			return nil, fmt.Errorf("month %s salary1: %w", m.MonthID, err)
		}
		if m.Salary2, err = money(s2); err != nil {
			return nil, fmt.Errorf("month %s salary2: %w", m.MonthID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) DeleteMonth(ctx context.Context, userID, monthID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM months WHERE user_id = $1 AND month_key = $2`, userID, monthID)
	if err != nil {
		return fmt.Errorf("delete month %s: %w", monthID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("month %s: %w", monthID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) SelectExpensesByMonthRowIDs(ctx context.Context, userID string, rowIDs []int64) ([]store.ExpenseRow, error) {
	if len(rowIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT e.id, e.month_row_id, e.name, e.value::text, e.category, to_char(e.date, 'YYYY-MM-DD'), e.type
		FROM expenses e JOIN months m ON m.id = e.month_row_id
		WHERE m.user_id = $1 AND e.month_row_id = ANY($2)
		ORDER BY e.seq`, userID, rowIDs)
	if err != nil {
		return nil, fmt.Errorf("select expenses: %w", err)
	}
	defer rows.Close()

	var out []store.ExpenseRow
	for rows.Next() {
		var (
			e                store.ExpenseRow
			value, date, typ string
		)
		if err := rows.Scan(&e.ID, &e.MonthRowID, &e.Name, &value, &e.Category, &date, &typ); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Value, err = money(value); err != nil {
			return nil, fmt.Errorf("expense %s value: %w", e.ID, err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		e.Type = core.ExpenseType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

const insertExpenseSQL = `
	INSERT INTO expenses (id, month_row_id, name, value, category, date, type)
	VALUES ($1, $2, $3, $4::numeric, $5, $6::date, $7)`

func (s *Store) InsertExpenses(ctx context.Context, userID string, rows []store.ExpenseRow) error {
	if len(rows) == 0 {
		return nil
	}
	err := s.sendBatch(ctx, userID, rows, insertExpenseSQL)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("insert expenses: %w", store.ErrConflict)
	}
	return err
}

func (s *Store) UpsertExpenses(ctx context.Context, userID string, rows []store.ExpenseRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.sendBatch(ctx, userID, rows, insertExpenseSQL+`
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		value = EXCLUDED.value,
		category = EXCLUDED.category,
		date = EXCLUDED.date,
		type = EXCLUDED.type
	WHERE expenses.month_row_id = EXCLUDED.month_row_id`)
}

func (s *Store) DeleteExpensesByIDs(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		DELETE FROM expenses
		WHERE id = ANY($1) AND month_row_id IN (SELECT id FROM months WHERE user_id = $2)`, ids, userID)
	if err != nil {
		return fmt.Errorf("delete expenses: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpensesByMonthRowID(ctx context.Context, userID string, rowID int64) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := checkOwned(ctx, tx, userID, []int64{rowID}); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM expenses WHERE month_row_id = $1`, rowID); err != nil {
			return fmt.Errorf("delete expenses of month row %d: %w", rowID, err)
		}
		return nil
	})
}

// sendBatch queues one statement per row inside a transaction after
// checking month ownership. Every statement must affect exactly one row.
func (s *Store) sendBatch(ctx context.Context, userID string, rows []store.ExpenseRow, sql string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := checkOwned(ctx, tx, userID, monthRowIDs(rows)); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, r := range rows {
			args := []any{r.ID, r.MonthRowID, r.Name, numeric(r.Value), r.Category, r.Date.String(), string(r.Type)}
			batch.Queue(sql, args...)
		}
		br := tx.SendBatch(ctx, batch)
		for _, r := range rows {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return fmt.Errorf("write expense %s: %w", r.ID, err)
			}
			// A conflicting row under another month is left untouched.
			if tag.RowsAffected() == 0 {
				br.Close()
				return fmt.Errorf("expense %s: %w", r.ID, store.ErrConflict)
			}
		}
		return br.Close()
	})
}

func checkOwned(ctx context.Context, tx pgx.Tx, userID string, rowIDs []int64) error {
	var n int
	err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM months WHERE user_id = $1 AND id = ANY($2)`, userID, rowIDs).Scan(&n)
	if err != nil {
		return fmt.Errorf("check month ownership: %w", err)
	}
	if n != len(rowIDs) {
		return store.ErrForbidden
	}
	return nil
}

func monthRowIDs(rows []store.ExpenseRow) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, r := range rows {
		if _, ok := seen[r.MonthRowID]; !ok {
			seen[r.MonthRowID] = struct{}{}
			ids = append(ids, r.MonthRowID)
		}
	}
	return ids
}

// numeric renders cents as a NUMERIC(12,2) literal.
func numeric(m core.Money) string {
	return m.Decimal().StringFixed(2)
}

func money(s string) (core.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: %q", core.ErrInvalidAmount, s)
	}
	return core.MoneyFromDecimal(d)
}
