// Package sqlite implements the remote store on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db     *sql.DB
	logger *log.Logger
}

var _ store.RemoteStore = (*Store)(nil)

// DSN returns the connection string for dbPath with foreign keys enabled.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Open creates the database directory if needed, migrates the schema and
// returns a ready store.
func Open(dbPath string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := DSN(dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, err
	}

	if logger == nil {
		logger = log.Discard()
	}
	return &Store{db: db, logger: logger.WithComponent(log.ComponentStorage)}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) UpsertMonth(ctx context.Context, row store.MonthRow) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO months (user_id, month_key, label, salary1_cents, salary2_cents, closed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, month_key) DO UPDATE SET
			label = excluded.label,
			salary1_cents = excluded.salary1_cents,
			salary2_cents = excluded.salary2_cents,
			closed = excluded.closed,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id`,
		row.UserID, row.MonthID, row.Label, row.Salary1.Cents, row.Salary2.Cents, row.Closed,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert month %s: %w", row.MonthID, err)
	}
	return id, nil
}

func (s *Store) SelectMonths(ctx context.Context, userID string) ([]store.MonthRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, month_key, label, salary1_cents, salary2_cents, closed
		FROM months WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("select months: %w", err)
	}
	defer rows.Close()

	var out []store.MonthRow
	for rows.Next() {
		var m store.MonthRow
		if err := rows.Scan(&m.RowID, &m.UserID, &m.MonthID, &m.Label, &m.Salary1.Cents, &m.Salary2.Cents, &m.Closed); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) DeleteMonth(ctx context.Context, userID, monthID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM months WHERE user_id = ? AND month_key = ?`, userID, monthID)
	if err != nil {
		return fmt.Errorf("delete month %s: %w", monthID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("month %s: %w", monthID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) SelectExpensesByMonthRowIDs(ctx context.Context, userID string, rowIDs []int64) ([]store.ExpenseRow, error) {
	if len(rowIDs) == 0 {
		return nil, nil
	}
	args := append([]any{userID}, int64Args(rowIDs)...)
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.month_row_id, e.name, e.value_cents, e.category, e.date, e.type
		FROM expenses e JOIN months m ON m.id = e.month_row_id
		WHERE m.user_id = ? AND e.month_row_id IN (`+placeholders(len(rowIDs))+`)
		ORDER BY e.seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("select expenses: %w", err)
	}
	defer rows.Close()

	var out []store.ExpenseRow
	for rows.Next() {
		var (
			e    store.ExpenseRow
			date string
			typ  string
		)
		if err := rows.Scan(&e.ID, &e.MonthRowID, &e.Name, &e.Value.Cents, &e.Category, &date, &typ); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		e.Type = core.ExpenseType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) InsertExpenses(ctx context.Context, userID string, rows []store.ExpenseRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkOwned(ctx, tx, userID, rows); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO expenses (id, month_row_id, name, value_cents, category, date, type)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.ID, r.MonthRowID, r.Name, r.Value.Cents, r.Category, r.Date.String(), string(r.Type)); err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("expense %s: %w", r.ID, store.ErrConflict)
				}
				return fmt.Errorf("insert expense %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) UpsertExpenses(ctx context.Context, userID string, rows []store.ExpenseRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkOwned(ctx, tx, userID, rows); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO expenses (id, month_row_id, name, value_cents, category, date, type)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				value_cents = excluded.value_cents,
				category = excluded.category,
				date = excluded.date,
				type = excluded.type
			WHERE expenses.month_row_id = excluded.month_row_id`)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			res, err := stmt.ExecContext(ctx, r.ID, r.MonthRowID, r.Name, r.Value.Cents, r.Category, r.Date.String(), string(r.Type))
			if err != nil {
				return fmt.Errorf("upsert expense %s: %w", r.ID, err)
			}
			// An existing row under another month is left untouched.
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return fmt.Errorf("expense %s: %w", r.ID, store.ErrConflict)
			}
		}
		return nil
	})
}

func (s *Store) DeleteExpensesByIDs(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, userID)
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM expenses
		WHERE id IN (`+placeholders(len(ids))+`)
		AND month_row_id IN (SELECT id FROM months WHERE user_id = ?)`, args...)
	if err != nil {
		return fmt.Errorf("delete expenses: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpensesByMonthRowID(ctx context.Context, userID string, rowID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkOwned(ctx, tx, userID, []store.ExpenseRow{{MonthRowID: rowID}}); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE month_row_id = ?`, rowID); err != nil {
			return fmt.Errorf("delete expenses of month row %d: %w", rowID, err)
		}
		return nil
	})
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WarnContext(ctx, "Rollback failed", log.FieldError, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// checkOwned verifies every referenced month row belongs to userID.
func checkOwned(ctx context.Context, tx *sql.Tx, userID string, rows []store.ExpenseRow) error {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, r := range rows {
		if _, ok := seen[r.MonthRowID]; !ok {
			seen[r.MonthRowID] = struct{}{}
			ids = append(ids, r.MonthRowID)
		}
	}
	args := append([]any{userID}, int64Args(ids)...)
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM months WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`)`,
		args...).Scan(&n)
	if err != nil {
		return fmt.Errorf("check month ownership: %w", err)
	}
	if n != len(ids) {
		return store.ErrForbidden
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
