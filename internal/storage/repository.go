// Package storage is the SQLite backend. It implements the same ledger and
// budget store ports as the Google Sheets adapter, so a local database can
// stand in for the spreadsheet wholesale.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"kharcha/internal/budget"
	"kharcha/internal/classify"
	"kharcha/internal/ledger"
)

type SQLiteRepository struct {
	db *sql.DB
}

// Ensure interface conformance
var (
	_ ledger.Store = (*SQLiteRepository)(nil)
	_ budget.Store = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- ledger.Store ---

func (r *SQLiteRepository) ListPartitions(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT title FROM partitions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan partition title: %w", err)
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

func (r *SQLiteRepository) CreatePartition(ctx context.Context, title string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO partitions (title) VALUES (?) ON CONFLICT(title) DO NOTHING`, title)
	if err != nil {
		return fmt.Errorf("create partition %q: %w", title, err)
	}
	return nil
}

func (r *SQLiteRepository) ReadHeader(ctx context.Context, title string) ([]string, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT header FROM partitions WHERE title = ?`, title).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("partition %q not found", title)
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %q: %w", title, err)
	}
	if raw == "" {
		return nil, nil
	}
	var header []string
	if err := json.Unmarshal([]byte(raw), &header); err != nil {
		return nil, fmt.Errorf("decode header of %q: %w", title, err)
	}
	return header, nil
}

func (r *SQLiteRepository) WriteHeader(ctx context.Context, title string, header []string) error {
	raw, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE partitions SET header = ? WHERE title = ?`, string(raw), title)
	if err != nil {
		return fmt.Errorf("write header of %q: %w", title, err)
	}
	return requireRow(res, title)
}

func (r *SQLiteRepository) FormatHeader(ctx context.Context, title string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE partitions SET formatted = 1 WHERE title = ?`, title)
	if err != nil {
		return fmt.Errorf("format header of %q: %w", title, err)
	}
	return requireRow(res, title)
}

func (r *SQLiteRepository) FreezeRows(ctx context.Context, title string, n int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE partitions SET frozen_rows = ? WHERE title = ?`, n, title)
	if err != nil {
		return fmt.Errorf("freeze rows of %q: %w", title, err)
	}
	return requireRow(res, title)
}

func (r *SQLiteRepository) AppendRow(ctx context.Context, title string, row []string) error {
	if len(row) < 5 {
		return fmt.Errorf("append to %q: want 5 columns, got %d", title, len(row))
	}
	id, err := r.partitionID(ctx, title)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO entries (partition_id, amount, entry_date, entry_type, notes, category)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, row[0], row[1], row[2], row[3], row[4])
	if err != nil {
		return fmt.Errorf("append row to %q: %w", title, err)
	}
	return nil
}

func (r *SQLiteRepository) ReadRows(ctx context.Context, title string) ([][]string, error) {
	header, err := r.ReadHeader(ctx, title)
	if err != nil {
		return nil, err
	}
	id, err := r.partitionID(ctx, title)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT amount, entry_date, entry_type, notes, category
		 FROM entries WHERE partition_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("read rows of %q: %w", title, err)
	}
	defer rows.Close()

	var out [][]string
	if len(header) > 0 {
		out = append(out, header)
	}
	for rows.Next() {
		row := make([]string, 5)
		if err := rows.Scan(&row[0], &row[1], &row[2], &row[3], &row[4]); err != nil {
			return nil, fmt.Errorf("scan entry of %q: %w", title, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateRow(ctx context.Context, title string, index int, row []string) error {
	if len(row) < 5 {
		return fmt.Errorf("update in %q: want 5 columns, got %d", title, len(row))
	}
	entryID, err := r.entryIDAt(ctx, title, index)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE entries SET amount = ?, entry_date = ?, entry_type = ?, notes = ?, category = ?
		 WHERE id = ?`,
		row[0], row[1], row[2], row[3], row[4], entryID)
	if err != nil {
		return fmt.Errorf("update row %d of %q: %w", index, title, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteRow(ctx context.Context, title string, index int) error {
	entryID, err := r.entryIDAt(ctx, title, index)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("delete row %d of %q: %w", index, title, err)
	}
	return nil
}

func (r *SQLiteRepository) partitionID(ctx context.Context, title string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM partitions WHERE title = ?`, title).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("partition %q not found", title)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup partition %q: %w", title, err)
	}
	return id, nil
}

// entryIDAt resolves a 1-based row index (row 1 is the header) to an entry id.
func (r *SQLiteRepository) entryIDAt(ctx context.Context, title string, index int) (int64, error) {
	if index < 2 {
		return 0, fmt.Errorf("row %d of %q: out of range", index, title)
	}
	pid, err := r.partitionID(ctx, title)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.db.QueryRowContext(ctx,
		`SELECT id FROM entries WHERE partition_id = ? ORDER BY id LIMIT 1 OFFSET ?`,
		pid, index-2).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("row %d of %q: out of range", index, title)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve row %d of %q: %w", index, title, err)
	}
	return id, nil
}

func requireRow(res sql.Result, title string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("partition %q not found", title)
	}
	return nil
}

// --- budget.Store ---

func (r *SQLiteRepository) EnsureYear(ctx context.Context, year int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ensure year: %w", err)
	}
	defer tx.Rollback()

	for _, t := range classify.DefaultTargets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO budget_targets (year, category, cents) VALUES (?, ?, ?)
			 ON CONFLICT(year, category) DO NOTHING`,
			year, t.Category, t.Cents); err != nil {
			return fmt.Errorf("seed target %s/%d: %w", t.Category, year, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) Cell(ctx context.Context, year int, month time.Month, category string) (int64, bool, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT cents FROM budget_cells WHERE year = ? AND month = ? AND category = ?`,
		year, int(month), category).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read budget cell %s %s/%d: %w", category, month, year, err)
	}
	return cents, true, nil
}

func (r *SQLiteRepository) SetCell(ctx context.Context, year int, month time.Month, category string, cents int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budget_cells (year, month, category, cents) VALUES (?, ?, ?, ?)
		 ON CONFLICT(year, month, category) DO UPDATE SET cents = excluded.cents`,
		year, int(month), category, cents)
	if err != nil {
		return fmt.Errorf("write budget cell %s %s/%d: %w", category, month, year, err)
	}
	return nil
}

func (r *SQLiteRepository) Targets(ctx context.Context, year int) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, cents FROM budget_targets WHERE year = ?`, year)
	if err != nil {
		return nil, fmt.Errorf("read budget targets for %d: %w", year, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var category string
		var cents int64
		if err := rows.Scan(&category, &cents); err != nil {
			return nil, fmt.Errorf("scan budget target: %w", err)
		}
		out[category] = cents
	}
	return out, rows.Err()
}
