package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dukerupert/freshmate/internal/database"
	"github.com/dukerupert/freshmate/internal/grocery"
	"github.com/dukerupert/freshmate/internal/model"
)

// ItemStore keeps the inventory in the SQLite items table. Row order is
// preserved through the position column.
type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

func scanItem(scanner interface{ Scan(...any) error }) (*model.Item, error) {
	var it model.Item
	var unit, expiry string
	var reminderSent, expiredSent int

	err := scanner.Scan(&it.Owner, &it.Name, &it.Quantity, &unit, &it.Category, &expiry, &reminderSent, &expiredSent)
	if err != nil {
		return nil, err
	}

	d, err := model.ParseDate(expiry)
	if err != nil {
		return nil, err
	}
	it.Expiry = d
	it.Unit = model.Unit(unit)
	it.ReminderSent = reminderSent != 0
	it.ExpiredSent = expiredSent != 0
	if it.Category == "" {
		it.Category = grocery.Categorize(it.Name)
	}
	return &it, nil
}

const itemCols = `owner, name, quantity, unit, category, expiry, reminder_sent, expired_sent`

func (s *ItemStore) Load(ctx context.Context) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemCols+` FROM items ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// ListByOwner returns one owner's items in collection order using the
// (owner, name) index.
func (s *ItemStore) ListByOwner(ctx context.Context, owner string) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemCols+` FROM items WHERE owner = ? ORDER BY position ASC, id ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list items by owner: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// Save replaces every row in a single transaction.
func (s *ItemStore) Save(ctx context.Context, items []model.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO items (position, `+itemCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, it := range items {
		_, err := stmt.ExecContext(ctx,
			i, it.Owner, it.Name, it.Quantity, string(it.Unit), it.Category,
			model.FormatDate(it.Expiry), boolToInt(it.ReminderSent), boolToInt(it.ExpiredSent),
		)
		if err != nil {
			return fmt.Errorf("insert item %q: %w", it.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Snapshot writes a consistent copy of the database with VACUUM INTO and
// returns its bytes.
func (s *ItemStore) Snapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "freshmate-snapshot-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// Restore opens a snapshot, verifies its integrity, and replaces the current
// items with the snapshot's items.
func (s *ItemStore) Restore(ctx context.Context, data []byte) error {
	dir, err := os.MkdirTemp("", "freshmate-restore-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "restore.db")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	src, err := database.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer src.Close()

	if err := database.IntegrityCheck(ctx, src); err != nil {
		return err
	}

	items, err := NewItemStore(src).Load(ctx)
	if err != nil {
		return fmt.Errorf("read snapshot items: %w", err)
	}
	return s.Save(ctx, items)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
