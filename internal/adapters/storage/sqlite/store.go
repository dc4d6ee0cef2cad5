// Package sqlite persists order history in an embedded SQLite database via
// the pure-Go modernc.org/sqlite driver, so the binary needs no cgo.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/wallybot/wally-agent/internal/domain"
)

// Fixed-width variant of RFC3339 with nanoseconds. RFC3339Nano itself trims
// trailing fractional zeros, which breaks lexicographic ordering ("...00.5Z"
// sorts after "...00.51Z"); padding keeps string order chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	items      TEXT NOT NULL,
	total      REAL
);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at DESC, id DESC);
`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the order database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// The driver is in-process; a single connection sidesteps SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating orders schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(ctx context.Context, items []domain.ItemRequest, total *float64) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, domain.ErrEmptyOrder
	}

	order := &domain.Order{
		ID:        domain.OrderID(uuid.NewString()),
		CreatedAt: s.now().UTC(),
		Items:     items,
		Total:     total,
	}

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return nil, fmt.Errorf("encoding order items: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, created_at, items, total) VALUES (?, ?, ?, ?)`,
		string(order.ID),
		order.CreatedAt.Format(timeLayout),
		string(itemsJSON),
		totalArg(order.Total),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting order: %w", err)
	}

	return order, nil
}

func (s *Store) List(ctx context.Context, limit, offset int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	// The fixed-width timestamp sorts lexicographically for UTC values, so
	// string ordering matches chronological ordering; id desc breaks ties.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, items, total FROM orders
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return orders, nil
}

func (s *Store) Get(ctx context.Context, id domain.OrderID) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, items, total FROM orders WHERE id = ?`, string(id))

	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) MostRecent(ctx context.Context) (*domain.Order, error) {
	orders, err := s.List(ctx, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return orders[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		id        string
		createdAt string
		itemsJSON string
		total     sql.NullFloat64
	)
	if err := row.Scan(&id, &createdAt, &itemsJSON, &total); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning order row: %w", err)
	}

	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing order timestamp %q: %w", createdAt, err)
	}

	var items []domain.ItemRequest
	if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
		return nil, fmt.Errorf("decoding order items: %w", err)
	}

	order := &domain.Order{
		ID:        domain.OrderID(id),
		CreatedAt: ts,
		Items:     items,
	}
	if total.Valid {
		order.Total = &total.Float64
	}
	return order, nil
}

func totalArg(total *float64) any {
	if total == nil {
		return nil
	}
	return *total
}
