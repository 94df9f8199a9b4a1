// Package deliveries keeps a journal of accepted webhook deliveries.
package deliveries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/despachantemarcelino/hookd/internal/database"
	"github.com/despachantemarcelino/hookd/internal/events"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

var ErrNotFound = errors.New("delivery not found")

// Record is a journaled delivery.
type Record struct {
	ID         string          `json:"id"`
	Event      string          `json:"event"`
	Known      bool            `json:"known"`
	RequestID  string          `json:"request_id,omitempty"`
	RemoteAddr string          `json:"remote_addr,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// ListOptions filters List results.
type ListOptions struct {
	Event string
	Since time.Time
	Limit int
}

// Store handles database operations for the delivery journal.
type Store struct {
	db *database.DB
}

// NewStore creates a new delivery store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Observe records d. It lets the store subscribe to the webhook dispatcher.
func (s *Store) Observe(ctx context.Context, d *events.Delivery) error {
	return s.Record(ctx, d)
}

// Record inserts a delivery. Replays of the same payload produce separate rows.
func (s *Store) Record(ctx context.Context, d *events.Delivery) error {
	var data sql.NullString
	if len(d.Data) > 0 {
		data = sql.NullString{String: string(d.Data), Valid: true}
	}

	known := 0
	if d.Event.Kind().Known() {
		known = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_deliveries (id, event, known, request_id, remote_addr, data, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID,
		d.Event.Name(),
		known,
		d.RequestID,
		d.RemoteAddr,
		data,
		database.FormatTime(d.ReceivedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting delivery: %w", err)
	}

	return nil
}

// Get retrieves a delivery by ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, event, known, request_id, remote_addr, data, received_at
		FROM webhook_deliveries
		WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("getting delivery: %w", err)
	}

	return rec, nil
}

// List returns deliveries newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	var where []string
	var args []any

	if opts.Event != "" {
		where = append(where, "event = ?")
		args = append(args, opts.Event)
	}
	if !opts.Since.IsZero() {
		where = append(where, "received_at >= ?")
		args = append(args, database.FormatTime(opts.Since))
	}

	query := `SELECT id, event, known, request_id, remote_addr, data, received_at FROM webhook_deliveries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY received_at DESC, id DESC LIMIT ?"
	args = append(args, clampLimit(opts.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery row: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating delivery rows: %w", err)
	}

	return records, nil
}

// CountByEvent returns the number of journaled deliveries per event name.
func (s *Store) CountByEvent(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event, COUNT(*) FROM webhook_deliveries GROUP BY event`)
	if err != nil {
		return nil, fmt.Errorf("counting deliveries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var event string
		var n int
		if err := rows.Scan(&event, &n); err != nil {
			return nil, fmt.Errorf("scanning delivery count: %w", err)
		}
		counts[event] = n
	}

	return counts, rows.Err()
}

// DeleteBefore removes deliveries received before cutoff and returns how
// many were removed.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM webhook_deliveries WHERE received_at < ?`, database.FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting deliveries: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted deliveries: %w", err)
	}

	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var known int
	var data sql.NullString
	var receivedAt string

	if err := row.Scan(
		&rec.ID,
		&rec.Event,
		&known,
		&rec.RequestID,
		&rec.RemoteAddr,
		&data,
		&receivedAt,
	); err != nil {
		return nil, err
	}

	rec.Known = known == 1
	if data.Valid && data.String != "" {
		rec.Data = json.RawMessage(data.String)
	}

	t, err := time.Parse(database.TimeLayout, receivedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing received_at: %w", err)
	}
	rec.ReceivedAt = t

	return &rec, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
