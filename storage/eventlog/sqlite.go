// Package eventlog keeps an append-only journal of committed ledger events in
// SQLite so clients can page through the audit trail.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"questchain/core/types"
)

const (
	// DefaultLimit applies when a filter does not request a page size.
	DefaultLimit = 100
	// MaxLimit caps the page size of a single List call.
	MaxLimit = 500
)

var errClosed = errors.New("eventlog: store closed")

// Record is a journaled event together with its position in the ledger.
type Record struct {
	Sequence int64       `json:"sequence"`
	Height   uint64      `json:"height"`
	Time     uint64      `json:"time"`
	Index    int         `json:"index"`
	Sender   string      `json:"sender"`
	Event    types.Event `json:"event"`
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Type    string
	QuestID *uint64
	// After returns only records with a sequence strictly greater than it.
	After int64
	Limit int
}

// Store persists events in a single SQLite table.
type Store struct {
	db *sql.DB
}

// Open opens or creates the journal at path. ":memory:" yields a private
// in-memory journal.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers; one connection also keeps :memory: coherent.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS events (
            sequence INTEGER PRIMARY KEY AUTOINCREMENT,
            height INTEGER NOT NULL,
            block_time INTEGER NOT NULL,
            idx INTEGER NOT NULL,
            sender TEXT NOT NULL,
            type TEXT NOT NULL,
            quest_id INTEGER,
            attributes TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS events_type ON events(type, sequence);`,
		`CREATE INDEX IF NOT EXISTS events_quest ON events(quest_id, sequence);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("eventlog: init schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func questIDOf(evt *types.Event) sql.NullInt64 {
	raw, ok := evt.Attr("quest_id")
	if !ok {
		return sql.NullInt64{}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

// Append journals the events of one committed call in a single transaction,
// preserving their order.
func (s *Store) Append(ctx context.Context, height, blockTime uint64, sender string, evts []types.Event) error {
	if s == nil || s.db == nil {
		return errClosed
	}
	if len(evts) == 0 {
		return nil
	}
	const stmt = `INSERT INTO events(height, block_time, idx, sender, type, quest_id, attributes, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	now := time.Now().UTC()
	for i := range evts {
		attrs := evts[i].Attributes
		if attrs == nil {
			attrs = []types.Attribute{}
		}
		payload, err := json.Marshal(attrs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt, int64(height), int64(blockTime), i, sender, evts[i].Type, questIDOf(&evts[i]), string(payload), now); err != nil {
			return fmt.Errorf("eventlog: insert: %w", err)
		}
	}
	return tx.Commit()
}

// List returns journaled events in ascending sequence order.
func (s *Store) List(ctx context.Context, filter Filter) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, errClosed
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	query := `SELECT sequence, height, block_time, idx, sender, type, attributes FROM events WHERE sequence > ?`
	args := []any{filter.After}
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, filter.Type)
	}
	if filter.QuestID != nil {
		query += ` AND quest_id = ?`
		args = append(args, int64(*filter.QuestID))
	}
	query += ` ORDER BY sequence ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			rec     Record
			height  int64
			blockTs int64
			payload string
		)
		if err := rows.Scan(&rec.Sequence, &height, &blockTs, &rec.Index, &rec.Sender, &rec.Event.Type, &payload); err != nil {
			return nil, err
		}
		rec.Height = uint64(height)
		rec.Time = uint64(blockTs)
		if err := json.Unmarshal([]byte(payload), &rec.Event.Attributes); err != nil {
			return nil, fmt.Errorf("eventlog: decode sequence %d: %w", rec.Sequence, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LastSequence returns the highest sequence written, zero when empty.
func (s *Store) LastSequence(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errClosed
	}
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM events`)
	var seq int64
	if err := row.Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}
