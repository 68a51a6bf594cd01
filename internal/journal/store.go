package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store wraps the journal database.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the journal database at path and
// ensures required tables exist.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	// Basic health check + apply a few safe pragmas.
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if err := bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already-open database (tests).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// bootstrap creates tables/indexes if missing.
func bootstrap(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS outcome_journal (
  id          TEXT PRIMARY KEY,
  delivery_id TEXT NOT NULL,
  mode        TEXT NOT NULL,
  status      TEXT NOT NULL,
  item        TEXT,
  amount      REAL,
  date        TEXT,
  detail      TEXT,
  created_at  TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS outcome_journal_created_at_idx ON outcome_journal(created_at);`,
		`CREATE INDEX IF NOT EXISTS outcome_journal_delivery_idx ON outcome_journal(delivery_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap journal: %w", err)
		}
	}
	return nil
}

// Record inserts one outcome row and returns its ID.
func (s *Store) Record(ctx context.Context, req RecordRequest) (string, error) {
	if req.DeliveryID == "" {
		return "", fmt.Errorf("delivery_id is empty")
	}
	if req.Status == "" {
		return "", fmt.Errorf("status is empty")
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx, `
INSERT INTO outcome_journal(id, delivery_id, mode, status, item, amount, date, detail, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
`, id, req.DeliveryID, req.Mode, string(req.Status), req.Item, req.Amount, req.Date, req.Detail, now)
	if err != nil {
		return "", fmt.Errorf("record outcome: %w", err)
	}
	return id, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, delivery_id, mode, status, item, amount, date, detail, created_at
FROM outcome_journal
ORDER BY created_at DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var status, createdAt string
		if err := rows.Scan(&e.ID, &e.DeliveryID, &e.Mode, &status, &e.Item, &e.Amount, &e.Date, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Status = Status(status)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByStatus returns how many entries carry each status, for the watch
// header.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT status, COUNT(*) FROM outcome_journal GROUP BY status;
`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}
