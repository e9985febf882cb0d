package market_context

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/marketmind/marketmind/internal/database"
	"github.com/marketmind/marketmind/internal/domain"
)

// SnapshotStore persists the latest computed market context to the cache
// database so a restart inside the TTL window does not force a refetch.
// The payload is msgpack-encoded: compact and schema-free, so context shape
// changes don't require cache migrations (a stale blob just fails to decode
// and is discarded).
type SnapshotStore struct {
	db *database.DB
}

// NewSnapshotStore creates the store and its backing table.
func NewSnapshotStore(db *database.DB) (*SnapshotStore, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS market_context_snapshot (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			payload BLOB NOT NULL,
			saved_at TEXT NOT NULL
		)`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create market_context_snapshot table: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

// Save upserts the single snapshot row.
func (s *SnapshotStore) Save(ctx *domain.MarketContext) error {
	payload, err := msgpack.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to encode market context: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO market_context_snapshot (id, payload, saved_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		payload, ctx.AsOf.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save market context snapshot: %w", err)
	}

	return nil
}

// Load returns the persisted snapshot, or (nil, nil) when none exists or the
// payload no longer decodes.
func (s *SnapshotStore) Load() (*domain.MarketContext, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM market_context_snapshot WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load market context snapshot: %w", err)
	}

	var ctx domain.MarketContext
	if err := msgpack.Unmarshal(payload, &ctx); err != nil {
		// Shape changed since the blob was written; treat as a cache miss.
		return nil, nil
	}

	return &ctx, nil
}
