package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const insertTimeout = 2 * time.Second

// Entry is one executed node item.
type Entry struct {
	RequestID   string
	Operation   string
	ItemIndex   int
	Status      string
	Error       string
	Credential  string // fingerprint, never the raw key
	Duration    time.Duration
	CompletedAt time.Time
}

// Recorder persists execution entries.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}

// PGStore writes entries to the node_executions table.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore returns a store on db. A nil pool makes Record a no-op.
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// Record inserts e. Failures are logged and never surface to the caller.
func (s *PGStore) Record(ctx context.Context, e Entry) {
	if s.db == nil {
		return
	}
	if err := s.insert(ctx, e); err != nil {
		slog.Warn("audit insert failed",
			"error", err,
			"request_id", e.RequestID,
			"operation", e.Operation,
			"item", e.ItemIndex,
		)
	}
}

func (s *PGStore) insert(ctx context.Context, e Entry) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), insertTimeout)
	defer cancel()

	if e.CompletedAt.IsZero() {
		e.CompletedAt = time.Now()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO node_executions
			(request_id, operation, item_index, status, error, credential_fingerprint, duration_ms, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.RequestID, e.Operation, e.ItemIndex, e.Status, nilIfEmpty(e.Error), e.Credential, e.Duration.Milliseconds(), e.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert node_executions: %w", err)
	}
	return nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
