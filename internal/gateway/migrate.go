package gateway

import (
	"context"
	"fmt"
	"time"
)

func (s *Server) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS protocol_events (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  at TEXT NOT NULL,
  payload_json TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_protocol_events_type_at ON protocol_events(type, at DESC);`,
		`
CREATE TABLE IF NOT EXISTS transfers (
  event_id TEXT PRIMARY KEY REFERENCES protocol_events(id),
  token TEXT NOT NULL,
  from_account TEXT NOT NULL,
  to_account TEXT NOT NULL,
  amount TEXT NOT NULL,
  at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_token_at ON transfers(token, at DESC);`,
		`
CREATE TABLE IF NOT EXISTS controller_changes (
  event_id TEXT PRIMARY KEY REFERENCES protocol_events(id),
  claim_token TEXT NOT NULL,
  old_controller TEXT NOT NULL,
  new_controller TEXT NOT NULL,
  at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_controller_changes_token_at ON controller_changes(claim_token, at DESC);`,
		`
CREATE TABLE IF NOT EXISTS bids (
  event_id TEXT PRIMARY KEY REFERENCES protocol_events(id),
  lot_id INTEGER NOT NULL,
  bidder TEXT NOT NULL,
  amount TEXT NOT NULL,
  at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_bids_lot_at ON bids(lot_id, at DESC);`,
		`
CREATE TABLE IF NOT EXISTS settlements (
  event_id TEXT PRIMARY KEY REFERENCES protocol_events(id),
  lot_id INTEGER NOT NULL,
  account TEXT NOT NULL,
  role TEXT NOT NULL,
  at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_settlements_lot ON settlements(lot_id);`,
	}

	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate exec failed: %w", err)
		}
	}
	return nil
}
