// Package storage persists the single delivery-settings record and the
// append-only dispatch history.
//
// Drivers:
//   - "sqlite": SQLite database file (default)
//   - "postgres": PostgreSQL via pgx (dsn required)
//   - "file": dependency-free JSON files (settings snapshot + history jsonl)
package storage
