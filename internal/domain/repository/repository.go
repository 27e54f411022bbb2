// Package repository defines the persistence interfaces and their Postgres
// implementations. Methods that participate in a service-owned transaction
// accept a *sql.Tx and fall back to the pool when it is nil.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
)

// dbtx is the subset of *sql.DB and *sql.Tx the repositories use.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func pick(db *sql.DB, tx *sql.Tx) dbtx {
	if tx != nil {
		return tx
	}
	return db
}

// Topics are stored as a JSONB array.
func encodeTopics(topics []string) []byte {
	if len(topics) == 0 {
		return []byte("[]")
	}
	raw, _ := json.Marshal(topics)
	return raw
}

func decodeTopics(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var topics []string
	if err := json.Unmarshal(raw, &topics); err != nil {
		return nil
	}
	return topics
}
