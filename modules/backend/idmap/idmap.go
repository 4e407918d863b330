// Package idmap implements the persistent digest<->id table that §9's
// open question anticipates: "a persistent id map is a reasonable
// extension" so a LevelDB-style local backend does not need to re-walk
// its keyspace after a crash. It repurposes go-sql-driver/mysql, which in
// the teacher appears only inside the out-of-scope server ACL tables
// (pkg/serve/database) — here it backs a small, focused table instead.
package idmap

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/digest"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS attaca_idmap (
	digest BINARY(32) NOT NULL PRIMARY KEY,
	id BIGINT UNSIGNED NOT NULL UNIQUE
)`

// Table is a MySQL-backed backend.PersistentIDMap.
type Table struct {
	db *sql.DB
}

var _ backend.PersistentIDMap = (*Table)(nil)

// Open connects to dsn (a standard go-sql-driver/mysql DSN) and ensures the
// backing table exists.
func Open(ctx context.Context, dsn string) (*Table, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("idmap: open: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("idmap: create table: %w", err)
	}
	return &Table{db: db}, nil
}

func (t *Table) Lookup(ctx context.Context, d digest.Digest) (uint64, bool, error) {
	var id uint64
	err := t.db.QueryRowContext(ctx, `SELECT id FROM attaca_idmap WHERE digest = ?`, d[:]).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("idmap: lookup: %w", err)
	}
	return id, true, nil
}

func (t *Table) Store(ctx context.Context, d digest.Digest, id uint64) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT IGNORE INTO attaca_idmap (digest, id) VALUES (?, ?)`, d[:], id)
	if err != nil {
		return fmt.Errorf("idmap: store: %w", err)
	}
	return nil
}

func (t *Table) Close() error { return t.db.Close() }
