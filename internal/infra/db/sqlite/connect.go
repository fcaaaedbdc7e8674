// Package sqlite stores history in a local file, used by the CLI.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/bryanwahyu/webtaxon/internal/infra/db/sqlstore"

	_ "modernc.org/sqlite"
)

var Dialect = sqlstore.Dialect{
	Name: "sqlite",
	Schema: `
CREATE TABLE IF NOT EXISTS classification_history (
  seq            INTEGER PRIMARY KEY AUTOINCREMENT,
  id             TEXT NOT NULL UNIQUE,
  url            TEXT NOT NULL,
  url_type       TEXT NOT NULL,
  classification TEXT NULL,
  error          TEXT NOT NULL DEFAULT '',
  created_at     INTEGER NOT NULL
)`,
	Upsert: `ON CONFLICT (id) DO UPDATE SET
 url=excluded.url, url_type=excluded.url_type, classification=excluded.classification,
 error=excluded.error, created_at=excluded.created_at`,
}

// Open opens path (":memory:" works) and makes sure the schema exists.
func Open(ctx context.Context, path string) (*sql.DB, *sqlstore.HistoryRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, err
	}
	// one writer; also keeps a :memory: database on a single connection
	db.SetMaxOpenConns(1)

	repo := sqlstore.New(db, Dialect)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repo, nil
}
