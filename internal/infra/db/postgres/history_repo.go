package postgres

import (
	"database/sql"

	"github.com/bryanwahyu/webtaxon/internal/infra/db/sqlstore"
)

var Dialect = sqlstore.Dialect{
	Name: "postgres",
	Schema: `
CREATE TABLE IF NOT EXISTS classification_history (
  seq            BIGSERIAL PRIMARY KEY,
  id             VARCHAR(64) NOT NULL UNIQUE,
  url            TEXT NOT NULL,
  url_type       VARCHAR(255) NOT NULL,
  classification TEXT NULL,
  error          TEXT NOT NULL DEFAULT '',
  created_at     BIGINT NOT NULL
)`,
	Upsert: `ON CONFLICT (id) DO UPDATE SET
 url=EXCLUDED.url, url_type=EXCLUDED.url_type, classification=EXCLUDED.classification,
 error=EXCLUDED.error, created_at=EXCLUDED.created_at`,
	Numbered: true,
}

func NewHistoryRepository(db *sql.DB) *sqlstore.HistoryRepository {
	return sqlstore.New(db, Dialect)
}
