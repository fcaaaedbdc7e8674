package mysql

import (
	"database/sql"

	"github.com/bryanwahyu/webtaxon/internal/infra/db/sqlstore"
)

var Dialect = sqlstore.Dialect{
	Name: "mysql",
	Schema: `
CREATE TABLE IF NOT EXISTS classification_history (
  seq            BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
  id             VARCHAR(64) NOT NULL UNIQUE,
  url            TEXT NOT NULL,
  url_type       VARCHAR(255) NOT NULL,
  classification LONGTEXT NULL,
  error          TEXT NOT NULL,
  created_at     BIGINT NOT NULL,
  INDEX idx_classification_history_url_type (url_type)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	Upsert: `ON DUPLICATE KEY UPDATE
 url=VALUES(url), url_type=VALUES(url_type), classification=VALUES(classification),
 error=VALUES(error), created_at=VALUES(created_at)`,
}

func NewHistoryRepository(db *sql.DB) *sqlstore.HistoryRepository {
	return sqlstore.New(db, Dialect)
}
