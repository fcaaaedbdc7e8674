package mysql

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"

	"github.com/bryanwahyu/webtaxon/internal/infra/db/sqlstore"
)

// Connect opens a pooled MySQL handle.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	return sqlstore.Open(ctx, "mysql", dsn, sqlstore.DefaultPool)
}
