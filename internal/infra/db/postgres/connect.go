package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/bryanwahyu/webtaxon/internal/infra/db/sqlstore"
)

// DSN builds a lib/pq connection string.
func DSN(host string, port int, user, password, name, sslMode string) string {
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, name, sslMode)
}

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	return sqlstore.Open(ctx, "postgres", dsn, sqlstore.DefaultPool)
}
