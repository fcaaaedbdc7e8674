// Package sqlstore implements the history repository over database/sql. The mysql,
// postgres and sqlite packages supply a Dialect and a connection.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/bryanwahyu/webtaxon/internal/domain/classification"
)

const Table = "classification_history"

// Dialect captures what differs between SQL engines.
type Dialect struct {
	Name string
	// Schema is the CREATE TABLE statement for Table.
	Schema string
	// Upsert is appended to the INSERT to overwrite an existing row with the same id.
	Upsert string
	// Numbered placeholders ($1, $2, ...) instead of ?.
	Numbered bool
}

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(q string) string {
	if !d.Numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type HistoryRepository struct {
	db *sql.DB
	d  Dialect
}

func New(db *sql.DB, d Dialect) *HistoryRepository {
	return &HistoryRepository{db: db, d: d}
}

// EnsureSchema creates the history table when missing.
func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, r.d.Schema); err != nil {
		return fmt.Errorf("%s: create %s: %w", r.d.Name, Table, err)
	}
	return nil
}

const columns = "id, url, url_type, classification, error, created_at"

// Save insert/update history entry
func (r *HistoryRepository) Save(ctx context.Context, e *domain.HistoryEntry) error {
	var (
		urlType string
		payload sql.NullString
	)
	if e.Classification != nil {
		b, err := json.Marshal(e.Classification)
		if err != nil {
			return err
		}
		payload = sql.NullString{String: string(b), Valid: true}
		urlType = e.Classification.URLType
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	q := "INSERT INTO " + Table + " (" + columns + ") VALUES (?,?,?,?,?,?) " + r.d.Upsert
	_, err := r.db.ExecContext(ctx, r.d.Rebind(q), e.ID, e.URL, urlType, payload, e.Error, created.UnixNano())
	return err
}

func (r *HistoryRepository) Get(ctx context.Context, id string) (*domain.HistoryEntry, error) {
	q := "SELECT " + columns + " FROM " + Table + " WHERE id=?"
	e, err := scanEntry(r.db.QueryRowContext(ctx, r.d.Rebind(q), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return e, err
}

// Paginate returns a page of entries, newest first
func (r *HistoryRepository) Paginate(ctx context.Context, page, pageSize int) ([]*domain.HistoryEntry, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	q := "SELECT " + columns + " FROM " + Table + " ORDER BY seq DESC LIMIT ? OFFSET ?"
	return r.list(ctx, r.d.Rebind(q), pageSize, offset)
}

// All returns every entry in insertion order.
func (r *HistoryRepository) All(ctx context.Context) ([]*domain.HistoryEntry, error) {
	return r.list(ctx, "SELECT "+columns+" FROM "+Table+" ORDER BY seq ASC")
}

func (r *HistoryRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+Table).Scan(&n)
	return n, err
}

func (r *HistoryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.d.Rebind("DELETE FROM "+Table+" WHERE id=?"), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *HistoryRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *HistoryRepository) list(ctx context.Context, q string, args ...any) ([]*domain.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.HistoryEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*domain.HistoryEntry, error) {
	var (
		e       domain.HistoryEntry
		urlType string
		payload sql.NullString
		created int64
	)
	if err := s.Scan(&e.ID, &e.URL, &urlType, &payload, &e.Error, &created); err != nil {
		return nil, err
	}
	if payload.Valid {
		var c domain.Classification
		if err := json.Unmarshal([]byte(payload.String), &c); err != nil {
			return nil, fmt.Errorf("decode classification %s: %w", e.ID, err)
		}
		e.Classification = &c
	}
	e.CreatedAt = time.Unix(0, created).UTC()
	return &e, nil
}
