// Package sqlite stores conversion history in a local SQLite database through
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/tamil-braille/api/internal/domain"
	"github.com/tamil-braille/api/internal/platform/pagination"
	"github.com/tamil-braille/api/internal/repositories"
)

const driverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS conversions (
	id              TEXT PRIMARY KEY,
	owner_id        TEXT NOT NULL,
	tamil_text      TEXT NOT NULL,
	braille_pattern TEXT NOT NULL,
	liked           INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS conversions_owner_recent
	ON conversions (owner_id, created_at DESC, id DESC);
`

// ConversionRepository is the SQLite history backend.
type ConversionRepository struct {
	db *sql.DB
}

var _ repositories.ConversionRepository = (*ConversionRepository)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*ConversionRepository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite: database path is required")
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return &ConversionRepository{db: db}, nil
}

// Close closes the database handle.
func (r *ConversionRepository) Close() error {
	return r.db.Close()
}

// Ping verifies the database is reachable.
func (r *ConversionRepository) Ping(ctx context.Context) error {
	return wrapError("conversions.ping", r.db.PingContext(ctx))
}

func (r *ConversionRepository) SaveWithRetention(ctx context.Context, record domain.ConversionRecord, limit int) ([]string, error) {
	if record.ID == "" || record.OwnerID == "" {
		return nil, errors.New("sqlite: id and owner are required")
	}
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}
	pattern, err := json.Marshal(record.BraillePattern)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode pattern: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapError("conversions.save", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversions (id, owner_id, tamil_text, braille_pattern, liked, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.OwnerID, record.TamilText, string(pattern), record.Liked,
		record.CreatedAt.UnixNano(), record.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return nil, wrapError("conversions.save", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM conversions WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?`,
		record.OwnerID, limit,
	)
	if err != nil {
		return nil, wrapError("conversions.save", err)
	}
	var evicted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, wrapError("conversions.save", err)
		}
		evicted = append(evicted, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapError("conversions.save", err)
	}

	for _, id := range evicted {
		if _, err := tx.ExecContext(ctx, `DELETE FROM conversions WHERE id = ?`, id); err != nil {
			return nil, wrapError("conversions.evict", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, wrapError("conversions.save", err)
	}
	return evicted, nil
}

func (r *ConversionRepository) FindByID(ctx context.Context, ownerID, id string) (domain.ConversionRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, tamil_text, braille_pattern, liked, created_at, updated_at
		 FROM conversions WHERE id = ? AND owner_id = ?`, id, ownerID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ConversionRecord{}, notFound("conversions.get")
	}
	if err != nil {
		return domain.ConversionRecord{}, wrapError("conversions.get", err)
	}
	return record, nil
}

func (r *ConversionRepository) ListRecent(ctx context.Context, ownerID string, pager domain.Pagination) (domain.CursorPage[domain.ConversionRecord], error) {
	var page domain.CursorPage[domain.ConversionRecord]
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return page, err
	}
	size := pager.PageSize
	if size <= 0 {
		size = pagination.DefaultPageSize
	}

	query := `SELECT id, owner_id, tamil_text, braille_pattern, liked, created_at, updated_at
		FROM conversions WHERE owner_id = ?`
	args := []any{ownerID}
	if !cursor.IsZero() {
		at := cursor.CreatedAt.UnixNano()
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, at, at, cursor.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, size+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return page, wrapError("conversions.list", err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return page, wrapError("conversions.list", err)
		}
		if len(page.Items) == size {
			last := page.Items[size-1]
			page.NextPageToken = pagination.EncodeToken(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
			break
		}
		page.Items = append(page.Items, record)
	}
	if err := rows.Err(); err != nil {
		return page, wrapError("conversions.list", err)
	}
	return page, nil
}

func (r *ConversionRepository) Update(ctx context.Context, record domain.ConversionRecord) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversions SET liked = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		record.Liked, record.UpdatedAt.UnixNano(), record.ID, record.OwnerID)
	return affectedOne("conversions.update", res, err)
}

func (r *ConversionRepository) ToggleLiked(ctx context.Context, ownerID, id string, updatedAt time.Time) (domain.ConversionRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE conversions SET liked = NOT liked, updated_at = ? WHERE id = ? AND owner_id = ?
		 RETURNING id, owner_id, tamil_text, braille_pattern, liked, created_at, updated_at`,
		updatedAt.UnixNano(), id, ownerID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ConversionRecord{}, notFound("conversions.like")
	}
	if err != nil {
		return domain.ConversionRecord{}, wrapError("conversions.like", err)
	}
	return record, nil
}

func (r *ConversionRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversions WHERE id = ? AND owner_id = ?`, id, ownerID)
	return affectedOne("conversions.delete", res, err)
}

func (r *ConversionRepository) DeleteAll(ctx context.Context, ownerID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversions WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, wrapError("conversions.clear", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapError("conversions.clear", err)
	}
	return int(n), nil
}

func affectedOne(op string, res sql.Result, err error) error {
	if err != nil {
		return wrapError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapError(op, err)
	}
	if n == 0 {
		return notFound(op)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (domain.ConversionRecord, error) {
	var (
		record           domain.ConversionRecord
		pattern          string
		created, updated int64
	)
	if err := s.Scan(&record.ID, &record.OwnerID, &record.TamilText, &pattern, &record.Liked, &created, &updated); err != nil {
		return domain.ConversionRecord{}, err
	}
	if err := json.Unmarshal([]byte(pattern), &record.BraillePattern); err != nil {
		return domain.ConversionRecord{}, fmt.Errorf("decode pattern for %s: %w", record.ID, err)
	}
	record.CreatedAt = time.Unix(0, created).UTC()
	record.UpdatedAt = time.Unix(0, updated).UTC()
	return record, nil
}
