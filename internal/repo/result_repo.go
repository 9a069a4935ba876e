package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/routecache/internal/db"
	"github.com/xxxsen/routecache/internal/model"
	"github.com/xxxsen/routecache/internal/pkg/dbutil"
)

// ResultStore owns persistence of cached route results. Keys are matched by
// exact text equality on both coordinate columns.
type ResultStore interface {
	Lookup(ctx context.Context, source, dest string) (string, bool, error)
	Insert(ctx context.Context, entry *model.CacheEntry) (int64, error)
	Delete(ctx context.Context, source, dest string) (int64, error)
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
	Ping(ctx context.Context) error
}

var _ ResultStore = (*ResultRepo)(nil)

type ResultRepo struct {
	db    *db.DB
	table string
}

func NewResultRepo(conn *db.DB, table string) *ResultRepo {
	return &ResultRepo{db: conn, table: table}
}

// Lookup returns the payload of the oldest row matching the key.
func (r *ResultRepo) Lookup(ctx context.Context, source, dest string) (string, bool, error) {
	where := map[string]interface{}{
		"source_coordinates": source,
		"dest_coordinates":   dest,
		"_orderby":           "id asc",
		"_limit":             []uint{0, 1},
	}
	sqlStr, args, err := builder.BuildSelect(r.table, where, []string{"alg_results"})
	if err != nil {
		return "", false, err
	}
	sqlStr, args = dbutil.Finalize(r.db.Dialect().BindType, sqlStr, args)
	var payload string
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return payload, true, nil
}

// Insert always adds a new row, even when the key is already present.
func (r *ResultRepo) Insert(ctx context.Context, entry *model.CacheEntry) (int64, error) {
	data := map[string]interface{}{
		"source_coordinates": entry.SourceCoordinates,
		"dest_coordinates":   entry.DestCoordinates,
		"alg_results":        entry.AlgResults,
		"ctime":              entry.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert(r.table, []map[string]interface{}{data})
	if err != nil {
		return 0, err
	}
	dialect := r.db.Dialect()
	if dialect.Returning {
		sqlStr += " RETURNING id"
	}
	sqlStr, args = dbutil.Finalize(dialect.BindType, sqlStr, args)
	if dialect.Returning {
		var id int64
		if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
			return 0, err
		}
		entry.ID = id
		return id, nil
	}
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	entry.ID = id
	return id, nil
}

// Delete removes every row matching the key and reports how many went away.
func (r *ResultRepo) Delete(ctx context.Context, source, dest string) (int64, error) {
	sqlStr, args, err := builder.BuildDelete(r.table, map[string]interface{}{
		"source_coordinates": source,
		"dest_coordinates":   dest,
	})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(r.db.Dialect().BindType, sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteBefore removes rows whose ctime is older than cutoff.
func (r *ResultRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args, err := builder.BuildDelete(r.table, map[string]interface{}{
		"ctime <": cutoff,
	})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(r.db.Dialect().BindType, sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ResultRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
