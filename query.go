package dbmo

import (
	"context"
	"time"
)

// Query runs a statement and returns its rows as records. A statement that yields no rows
// returns (nil, nil).
//
//	recs, err := e.Query(ctx, "SELECT * FROM emp WHERE dept=@dept", dbmo.Args(10))
func (e *Engine) Query(ctx context.Context, sql string, p Params) (recs []*Record, err error) {
	defer e.guard(&err)
	cmd, err := e.prepare(sql, p)
	if err != nil {
		return nil, err
	}
	return e.queryCommand(ctx, cmd)
}

func (e *Engine) queryCommand(ctx context.Context, cmd *Command) ([]*Record, error) {
	repo, ttl := e.takeCache()
	var cache CacheProvider
	var key string
	if repo != "" && e.txState == txNone {
		cache = e.cacheProvider()
		key = cacheKey(e.shared.provider.Name(), cmd)
		if v, ok := cache.CacheGet(repo, key); ok {
			if recs, ok := cachedRecords(v); ok {
				if e.verbose {
					e.report(cmd, time.Now(), nil)
				}
				return nonEmpty(recs), nil
			}
		}
	}

	var recs []*Record
	err := e.execute(ctx, cmd, func(ex Executor) error {
		query, args, err := e.render(cmd)
		if err != nil {
			return err
		}
		rows, err := ex.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		recs, err = scanRecords(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	if cache != nil {
		stored := make([]*Record, len(recs))
		for i, r := range recs {
			stored[i] = r.Clone()
		}
		cache.CacheSet(repo, key, stored, ttl)
	}
	return nonEmpty(recs), nil
}

func nonEmpty(recs []*Record) []*Record {
	if len(recs) == 0 {
		return nil
	}
	return recs
}

// QueryFirst returns the first row, or nil when there is none.
func (e *Engine) QueryFirst(ctx context.Context, sql string, p Params) (*Record, error) {
	recs, err := e.Query(ctx, sql, p)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}

// QueryMap returns the rows as plain maps; nil when there are none.
func (e *Engine) QueryMap(ctx context.Context, sql string, p Params) ([]map[string]any, error) {
	recs, err := e.Query(ctx, sql, p)
	if err != nil || recs == nil {
		return nil, err
	}
	maps := make([]map[string]any, len(recs))
	for i, r := range recs {
		maps[i] = r.ToMap()
	}
	return maps, nil
}

// QueryAs runs a statement and maps every row onto a fresh T, a struct or pointer to struct.
// No rows returns (nil, nil); a column value that cannot be converted to its member returns
// an error matching ErrConversion.
func QueryAs[T any](ctx context.Context, e *Engine, sql string, p Params) (out []T, err error) {
	defer e.guard(&err)
	recs, err := e.Query(ctx, sql, p)
	if err != nil || recs == nil {
		return nil, err
	}
	out, err = mapRecords[T](recs)
	if err != nil {
		e.reportText(sql, err)
		return nil, err
	}
	return out, nil
}

// QueryFirstAs is QueryAs for the first row only. It returns the zero T and false when there
// are no rows.
func QueryFirstAs[T any](ctx context.Context, e *Engine, sql string, p Params) (T, bool, error) {
	var zero T
	rows, err := QueryAs[T](ctx, e, sql, p)
	if err != nil || len(rows) == 0 {
		return zero, false, err
	}
	return rows[0], true, nil
}

// Scalar returns the first column of the first row. NULL and no rows both return nil.
func (e *Engine) Scalar(ctx context.Context, sql string, p Params) (any, error) {
	r, err := e.QueryFirst(ctx, sql, p)
	if err != nil || r == nil {
		return nil, err
	}
	cols := r.Columns()
	if len(cols) == 0 {
		return nil, nil
	}
	return r.Get(cols[0]), nil
}

// Exec runs a statement that returns no rows and reports the number of affected rows.
func (e *Engine) Exec(ctx context.Context, sql string, p Params) (affected int64, err error) {
	defer e.guard(&err)
	cmd, err := e.prepare(sql, p)
	if err != nil {
		return 0, err
	}
	return e.execCommand(ctx, cmd)
}

func (e *Engine) execCommand(ctx context.Context, cmd *Command) (int64, error) {
	var affected int64
	err := e.execute(ctx, cmd, func(ex Executor) error {
		query, args, err := e.render(cmd)
		if err != nil {
			return err
		}
		res, err := ex.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// Insert completes an INSERT that lists only its columns with a VALUES clause of matching
// placeholders, then executes it:
//
//	e.Insert(ctx, "INSERT INTO emp (name, age)", dbmo.Entity(emp))
func (e *Engine) Insert(ctx context.Context, sqlHalf string, p Params) (affected int64, err error) {
	defer e.guard(&err)
	sql, err := CompleteInsert(sqlHalf, e.shared.provider.Syntax().Prefix)
	if err != nil {
		e.reportText(sqlHalf, err)
		return 0, err
	}
	return e.Exec(ctx, sql, p)
}

// Update completes an UPDATE written as "UPDATE t (a, b) WHERE ..." into a SET clause, then
// executes it.
func (e *Engine) Update(ctx context.Context, sqlHalf string, p Params) (affected int64, err error) {
	defer e.guard(&err)
	sql, err := CompleteUpdate(sqlHalf, e.shared.provider.Syntax().Prefix)
	if err != nil {
		e.reportText(sqlHalf, err)
		return 0, err
	}
	return e.Exec(ctx, sql, p)
}
