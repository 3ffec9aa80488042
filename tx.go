package dbmo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

// 提交失败后在同一连接上执行的回滚语句
const rollbackStatement = "ROLLBACK"

// Begin marks the start of a transaction. The backend transaction is opened by the next
// command; until then Commit and Rollback succeed without contacting the backend.
func (e *Engine) Begin() error {
	if e.txState != txNone {
		return ErrTransactionActive
	}
	e.txState = txPending
	return nil
}

// InTransaction reports whether Begin was called and not yet ended.
func (e *Engine) InTransaction() bool { return e.txState != txNone }

// Commit commits the active transaction. When the commit fails a ROLLBACK is sent on the same
// connection before the error is returned. The connection is released in every case.
func (e *Engine) Commit(ctx context.Context) (err error) {
	defer e.guard(&err)
	if e.tx == nil {
		e.txState = txNone
		return nil
	}
	start := time.Now()
	if cerr := e.tx.Commit(); cerr != nil {
		err = fmt.Errorf("%w: commit: %w", ErrTransaction, cerr)
		fields := map[string]any{"provider": e.shared.provider.Name(), "order": e.logOrder, "error": fixStringEncoding(cerr.Error())}
		if rerr := e.rollbackAfterCommit(ctx); rerr != nil {
			fields["rollback_error"] = fixStringEncoding(rerr.Error())
			err = fmt.Errorf("%w; rollback: %v", err, rerr)
		} else {
			fields["rollback"] = "ok"
		}
		logTo(e.shared.opts.Logger, LevelWarn, "rollback after failed commit", fields)
	}
	e.endTx(&Command{Text: "COMMIT"}, start, err)
	return err
}

// rollbackAfterCommit rolls back on the held connection once a failed Commit has closed the
// *sql.Tx. If the rollback fails too, the connection is discarded instead of returned to the
// pool, since its transaction state is unknown.
func (e *Engine) rollbackAfterCommit(ctx context.Context) error {
	_, err := e.conn.ExecContext(context.WithoutCancel(ctx), rollbackStatement)
	if err != nil {
		_ = e.conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	return err
}

// Rollback rolls back the active transaction and releases the connection.
func (e *Engine) Rollback(ctx context.Context) (err error) {
	defer e.guard(&err)
	if e.tx == nil {
		e.txState = txNone
		return nil
	}
	start := time.Now()
	if rerr := e.tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
		err = fmt.Errorf("%w: rollback: %w", ErrTransaction, rerr)
	}
	e.endTx(&Command{Text: "ROLLBACK"}, start, err)
	return err
}

// endTx clears the transaction and releases its connection exactly once.
func (e *Engine) endTx(cmd *Command, start time.Time, err error) {
	e.tx = nil
	e.txState = txNone
	if err != nil || e.verbose {
		e.report(cmd, start, err)
	}
	e.releaseConn()
}

// Transaction runs fn inside a transaction on e. fn's error, or a panic, rolls back; the panic
// is re-raised afterwards. Otherwise the transaction is committed.
func (e *Engine) Transaction(ctx context.Context, fn func(*Engine) error) (err error) {
	if err := e.Begin(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = e.Rollback(ctx)
			panic(r)
		}
	}()
	if err := fn(e); err != nil {
		if rerr := e.Rollback(ctx); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return e.Commit(ctx)
}
