// Package postgres 提供PostgreSQL数据库支持
// 使用 github.com/jackc/pgx/v5/stdlib 驱动（推荐，高性能）
//
// 语句中写 @name，执行前改写为 $1, $2 ...，同名参数共用一个序号
package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mirrortom/dbmo"
)

// Name is the provider name reported in diagnostics.
const Name = "postgres"

type provider struct {
	syntax dbmo.Syntax
}

// New returns the PostgreSQL provider.
func New() dbmo.Provider {
	return &provider{syntax: dbmo.AtSyntax}
}

// Open returns an engine for connString, a URL or key=value DSN understood by pgx.
func Open(connString string, opts ...dbmo.Option) (*dbmo.Engine, error) {
	return dbmo.New(New(), connString, opts...)
}

func (p *provider) Name() string { return Name }

func (p *provider) Syntax() dbmo.Syntax { return p.syntax }

// NewConnection parses connString with pgx so configuration errors surface before the ping.
func (p *provider) NewConnection(connString string) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	return stdlib.OpenDB(*cfg), nil
}

func (p *provider) NewCommand(text string) *dbmo.Command { return dbmo.NewCommand(text, p.syntax) }

func (p *provider) NewParameter(name string, value any) *dbmo.Parameter {
	return dbmo.NewInputParameter(name, value)
}

func (p *provider) NewOutputParameter(name string, dbType dbmo.DbType) *dbmo.Parameter {
	return dbmo.NewOutputParameter(name, dbType)
}

func (p *provider) Render(cmd *dbmo.Command) (string, []any, error) {
	if cmd.Kind == dbmo.CommandProcedure {
		return callText(cmd), callArgs(cmd), nil
	}
	return dbmo.RenderOrdinal(cmd, "$")
}

// CallProcedure runs CALL proc($1, ..., NULL) with NULL in every output position. PostgreSQL
// returns the OUT and INOUT values as a single row, in declaration order.
func (p *provider) CallProcedure(ctx context.Context, ex dbmo.Executor, cmd *dbmo.Command) (int64, error) {
	outs := dbmo.OutputParameters(cmd)
	rows, err := ex.QueryContext(ctx, callText(cmd), callArgs(cmd)...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if len(outs) == 0 || !rows.Next() {
		return 0, rows.Err()
	}
	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return 0, err
	}
	for i, prm := range outs {
		if i >= len(values) {
			break
		}
		if err := prm.SetResult(values[i]); err != nil {
			return 0, err
		}
	}
	return 0, rows.Err()
}

func callText(cmd *dbmo.Command) string {
	marks := make([]string, 0, len(cmd.Parameters))
	n := 0
	for _, prm := range cmd.Parameters {
		if prm.Direction == dbmo.Output {
			marks = append(marks, "NULL")
			continue
		}
		n++
		marks = append(marks, "$"+strconv.Itoa(n))
	}
	return "CALL " + cmd.Text + "(" + strings.Join(marks, ", ") + ")"
}

func callArgs(cmd *dbmo.Command) []any {
	in := dbmo.InputParameters(cmd)
	args := make([]any, len(in))
	for i, prm := range in {
		args[i] = prm.Value
	}
	return args
}
