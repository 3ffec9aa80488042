// Package mysql 提供MySQL数据库支持
// 使用 github.com/go-sql-driver/mysql 驱动
//
// 驱动只支持 ? 占位符，@name 在执行前被改写为 ?，重复出现的参数按出现次数展开
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mirrortom/dbmo"
)

// Name is the provider name reported in diagnostics.
const Name = "mysql"

type provider struct {
	syntax dbmo.Syntax
}

// New returns the MySQL provider. Its statements use @name placeholders.
func New() dbmo.Provider {
	return &provider{syntax: dbmo.AtSyntax}
}

// Open returns an engine for the DSN connString, e.g. "user:pass@tcp(host:3306)/db?parseTime=true".
func Open(connString string, opts ...dbmo.Option) (*dbmo.Engine, error) {
	return dbmo.New(New(), connString, opts...)
}

func (p *provider) Name() string { return Name }

func (p *provider) Syntax() dbmo.Syntax { return p.syntax }

// NewConnection validates the DSN with the driver's parser before opening the pool.
func (p *provider) NewConnection(connString string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(connString)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
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
		return "", nil, fmt.Errorf("%w: mysql procedures run through CallProcedure", dbmo.ErrUnsupported)
	}
	return dbmo.RenderQuestion(cmd)
}

// CallProcedure runs CALL proc(?, ..., @out) with inputs bound positionally and every output
// parameter mapped to a session variable, then reads the variables back on the same
// connection.
func (p *provider) CallProcedure(ctx context.Context, ex dbmo.Executor, cmd *dbmo.Command) (int64, error) {
	marks := make([]string, 0, len(cmd.Parameters))
	args := make([]any, 0, len(cmd.Parameters))
	outs := dbmo.OutputParameters(cmd)
	vars := make([]string, 0, len(outs))
	for _, prm := range cmd.Parameters {
		if prm.Direction == dbmo.Output {
			v := sessionVar(prm.Bare(p.syntax))
			marks = append(marks, v)
			vars = append(vars, v)
			continue
		}
		marks = append(marks, "?")
		args = append(args, prm.Value)
	}
	res, err := ex.ExecContext(ctx, "CALL "+cmd.Text+"("+strings.Join(marks, ", ")+")", args...)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	if len(outs) == 0 {
		return affected, nil
	}

	values := make([]any, len(outs))
	ptrs := make([]any, len(outs))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := ex.QueryRowContext(ctx, "SELECT "+strings.Join(vars, ", ")).Scan(ptrs...); err != nil {
		return 0, err
	}
	for i, prm := range outs {
		v := values[i]
		if b, ok := v.([]byte); ok && prm.DbType != dbmo.DbTypeBytes {
			v = string(b)
		}
		if err := prm.SetResult(v); err != nil {
			return 0, err
		}
	}
	return affected, nil
}

// sessionVar returns a session variable name private to the engine for an output parameter.
func sessionVar(name string) string {
	var b strings.Builder
	b.WriteString("@_dbmo_")
	for _, r := range name {
		if r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
