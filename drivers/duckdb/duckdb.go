// Package duckdb 提供 DuckDB 嵌入式分析数据库支持
// 使用 github.com/duckdb/duckdb-go/v2 驱动
//
// 语句中写 @name，执行前改写为 $1, $2 ...
package duckdb

import (
	"database/sql"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB驱动，注册为 "duckdb"
	"github.com/mirrortom/dbmo"
)

// Name is the provider name reported in diagnostics.
const Name = "duckdb"

type provider struct {
	syntax dbmo.Syntax
}

// New returns the DuckDB provider.
func New() dbmo.Provider {
	return &provider{syntax: dbmo.AtSyntax}
}

// Open returns an engine for the database file connString; "" opens an in-memory database.
func Open(connString string, opts ...dbmo.Option) (*dbmo.Engine, error) {
	return dbmo.New(New(), connString, opts...)
}

func (p *provider) Name() string { return Name }

func (p *provider) Syntax() dbmo.Syntax { return p.syntax }

func (p *provider) NewConnection(connString string) (*sql.DB, error) {
	return sql.Open("duckdb", connString)
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
		return "", nil, dbmo.ErrUnsupported
	}
	return dbmo.RenderOrdinal(cmd, "$")
}
