// Package sqlite3 提供 SQLite 数据库支持
// 使用 github.com/mattn/go-sqlite3 驱动（需要 cgo）
package sqlite3

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3" // SQLite3驱动，注册为 "sqlite3"
	"github.com/mirrortom/dbmo"
	"github.com/mirrortom/dbmo/drivers/sqlite"
)

// Name is the provider name reported in diagnostics.
const Name = "sqlite3"

type provider struct {
	syntax dbmo.Syntax
}

// New returns the cgo SQLite provider. Connection strings are interpreted as in the sqlite
// package.
func New() dbmo.Provider {
	return &provider{syntax: dbmo.AtSyntax}
}

// Open returns an engine for the database file named by connString.
func Open(connString string, opts ...dbmo.Option) (*dbmo.Engine, error) {
	return dbmo.New(New(), connString, opts...)
}

func (p *provider) Name() string { return Name }

func (p *provider) Syntax() dbmo.Syntax { return p.syntax }

func (p *provider) NewConnection(connString string) (*sql.DB, error) {
	return sql.Open("sqlite3", sqlite.DataSource(connString))
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
	return dbmo.RenderNamed(cmd)
}
