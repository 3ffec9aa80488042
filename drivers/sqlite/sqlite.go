// Package sqlite 提供 SQLite 数据库支持
// 使用纯 Go 实现的 modernc.org/sqlite 驱动，不需要 cgo
//
// 使用方式：
//
//	e, err := sqlite.Open("data source=app.db")
package sqlite

import (
	"database/sql"
	"strings"

	"github.com/mirrortom/dbmo"
	_ "modernc.org/sqlite" // SQLite驱动，注册为 "sqlite"
)

// Name is the provider name reported in diagnostics.
const Name = "sqlite"

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

type provider struct {
	syntax dbmo.Syntax
}

// Option customises the provider.
type Option func(*provider)

// WithSyntax replaces the default @name placeholder syntax. SQLite also accepts :name and $name.
func WithSyntax(s dbmo.Syntax) Option {
	return func(p *provider) { p.syntax = s }
}

// New returns the SQLite provider.
func New(opts ...Option) dbmo.Provider {
	p := &provider{syntax: dbmo.AtSyntax}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open returns an engine for the database file named by connString.
func Open(connString string, opts ...dbmo.Option) (*dbmo.Engine, error) {
	return dbmo.New(New(), connString, opts...)
}

func (p *provider) Name() string { return Name }

func (p *provider) Syntax() dbmo.Syntax { return p.syntax }

func (p *provider) NewConnection(connString string) (*sql.DB, error) {
	return sql.Open(DriverName, DataSource(connString))
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

// DataSource accepts either a bare file path or an ADO style "data source=path" string and
// returns the path.
func DataSource(connString string) string {
	s := strings.TrimSpace(connString)
	for _, part := range strings.Split(s, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 && strings.EqualFold(strings.TrimSpace(kv[0]), "data source") {
			return strings.TrimSpace(kv[1])
		}
	}
	return s
}
