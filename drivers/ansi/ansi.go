// Package ansi 提供通用 database/sql 驱动支持
// 用于适配没有专用 provider 的数据库或自定义驱动
//
// 使用方式：
//
//	ansi.RegisterCustomDriver("mydb", myDriver)
//	e, err := dbmo.New(ansi.New("mydb", ansi.WithStyle(ansi.Question)), dsn)
package ansi

import (
	"database/sql"
	"database/sql/driver"
	"slices"

	"github.com/mirrortom/dbmo"
)

// Style is how placeholders reach the driver.
type Style int

const (
	// Named keeps the text as written and passes sql.Named arguments.
	Named Style = iota
	// Ordinal rewrites placeholders to $1, $2 ...
	Ordinal
	// Question rewrites placeholders to ?.
	Question
)

// RegisterCustomDriver registers d under driverName unless a driver already uses that name.
func RegisterCustomDriver(driverName string, d driver.Driver) {
	if slices.Contains(sql.Drivers(), driverName) {
		return
	}
	sql.Register(driverName, d)
}

type provider struct {
	driverName string
	syntax     dbmo.Syntax
	style      Style
}

// Option customises the provider.
type Option func(*provider)

// WithSyntax sets the placeholder syntax of caller SQL; the default is @name.
func WithSyntax(s dbmo.Syntax) Option { return func(p *provider) { p.syntax = s } }

// WithStyle sets how placeholders are passed to the driver; the default is Named.
func WithStyle(s Style) Option { return func(p *provider) { p.style = s } }

// New returns a provider for the registered database/sql driver driverName.
func New(driverName string, opts ...Option) dbmo.Provider {
	p := &provider{driverName: driverName, syntax: dbmo.AtSyntax}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *provider) Name() string { return p.driverName }

func (p *provider) Syntax() dbmo.Syntax { return p.syntax }

func (p *provider) NewConnection(connString string) (*sql.DB, error) {
	return sql.Open(p.driverName, connString)
}

func (p *provider) NewCommand(text string) *dbmo.Command { return dbmo.NewCommand(text, p.syntax) }

func (p *provider) NewParameter(name string, value any) *dbmo.Parameter {
	return dbmo.NewInputParameter(name, value)
}

func (p *provider) NewOutputParameter(name string, dbType dbmo.DbType) *dbmo.Parameter {
	return dbmo.NewOutputParameter(name, dbType)
}

// Render passes procedures by name with named arguments, whatever the style.
func (p *provider) Render(cmd *dbmo.Command) (string, []any, error) {
	if cmd.Kind == dbmo.CommandProcedure {
		return dbmo.RenderNamed(cmd)
	}
	switch p.style {
	case Ordinal:
		return dbmo.RenderOrdinal(cmd, "$")
	case Question:
		return dbmo.RenderQuestion(cmd)
	default:
		return dbmo.RenderNamed(cmd)
	}
}
