package dbmo

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Provider is the per-backend adapter consumed by the engine. One implementation exists per
// database product; see the packages under drivers/.
type Provider interface {
	// Name identifies the backend, e.g. "sqlite" or "sqlserver".
	Name() string

	// Syntax returns the placeholder notation this backend expects in caller SQL.
	Syntax() Syntax

	// NewConnection returns the connection pool for connString. The engine verifies it with a
	// ping and then acquires connections from it on demand.
	NewConnection(connString string) (*sql.DB, error)

	// NewCommand returns a command bound to the statement or procedure text.
	NewCommand(text string) *Command

	// NewParameter returns an input parameter. A nil value is the backend null.
	NewParameter(name string, value any) *Parameter

	// NewOutputParameter returns an output-direction parameter of the given type.
	NewOutputParameter(name string, dbType DbType) *Parameter

	// Render turns a bound command into the query text and arguments passed to database/sql.
	Render(cmd *Command) (query string, args []any, err error)
}

// Executor is satisfied by *sql.Conn and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ProcedureCaller is implemented by providers whose backend cannot return output parameters
// through sql.Out. CallProcedure runs cmd and fills the output parameters itself.
type ProcedureCaller interface {
	CallProcedure(ctx context.Context, ex Executor, cmd *Command) (int64, error)
}

// CommandKind tells a provider how to render a command.
type CommandKind int

const (
	// CommandText is a plain SQL statement.
	CommandText CommandKind = iota
	// CommandProcedure is a stored-procedure name.
	CommandProcedure
)

// Direction of a parameter.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "OUT"
	}
	return "IN"
}

// DbType is the type code of an output parameter. Providers map it to a destination the
// driver can fill.
type DbType int

const (
	DbTypeAny DbType = iota
	DbTypeInt64
	DbTypeFloat64
	DbTypeString
	DbTypeBool
	DbTypeTime
	DbTypeBytes
)

// Parameter is one argument of a Command.
type Parameter struct {
	Name      string // as written in the SQL text, prefix included, or the procedure argument name
	Value     any
	Direction Direction
	DbType    DbType

	dest any // pointer receiving an output value
}

// NewInputParameter builds an input parameter; nil and nil pointers become a nil (NULL) value.
func NewInputParameter(name string, value any) *Parameter {
	return &Parameter{Name: name, Value: derefPointer(value), Direction: Input}
}

// NewOutputParameter builds an output parameter with a destination matching dbType.
func NewOutputParameter(name string, dbType DbType) *Parameter {
	return &Parameter{Name: name, Direction: Output, DbType: dbType, dest: newOutDest(dbType)}
}

func newOutDest(t DbType) any {
	switch t {
	case DbTypeInt64:
		return new(int64)
	case DbTypeFloat64:
		return new(float64)
	case DbTypeString:
		return new(string)
	case DbTypeBool:
		return new(bool)
	case DbTypeTime:
		return new(time.Time)
	case DbTypeBytes:
		return new([]byte)
	default:
		return new(any)
	}
}

// Dest returns the pointer an output value is written to. It is nil for input parameters.
func (p *Parameter) Dest() any { return p.dest }

// Out returns the sql.Out wrapper for an output parameter.
func (p *Parameter) Out() sql.Out { return sql.Out{Dest: p.dest} }

// Bare returns the parameter name without the placeholder prefix of syn.
func (p *Parameter) Bare(syn Syntax) string {
	return strings.TrimPrefix(p.Name, string(syn.Prefix))
}

// Result returns the value of the parameter after execution: the destination of an output
// parameter, or Value for an input one.
func (p *Parameter) Result() any {
	if p.Direction != Output || p.dest == nil {
		return p.Value
	}
	v := reflect.ValueOf(p.dest).Elem().Interface()
	if b, ok := v.([]byte); ok && b == nil {
		return nil
	}
	return v
}

// SetResult stores v into an output parameter's destination, converting it to the declared type.
// Providers implementing ProcedureCaller use it.
func (p *Parameter) SetResult(v any) error {
	if p.dest == nil {
		return fmt.Errorf("dbmo: parameter %s is not an output parameter", p.Name)
	}
	dst := reflect.ValueOf(p.dest).Elem()
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Interface {
		dst.Set(reflect.ValueOf(v))
		return nil
	}
	return setFieldValue(dst, v)
}

// Command is a statement or procedure plus its resolved parameters. A Command belongs to a
// single execution and is never reused.
type Command struct {
	Text       string
	Kind       CommandKind
	Syntax     Syntax
	Tokens     []Placeholder
	Parameters []*Parameter
}

// NewCommand returns a text command written in syn.
func NewCommand(text string, syn Syntax) *Command {
	return &Command{Text: text, Kind: CommandText, Syntax: syn}
}

// Add attaches p to the command.
func (c *Command) Add(p *Parameter) { c.Parameters = append(c.Parameters, p) }

// Parameter returns the attached parameter named name, or nil.
func (c *Command) Parameter(name string) *Parameter {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// ParamDump renders the parameters as "name=value | name=value" for diagnostics.
func (c *Command) ParamDump() string {
	if c == nil || len(c.Parameters) == 0 {
		return ""
	}
	parts := make([]string, 0, len(c.Parameters))
	for _, p := range c.Parameters {
		parts = append(parts, p.Name+"="+formatValue(p.Result()))
	}
	return strings.Join(parts, " | ")
}

// --- rendering helpers shared by providers ---

// RenderNamed keeps the query text as written and passes each parameter as sql.Named, without
// its prefix. Output parameters are wrapped in sql.Out. Drivers with native named parameters
// (SQL Server, SQLite, Oracle) use it.
func RenderNamed(cmd *Command) (string, []any, error) {
	args := make([]any, 0, len(cmd.Parameters))
	for _, p := range cmd.Parameters {
		name := p.Bare(cmd.Syntax)
		if p.Direction == Output {
			args = append(args, sql.Named(name, p.Out()))
			continue
		}
		args = append(args, sql.Named(name, p.Value))
	}
	return cmd.Text, args, nil
}

// RenderOrdinal rewrites every placeholder to mark followed by the 1-based index of its distinct
// name ($1, $2 ...). A repeated placeholder reuses its index. PostgreSQL and DuckDB use it.
func RenderOrdinal(cmd *Command, mark string) (string, []any, error) {
	index := make(map[string]int, len(cmd.Parameters))
	args := make([]any, 0, len(cmd.Parameters))
	for i, p := range cmd.Parameters {
		index[p.Name] = i + 1
		args = append(args, p.Value)
	}
	var b strings.Builder
	b.Grow(len(cmd.Text) + len(cmd.Tokens))
	last := 0
	for _, t := range cmd.Tokens {
		n, ok := index[t.Name]
		if !ok {
			return "", nil, bindErrorf(t.Name, cmd.Text, "has no bound parameter")
		}
		b.WriteString(cmd.Text[last:t.Start])
		b.WriteString(mark)
		b.WriteString(strconv.Itoa(n))
		last = t.End
	}
	b.WriteString(cmd.Text[last:])
	return b.String(), args, nil
}

// RenderQuestion rewrites every placeholder to "?" and emits one argument per occurrence.
// MySQL uses it.
func RenderQuestion(cmd *Command) (string, []any, error) {
	byName := make(map[string]*Parameter, len(cmd.Parameters))
	for _, p := range cmd.Parameters {
		byName[p.Name] = p
	}
	var b strings.Builder
	b.Grow(len(cmd.Text))
	args := make([]any, 0, len(cmd.Tokens))
	last := 0
	for _, t := range cmd.Tokens {
		p, ok := byName[t.Name]
		if !ok {
			return "", nil, bindErrorf(t.Name, cmd.Text, "has no bound parameter")
		}
		b.WriteString(cmd.Text[last:t.Start])
		b.WriteByte('?')
		args = append(args, p.Value)
		last = t.End
	}
	b.WriteString(cmd.Text[last:])
	return b.String(), args, nil
}

// InputParameters returns the input-direction parameters of cmd in order.
func InputParameters(cmd *Command) []*Parameter {
	in := make([]*Parameter, 0, len(cmd.Parameters))
	for _, p := range cmd.Parameters {
		if p.Direction == Input {
			in = append(in, p)
		}
	}
	return in
}

// OutputParameters returns the output-direction parameters of cmd in order.
func OutputParameters(cmd *Command) []*Parameter {
	out := make([]*Parameter, 0, len(cmd.Parameters))
	for _, p := range cmd.Parameters {
		if p.Direction == Output {
			out = append(out, p)
		}
	}
	return out
}
