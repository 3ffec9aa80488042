package dbmo

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boundCommand(t *testing.T, text string, syn Syntax, p Params) *Command {
	t.Helper()
	cmd := NewCommand(text, syn)
	cmd.Tokens = ParsePlaceholders(text, syn)
	require.NoError(t, bind(cmd, p, NewInputParameter))
	return cmd
}

func TestRenderNamed(t *testing.T) {
	cmd := boundCommand(t, "SELECT * FROM t WHERE a=@a OR b=@b OR c=@a", AtSyntax, Args(1, "x"))
	cmd.Add(NewOutputParameter("@total", DbTypeInt64))

	query, args, err := RenderNamed(cmd)
	require.NoError(t, err)
	assert.Equal(t, cmd.Text, query)
	require.Len(t, args, 3)
	assert.Equal(t, sql.Named("a", 1), args[0])
	assert.Equal(t, sql.Named("b", "x"), args[1])
	out := args[2].(sql.NamedArg)
	assert.Equal(t, "total", out.Name)
	assert.IsType(t, sql.Out{}, out.Value)
}

func TestRenderOrdinal(t *testing.T) {
	cmd := boundCommand(t, "SELECT * FROM t WHERE a=@a OR b=@b OR c=@a", AtSyntax, Args(1, 2))
	query, args, err := RenderOrdinal(cmd, "$")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a=$1 OR b=$2 OR c=$1", query)
	assert.Equal(t, []any{1, 2}, args)
}

func TestRenderQuestion(t *testing.T) {
	cmd := boundCommand(t, "SELECT * FROM t WHERE a=@a OR b=@b OR c=@a AND s='@a'", AtSyntax, Args(1, 2))
	query, args, err := RenderQuestion(cmd)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a=? OR b=? OR c=? AND s='@a'", query)
	assert.Equal(t, []any{1, 2, 1}, args)
}

func TestRenderUnboundPlaceholder(t *testing.T) {
	cmd := NewCommand("SELECT @a", AtSyntax)
	cmd.Tokens = ParsePlaceholders(cmd.Text, AtSyntax)
	_, _, err := RenderQuestion(cmd)
	assert.ErrorIs(t, err, ErrBinding)
	_, _, err = RenderOrdinal(cmd, "$")
	assert.ErrorIs(t, err, ErrBinding)
}

func TestOutputParameter(t *testing.T) {
	p := NewOutputParameter("@n", DbTypeInt64)
	assert.Equal(t, Output, p.Direction)
	assert.Equal(t, "OUT", p.Direction.String())
	assert.Equal(t, int64(0), p.Result())

	require.NoError(t, p.SetResult("42"))
	assert.Equal(t, int64(42), p.Result())
	require.NoError(t, p.SetResult(nil))
	assert.Equal(t, int64(0), p.Result())
	assert.ErrorIs(t, p.SetResult("abc"), ErrConversion)

	anyOut := NewOutputParameter("@v", DbTypeAny)
	assert.Nil(t, anyOut.Result())
	require.NoError(t, anyOut.SetResult("x"))
	assert.Equal(t, "x", anyOut.Result())

	bytesOut := NewOutputParameter("@b", DbTypeBytes)
	assert.Nil(t, bytesOut.Result())

	ts := NewOutputParameter("@t", DbTypeTime)
	assert.IsType(t, &time.Time{}, ts.Dest())

	in := NewInputParameter("@in", 5)
	assert.Nil(t, in.Dest())
	assert.Error(t, in.SetResult(1))
	assert.Equal(t, 5, in.Result())
}

func TestCommandHelpers(t *testing.T) {
	cmd := boundCommand(t, "SELECT @a, @b, @c", AtSyntax, Args(1, "x", nil))
	assert.Equal(t, `@a=1 | @b='x' | @c=NULL`, cmd.ParamDump())
	assert.Equal(t, "x", cmd.Parameter("@b").Value)
	assert.Nil(t, cmd.Parameter("@zz"))

	cmd.Add(NewOutputParameter("@o", DbTypeString))
	assert.Len(t, InputParameters(cmd), 3)
	assert.Len(t, OutputParameters(cmd), 1)
	assert.Equal(t, "o", cmd.Parameter("@o").Bare(AtSyntax))

	var empty *Command
	assert.Equal(t, "", empty.ParamDump())
}
