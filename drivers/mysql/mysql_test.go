package mysql

import (
	"testing"

	"github.com/mirrortom/dbmo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderQuestionMarks(t *testing.T) {
	p := New()
	cmd := p.NewCommand("SELECT * FROM t WHERE a=@a OR b=@a AND c=@c")
	cmd.Tokens = dbmo.ParsePlaceholders(cmd.Text, p.Syntax())
	cmd.Add(p.NewParameter("@a", 1))
	cmd.Add(p.NewParameter("@c", "x"))

	query, args, err := p.Render(cmd)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a=? OR b=? AND c=?", query)
	assert.Equal(t, []any{1, 1, "x"}, args)
}

func TestRenderProcedureNeedsCaller(t *testing.T) {
	p := New()
	cmd := p.NewCommand("sp_calc")
	cmd.Kind = dbmo.CommandProcedure
	_, _, err := p.Render(cmd)
	assert.ErrorIs(t, err, dbmo.ErrUnsupported)

	_, ok := p.(dbmo.ProcedureCaller)
	assert.True(t, ok)
}

func TestSessionVar(t *testing.T) {
	assert.Equal(t, "@_dbmo_total", sessionVar("total"))
	assert.Equal(t, "@_dbmo_a_b1", sessionVar("a_b1"))
	assert.Equal(t, "@_dbmo_xdrop", sessionVar("x;drop"))
}

func TestNewConnectionRejectsBadDSN(t *testing.T) {
	_, err := New().NewConnection("not a dsn")
	assert.Error(t, err)
}
