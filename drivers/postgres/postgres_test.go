package postgres

import (
	"testing"

	"github.com/mirrortom/dbmo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderOrdinal(t *testing.T) {
	p := New()
	cmd := p.NewCommand("SELECT * FROM t WHERE a=@a OR b=@b OR c=@a AND s::text='@a'")
	cmd.Tokens = dbmo.ParsePlaceholders(cmd.Text, p.Syntax())
	cmd.Add(p.NewParameter("@a", 1))
	cmd.Add(p.NewParameter("@b", 2))

	query, args, err := p.Render(cmd)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a=$1 OR b=$2 OR c=$1 AND s::text='@a'", query)
	assert.Equal(t, []any{1, 2}, args)
}

func TestRenderProcedure(t *testing.T) {
	p := New()
	cmd := p.NewCommand("transfer")
	cmd.Kind = dbmo.CommandProcedure
	cmd.Add(p.NewParameter("from", 1))
	cmd.Add(p.NewOutputParameter("balance", dbmo.DbTypeFloat64))
	cmd.Add(p.NewParameter("to", 2))

	query, args, err := p.Render(cmd)
	require.NoError(t, err)
	assert.Equal(t, "CALL transfer($1, NULL, $2)", query)
	assert.Equal(t, []any{1, 2}, args)

	_, ok := p.(dbmo.ProcedureCaller)
	assert.True(t, ok)
}

func TestNewConnectionRejectsBadConfig(t *testing.T) {
	_, err := New().NewConnection("postgres://localhost:notaport/db")
	assert.Error(t, err)
}
