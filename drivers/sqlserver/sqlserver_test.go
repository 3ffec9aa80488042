package sqlserver

import (
	"database/sql"
	"testing"

	"github.com/mirrortom/dbmo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderNamedAndOutput(t *testing.T) {
	p := New()
	cmd := p.NewCommand("usp_count")
	cmd.Kind = dbmo.CommandProcedure
	cmd.Add(p.NewParameter("dept", 10))
	cmd.Add(p.NewOutputParameter("total", dbmo.DbTypeInt64))

	query, args, err := p.Render(cmd)
	require.NoError(t, err)
	assert.Equal(t, "usp_count", query)
	assert.Equal(t, sql.Named("dept", 10), args[0])
	assert.IsType(t, sql.Out{}, args[1].(sql.NamedArg).Value)
}

func TestRenderKeepsDoubledPrefix(t *testing.T) {
	p := New()
	cmd := p.NewCommand("SELECT @@ROWCOUNT, @id")
	cmd.Tokens = dbmo.ParsePlaceholders(cmd.Text, p.Syntax())
	require.Len(t, cmd.Tokens, 1)
	cmd.Add(p.NewParameter("@id", 1))
	query, args, err := p.Render(cmd)
	require.NoError(t, err)
	assert.Equal(t, cmd.Text, query)
	assert.Equal(t, []any{sql.Named("id", 1)}, args)
}

func TestNewConnectionRejectsBadConnString(t *testing.T) {
	_, err := New().NewConnection("server=localhost;connection timeout=abc")
	assert.Error(t, err)
}
