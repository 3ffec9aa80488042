package oracle

import (
	"database/sql"
	"testing"

	"github.com/mirrortom/dbmo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColonSyntax(t *testing.T) {
	p := New()
	cmd := p.NewCommand("SELECT * FROM emp WHERE id=:id AND hired > SYSDATE - :days")
	cmd.Tokens = dbmo.ParsePlaceholders(cmd.Text, p.Syntax())
	require.Len(t, cmd.Tokens, 2)
	cmd.Add(p.NewParameter(":id", 1))
	cmd.Add(p.NewParameter(":days", 30))

	query, args, err := p.Render(cmd)
	require.NoError(t, err)
	assert.Equal(t, cmd.Text, query)
	assert.Equal(t, sql.Named("id", 1), args[0])
	assert.Equal(t, sql.Named("days", 30), args[1])
}

func TestRenderProcedureBlock(t *testing.T) {
	p := New()
	cmd := p.NewCommand("pkg.calc")
	cmd.Kind = dbmo.CommandProcedure
	cmd.Add(p.NewParameter("x", 1))
	cmd.Add(p.NewOutputParameter("result", dbmo.DbTypeInt64))

	query, args, err := p.Render(cmd)
	require.NoError(t, err)
	assert.Equal(t, "BEGIN pkg.calc(:x, :result); END;", query)
	require.Len(t, args, 2)
	out := args[1].(sql.NamedArg)
	assert.Equal(t, "result", out.Name)
	assert.IsType(t, sql.Out{}, out.Value)
}

func TestBuildURL(t *testing.T) {
	u := BuildURL("db.local", 1521, "ORCL", "scott", "tiger")
	assert.Contains(t, u, "oracle://")
	assert.Contains(t, u, "db.local:1521/ORCL")
}
