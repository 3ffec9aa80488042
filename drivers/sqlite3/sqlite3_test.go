package sqlite3

import (
	"database/sql"
	"testing"

	"github.com/mirrortom/dbmo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	p := New()
	assert.Equal(t, Name, p.Name())
	assert.Equal(t, '@', p.Syntax().Prefix)

	cases := []struct {
		text string
		want []any
	}{
		{"SELECT * FROM t WHERE id=@id", []any{sql.Named("id", 7)}},
		{"SELECT * FROM t WHERE id=@id OR parent=@id", []any{sql.Named("id", 7)}},
		{"SELECT '@id', @id -- @other", []any{sql.Named("id", 7)}},
	}
	for _, c := range cases {
		cmd := p.NewCommand(c.text)
		cmd.Tokens = dbmo.ParsePlaceholders(cmd.Text, p.Syntax())
		cmd.Add(p.NewParameter("@id", 7))
		query, args, err := p.Render(cmd)
		require.NoError(t, err, c.text)
		assert.Equal(t, c.text, query)
		assert.Equal(t, c.want, args, c.text)
	}
}

func TestProceduresUnsupported(t *testing.T) {
	p := New()
	cmd := p.NewCommand("sp")
	cmd.Kind = dbmo.CommandProcedure
	_, _, err := p.Render(cmd)
	assert.ErrorIs(t, err, dbmo.ErrUnsupported)
}
