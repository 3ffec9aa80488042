package dbmo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteInsert(t *testing.T) {
	cases := []struct{ in, want string }{
		{"INSERT INTO t (a, b)", "INSERT INTO t (a, b) VALUES(@a, @b)"},
		{"INSERT INTO t ( a ,\n\tb )  ", "INSERT INTO t ( a ,\n\tb ) VALUES(@a, @b)"},
		{"INSERT INTO [t] ([Name], \"Age\", `City`)", "INSERT INTO [t] ([Name], \"Age\", `City`) VALUES(@Name, @Age, @City)"},
	}
	for _, tc := range cases {
		got, err := CompleteInsert(tc.in, '@')
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	got, err := CompleteInsert("INSERT INTO t (a)", ':')
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO t (a) VALUES(:a)", got)
}

func TestCompleteUpdate(t *testing.T) {
	cases := []struct{ in, want string }{
		{"UPDATE t (a, b) WHERE id=@id", "UPDATE t SET a=@a, b=@b WHERE id=@id"},
		{"UPDATE t (a)", "UPDATE t SET a=@a"},
		{"UPDATE t ([a], `b`)  WHERE x=1", "UPDATE t SET [a]=@a, `b`=@b WHERE x=1"},
	}
	for _, tc := range cases {
		got, err := CompleteUpdate(tc.in, '@')
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestCompleteErrors(t *testing.T) {
	for _, sql := range []string{
		"INSERT INTO t",
		"INSERT INTO t (a, b",
		"INSERT INTO t (a,,b)",
		"INSERT INTO t ()",
		"INSERT INTO t ([])",
	} {
		_, err := CompleteInsert(sql, '@')
		assert.ErrorIs(t, err, ErrAutoComplete, sql)
		_, err = CompleteUpdate(sql, '@')
		assert.ErrorIs(t, err, ErrAutoComplete, sql)
	}
}
