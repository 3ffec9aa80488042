package dbmo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emp struct {
	ID    int64   `db:"emp_id"`
	Name  string  `column:"emp_name"`
	Email *string
	Score float64
	level int
}

func (e *emp) SetLevel(v int) { e.level = v }

func TestToStruct(t *testing.T) {
	r := NewRecord().
		Set("EMP_ID", int64(7)).
		Set("emp_name", "ann").
		Set("email", nil).
		Set("score", "9.5").
		Set("level", int64(3)).
		Set("unknown", "dropped")

	var e emp
	require.NoError(t, ToStruct(r, &e))
	assert.Equal(t, int64(7), e.ID)
	assert.Equal(t, "ann", e.Name)
	assert.Nil(t, e.Email)
	assert.Equal(t, 9.5, e.Score)
	assert.Equal(t, 3, e.level)

	var pe *emp
	require.NoError(t, ToStruct(r, &pe))
	require.NotNil(t, pe)
	assert.Equal(t, "ann", pe.Name)
}

func TestToStructErrors(t *testing.T) {
	var e emp
	assert.Error(t, ToStruct(nil, &e))
	assert.Error(t, ToStruct(NewRecord(), e))

	n := 1
	assert.Error(t, ToStruct(NewRecord(), &n))

	err := ToStruct(NewRecord().Set("emp_id", "not a number"), &e)
	assert.ErrorIs(t, err, ErrConversion)
	assert.Contains(t, err.Error(), "emp_id")
}

func TestToStructs(t *testing.T) {
	recs := []*Record{
		NewRecord().Set("emp_id", 1).Set("emp_name", "a"),
		NewRecord().Set("emp_id", 2).Set("emp_name", "b"),
	}
	var vals []emp
	require.NoError(t, ToStructs(recs, &vals))
	require.Len(t, vals, 2)
	assert.Equal(t, "b", vals[1].Name)

	var ptrs []*emp
	require.NoError(t, ToStructs(recs, &ptrs))
	assert.Equal(t, int64(1), ptrs[0].ID)

	assert.Error(t, ToStructs(recs, vals))
}

func TestMapRecords(t *testing.T) {
	recs := []*Record{NewRecord().Set("emp_id", 1), NewRecord().Set("emp_id", "x")}
	_, err := mapRecords[emp](recs)
	assert.ErrorIs(t, err, ErrConversion)

	out, err := mapRecords[*emp](recs[:1])
	require.NoError(t, err)
	assert.Equal(t, int64(1), out[0].ID)
}

func TestProcessDBValue(t *testing.T) {
	buf := []byte("abc")
	assert.Equal(t, "abc", processDBValue(buf, "VARCHAR"))

	cp := processDBValue(buf, "BLOB").([]byte)
	buf[0] = 'z'
	assert.Equal(t, []byte("abc"), cp)

	assert.Equal(t, int64(3), processDBValue(int64(3), "INTEGER"))
	assert.True(t, isBinaryType("VARBINARY"))
	assert.True(t, isBinaryType("BYTEA"))
	assert.False(t, isBinaryType("TEXT"))
}
