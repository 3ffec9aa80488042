package dbmo

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertScalars(t *testing.T) {
	b, err := Convert.ToBoolWithError("Yes")
	require.NoError(t, err)
	assert.True(t, b)
	_, err = Convert.ToBoolWithError("maybe")
	assert.Error(t, err)

	n, err := Convert.ToInt64WithError(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	_, err = Convert.ToInt64WithError("4x")
	assert.Error(t, err)

	f, err := Convert.ToFloat64WithError(sql.NullFloat64{Float64: 2.5, Valid: true})
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	s, err := Convert.ToStringWithError([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", s)

	d, err := Convert.ToDurationWithError("1m30s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	assert.Equal(t, 7, Convert.ToInt("nope", 7))
	assert.Equal(t, 0, Convert.ToInt("nope"))
	assert.Equal(t, 1.5, Convert.ToFloat64("x", 1.5))
}

func TestConvertTime(t *testing.T) {
	for _, in := range []any{"2024-03-01 10:20:30", "2024-03-01T10:20:30Z", "2024-03-01"} {
		tm, err := Convert.ToTimeWithError(in)
		require.NoError(t, err, in)
		assert.Equal(t, 2024, tm.Year())
		assert.Equal(t, time.March, tm.Month())
	}
	_, err := Convert.ToTimeWithError("yesterday")
	assert.Error(t, err)
}

func TestConvertTimeStringForm(t *testing.T) {
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tm, err := Convert.ToTimeWithError(want.String())
	require.NoError(t, err)
	assert.True(t, want.Equal(tm))

	tm, err = Convert.ToTimeWithError("2024-01-02 03:04:05.123 +0800 CST m=+0.001234567")
	require.NoError(t, err)
	assert.Equal(t, 123*time.Millisecond, time.Duration(tm.Nanosecond()))
	_, offset := tm.Zone()
	assert.Equal(t, 8*3600, offset)
}

func TestSetFieldValue(t *testing.T) {
	var target struct {
		I   int
		I8  int8
		U   uint16
		F   float32
		S   string
		B   bool
		T   time.Time
		P   *int
		Raw []byte
		NS  sql.NullString
		Any any
		D   time.Duration
	}
	v := reflect.ValueOf(&target).Elem()
	set := func(field string, value any) error {
		return setFieldValue(v.FieldByName(field), value)
	}

	require.NoError(t, set("I", int64(12)))
	require.NoError(t, set("U", "7"))
	require.NoError(t, set("F", "1.25"))
	require.NoError(t, set("S", 99))
	require.NoError(t, set("B", int64(1)))
	require.NoError(t, set("T", "2024-01-02 03:04:05"))
	require.NoError(t, set("P", int64(3)))
	require.NoError(t, set("Raw", "bytes"))
	require.NoError(t, set("NS", "hello"))
	require.NoError(t, set("Any", 1.5))
	require.NoError(t, set("D", "2s"))

	assert.Equal(t, 12, target.I)
	assert.Equal(t, uint16(7), target.U)
	assert.Equal(t, float32(1.25), target.F)
	assert.Equal(t, "99", target.S)
	assert.True(t, target.B)
	assert.Equal(t, 2024, target.T.Year())
	require.NotNil(t, target.P)
	assert.Equal(t, 3, *target.P)
	assert.Equal(t, []byte("bytes"), target.Raw)
	assert.Equal(t, sql.NullString{String: "hello", Valid: true}, target.NS)
	assert.Equal(t, 1.5, target.Any)
	assert.Equal(t, 2*time.Second, target.D)

	// NULL resets to the zero value
	require.NoError(t, set("I", nil))
	require.NoError(t, set("P", nil))
	assert.Equal(t, 0, target.I)
	assert.Nil(t, target.P)

	assert.ErrorIs(t, set("I", "abc"), ErrConversion)
	assert.ErrorIs(t, set("I8", 300), ErrConversion)
	assert.ErrorIs(t, set("Raw", 12), ErrConversion)
}

func TestDerefPointer(t *testing.T) {
	n := 3
	pn := &n
	var nilPtr *int
	assert.Equal(t, 3, derefPointer(&pn))
	assert.Nil(t, derefPointer(nilPtr))
	assert.Nil(t, derefPointer(nil))
	assert.Equal(t, "s", derefPointer("s"))
}
