package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwinks/dispatch/internal/model"
)

func mustValue(t *testing.T, raw string) model.Value {
	t.Helper()
	var v model.Value
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestCoerce_Integer(t *testing.T) {
	got, err := Coerce(mustValue(t, `42`), "integer")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	got, err = Coerce(mustValue(t, `"42"`), "integer")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)
}

func TestCoerce_IntegerRejectsFractions(t *testing.T) {
	_, err := Coerce(mustValue(t, `4.5`), "integer")
	require.Error(t, err)
	assert.Equal(t, ErrCoercion, KindOf(err))
}

func TestCoerce_SmallintRange(t *testing.T) {
	_, err := Coerce(mustValue(t, `32767`), "smallint")
	assert.NoError(t, err)

	_, err = Coerce(mustValue(t, `32768`), "smallint")
	require.Error(t, err)
	assert.Equal(t, ErrCoercion, KindOf(err))
}

func TestCoerce_NumericPreservesText(t *testing.T) {
	// Wide decimals bind as text so no precision is lost on the way in.
	got, err := Coerce(mustValue(t, `12345678901234567890.12345`), "numeric")
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567890.12345", got)

	got, err = Coerce(mustValue(t, `" 1.50 "`), "decimal")
	require.NoError(t, err)
	assert.Equal(t, "1.50", got)
}

func TestCoerce_NumericRejectsGarbage(t *testing.T) {
	_, err := Coerce(mustValue(t, `"twelve"`), "numeric")
	require.Error(t, err)
	assert.Equal(t, ErrCoercion, KindOf(err))
}

func TestCoerce_Float(t *testing.T) {
	got, err := Coerce(mustValue(t, `3.25`), "double precision")
	require.NoError(t, err)
	assert.Equal(t, 3.25, got)

	got, err = Coerce(mustValue(t, `"3.25"`), "float8")
	require.NoError(t, err)
	assert.Equal(t, 3.25, got)
}

func TestCoerce_Bool(t *testing.T) {
	got, err := Coerce(mustValue(t, `true`), "boolean")
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = Coerce(mustValue(t, `"FALSE"`), "bool")
	require.NoError(t, err)
	assert.Equal(t, false, got)

	_, err = Coerce(mustValue(t, `"yes"`), "boolean")
	require.Error(t, err)
	assert.Equal(t, ErrCoercion, KindOf(err))

	_, err = Coerce(mustValue(t, `1`), "boolean")
	assert.Error(t, err)
}

func TestCoerce_Text(t *testing.T) {
	got, err := Coerce(mustValue(t, `"plain"`), "text")
	require.NoError(t, err)
	assert.Equal(t, "plain", got)

	// Non-string kinds keep their JSON encoding.
	got, err = Coerce(mustValue(t, `42`), "varchar")
	require.NoError(t, err)
	assert.Equal(t, "42", got)
}

func TestCoerce_Timestamp(t *testing.T) {
	got, err := Coerce(mustValue(t, `"2024-06-01T12:30:00"`), "timestamp")
	require.NoError(t, err)
	ts, ok := got.(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())

	_, err = Coerce(mustValue(t, `"not a date"`), "timestamp")
	require.Error(t, err)
	assert.Equal(t, ErrCoercion, KindOf(err))
}

func TestCoerce_TimestampTZ(t *testing.T) {
	got, err := Coerce(mustValue(t, `"2024-06-01T12:30:00+02:00"`), "timestamptz")
	require.NoError(t, err)
	ts := got.(time.Time)
	_, offset := ts.Zone()
	assert.Equal(t, 2*60*60, offset)
}

func TestCoerce_DateAndTime(t *testing.T) {
	_, err := Coerce(mustValue(t, `"2024-06-01"`), "date")
	assert.NoError(t, err)

	_, err = Coerce(mustValue(t, `"12:30:45"`), "time")
	assert.NoError(t, err)

	_, err = Coerce(mustValue(t, `"2024-06-01T00:00:00"`), "date")
	assert.Error(t, err, "date must not accept timestamp text")
}

func TestCoerce_Bytea(t *testing.T) {
	got, err := Coerce(mustValue(t, `"aGVsbG8="`), "bytea")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestCoerce_ByteaMalformed(t *testing.T) {
	_, err := Coerce(mustValue(t, `"!!not base64!!"`), "bytea")
	require.Error(t, err)
	assert.Equal(t, ErrCoercion, KindOf(err))
	assert.Contains(t, err.Error(), "base64")
}

func TestCoerce_JSON(t *testing.T) {
	got, err := Coerce(mustValue(t, `"{\"k\":1}"`), "jsonb")
	require.NoError(t, err)
	assert.Equal(t, `{"k":1}`, got)

	got, err = Coerce(mustValue(t, `{"k":1}`), "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":1}`, got.(string))
}

func TestCoerce_UUID(t *testing.T) {
	id := uuid.New()
	got, err := Coerce(model.StringValue(id.String()), "uuid")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = Coerce(model.StringValue("not-a-uuid"), "uuid")
	require.Error(t, err)
	assert.Equal(t, ErrCoercion, KindOf(err))
}

func TestCoerce_TypedNullAcceptedForEveryTag(t *testing.T) {
	for tag := range typeSpecs {
		got, err := Coerce(model.NullValue(), tag)
		require.NoError(t, err, tag)
		assert.Nil(t, got, tag)
	}
}

func TestCoerce_UnsupportedType(t *testing.T) {
	_, err := Coerce(mustValue(t, `1`), "money")
	require.Error(t, err)
	assert.Equal(t, ErrUnsupportedType, KindOf(err))
}

func TestCoerce_TagNormalization(t *testing.T) {
	got, err := Coerce(mustValue(t, `1`), "  Character   Varying ")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	cast, ok := CastName("DOUBLE  PRECISION")
	require.True(t, ok)
	assert.Equal(t, "double precision", cast)
}

func TestCoerce_ImplicitInference(t *testing.T) {
	got, err := Coerce(mustValue(t, `"s"`), "")
	require.NoError(t, err)
	assert.Equal(t, "s", got)

	got, err = Coerce(mustValue(t, `true`), "")
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = Coerce(mustValue(t, `7`), "")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)

	got, err = Coerce(mustValue(t, `7.5`), "")
	require.NoError(t, err)
	assert.Equal(t, 7.5, got)

	got, err = Coerce(mustValue(t, `null`), "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCoerce_ImplicitRejectsStructured(t *testing.T) {
	_, err := Coerce(mustValue(t, `{"k":1}`), "")
	require.Error(t, err)
	assert.Equal(t, ErrUnsupportedType, KindOf(err))

	_, err = Coerce(mustValue(t, `[1,2]`), "")
	require.Error(t, err)
	assert.Equal(t, ErrUnsupportedType, KindOf(err))
}

func TestCoerce_IsPure(t *testing.T) {
	v := mustValue(t, `"2024-06-01T12:30:00"`)
	a, errA := Coerce(v, "timestamp")
	b, errB := Coerce(v, "timestamp")
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
}

func TestCoerce_ErrorTruncatesValue(t *testing.T) {
	long := make([]byte, 4096)
	for i := range long {
		long[i] = 'x'
	}
	_, err := Coerce(model.StringValue(string(long)), "integer")
	require.Error(t, err)
	assert.Less(t, len(err.Error()), 512)
}

func TestCoerceParams_ExplicitKeepsOrderAndCasts(t *testing.T) {
	params := model.ExplicitParams([]model.TypedParam{
		{Name: "id", Type: "integer", Value: mustValue(t, `7`)},
		{Name: "label", Type: "text", Value: mustValue(t, `"x"`)},
	})
	got, err := coerceParams(params)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Coerced{Name: "id", Cast: "integer", Value: int64(7)}, got[0])
	assert.Equal(t, Coerced{Name: "label", Cast: "text", Value: "x"}, got[1])
}

func TestCoerceParams_ExplicitUnsupportedTypeNamesParam(t *testing.T) {
	params := model.ExplicitParams([]model.TypedParam{
		{Name: "total", Type: "money", Value: mustValue(t, `1`)},
	})
	_, err := coerceParams(params)
	require.Error(t, err)
	assert.Equal(t, ErrUnsupportedType, KindOf(err))
	assert.Contains(t, err.Error(), "total")
}

func TestCoerceParams_ImplicitErrorNamesParam(t *testing.T) {
	params := model.ImplicitParams(map[string]model.Value{
		"payload": mustValue(t, `{"k":1}`),
	})
	_, err := coerceParams(params)
	require.Error(t, err)
	assert.Equal(t, ErrUnsupportedType, KindOf(err))
	assert.Contains(t, err.Error(), "payload")
}

func TestCoerceParams_NoneYieldsEmpty(t *testing.T) {
	got, err := coerceParams(model.Parameters{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
