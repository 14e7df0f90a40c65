package param

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCoerce(t *testing.T) {
	v, err := Int(5).Coerce("INT")
	require.NoError(t, err)
	require.Equal(t, int64(5), v)

	// int widens to decimal targets
	v, err = Int(5).Coerce("decimal")
	require.NoError(t, err)
	require.Equal(t, int64(5), v)

	v, err = Decimal(1.5).Coerce("double")
	require.NoError(t, err)
	require.Equal(t, 1.5, v)

	v, err = String("abc").Coerce("varchar")
	require.NoError(t, err)
	require.Equal(t, "abc", v)

	// a textual date literal is acceptable for a time parameter, the server
	// parses it
	v, err = String("2024-05-01").Coerce("date")
	require.NoError(t, err)
	require.Equal(t, "2024-05-01", v)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v, err = Time(ts).Coerce("datetime")
	require.NoError(t, err)
	require.Equal(t, ts, v)

	v, err = Bool(true).Coerce("tinyint")
	require.NoError(t, err)
	require.Equal(t, true, v)

	// NULL binds to any declared type
	v, err = Null().Coerce("int")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestCoerceIncompatible(t *testing.T) {
	_, err := String("abc").Coerce("int")
	require.Error(t, err)
	_, err = Decimal(1.5).Coerce("varchar")
	require.Error(t, err)
	_, err = Int(5).Coerce("datetime")
	require.Error(t, err)
	_, err = Bool(true).Coerce("varchar")
	require.Error(t, err)
}

func TestSetNamed(t *testing.T) {
	require.True(t, Set{}.Named())
	require.True(t, Set{{Name: "@a", Value: Int(1)}}.Named())
	require.False(t, Set{{Value: Int(1)}}.Named())
	require.False(t, Set{{Name: "@a", Value: Int(1)}, {Value: Int(2)}}.Named())
}

func TestParamJSONRoundTrip(t *testing.T) {
	in := Set{
		{Name: "@p_id", Value: Int(42)},
		{Name: "@p_name", Value: String("alice")},
		{Name: "@p_rate", Value: Decimal(0.5)},
		{Name: "@p_active", Value: Bool(true)},
		{Name: "@p_since", Value: Time(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC))},
		{Name: "@p_note", Value: Null()},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Set
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, len(in))
	require.Equal(t, in[0], out[0])
	require.Equal(t, in[1], out[1])
	require.Equal(t, in[2], out[2])
	require.Equal(t, KindTime, out[4].Value.Kind())
	require.True(t, out[5].Value.IsNull())
}

func TestParamUnmarshalExternalShape(t *testing.T) {
	// the shape the case registration layer persists
	data := `[
		{"name": "@p_id", "value": 100, "data_type": "int"},
		{"name": "@p_name", "value": "bob", "data_type": "varchar"},
		{"name": "@p_when", "value": "2024-05-01 08:00:00", "data_type": "datetime"},
		{"name": "@p_amount", "value": 9.99, "data_type": "money"},
		{"name": "@p_gone", "value": null, "data_type": "varchar"}
	]`

	var set Set
	require.NoError(t, json.Unmarshal([]byte(data), &set))
	require.Len(t, set, 5)
	require.Equal(t, Int(100), set[0].Value)
	require.Equal(t, String("bob"), set[1].Value)
	require.Equal(t, Time(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)), set[2].Value)
	require.Equal(t, Decimal(9.99), set[3].Value)
	require.True(t, set[4].Value.IsNull())
}

func TestParamUnmarshalBadValue(t *testing.T) {
	var set Set
	err := json.Unmarshal([]byte(`[{"name":"@p","value":"abc","data_type":"int"}]`), &set)
	require.Error(t, err)
}
