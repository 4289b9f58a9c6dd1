package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want Kind
	}{
		{name: "object", in: Object{"a": 1}, want: KindRaw},
		{name: "nil map", in: map[string]any(nil), want: KindEmpty},
		{name: "string", in: `{"a":1}`, want: KindEncoded},
		{name: "blank string", in: "  \n", want: KindEmpty},
		{name: "raw message", in: json.RawMessage(`{}`), want: KindEncoded},
		{name: "bytes", in: []byte(`{}`), want: KindEncoded},
		{name: "number", in: 12, want: KindEmpty},
		{name: "nil", in: nil, want: KindEmpty},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Classify(tc.in).Kind, tc.want.String())
		})
	}
}

func TestDecodeStopsAfterOneExtraLayer(t *testing.T) {
	t.Parallel()

	once, err := json.Marshal(`{"a":1}`)
	require.NoError(t, err)
	twice, err := json.Marshal(string(once))
	require.NoError(t, err)

	require.Equal(t, Object{"a": float64(1)}, DecodeAny(string(once)))
	require.Equal(t, Object{}, DecodeAny(string(twice)))
}

func TestNullableInt(t *testing.T) {
	t.Parallel()

	obj := Object{"f": float64(3), "i": 4, "n": json.Number("5"), "s": "6", "z": nil}

	v, ok := NullableInt(obj, "f")
	require.True(t, ok)
	require.Equal(t, 3, v)
	v, ok = NullableInt(obj, "n")
	require.True(t, ok)
	require.Equal(t, 5, v)
	_, ok = NullableInt(obj, "i")
	require.True(t, ok)

	for _, key := range []string{"s", "z", "missing"} {
		_, ok := NullableInt(obj, key)
		require.False(t, ok, key)
	}
}
