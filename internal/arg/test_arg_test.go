package arg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOverlaysDefaults(t *testing.T) {
	declared := []Argument{
		New("bucket", KindString).Require(),
		New("prefix", KindString).WithDefault("incoming/"),
		New("limit", KindInt).WithDefault(10),
	}
	cfg, err := Resolve(declared, map[string]any{
		"bucket": "media",
		"limit":  float64(25),
		"extra":  []any{"kept"},
	})
	require.NoError(t, err)

	assert.Equal(t, "media", cfg.String("bucket"))
	assert.Equal(t, "incoming/", cfg.String("prefix"))
	assert.EqualValues(t, 25, cfg.Int("limit"))
	assert.Equal(t, []any{"kept"}, cfg.ArgValue("extra"))
	assert.Equal(t, []string{"bucket", "prefix", "limit", "extra"}, cfg.Names())
}

func TestResolveOrdersUnknownKeys(t *testing.T) {
	declared := []Argument{New("zeta", KindString), New("alpha", KindString)}
	overlay := map[string]any{"zeta": "z", "mango": 1, "apple": 2, "kiwi": 3, "banana": 4}
	for i := 0; i < 20; i++ {
		cfg, err := Resolve(declared, overlay)
		require.NoError(t, err)
		assert.Equal(t, []string{"zeta", "alpha", "apple", "banana", "kiwi", "mango"}, cfg.Names())
	}
}

func TestResolveMissingRequired(t *testing.T) {
	_, err := Resolve([]Argument{New("dsn", KindString).Require()}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingRequired))

	var missing *MissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "dsn", missing.Name)
}

func TestResolveRequiredSatisfiedByDefault(t *testing.T) {
	cfg, err := Resolve([]Argument{New("count", KindInt).WithDefault(1).Require()}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, cfg.Int("count"))
}

func TestResolveCoercionFailureNamesArgument(t *testing.T) {
	_, err := Resolve([]Argument{New("count", KindInt)}, map[string]any{"count": "many"})
	var ce *CoercionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "count", ce.Name)
	assert.Contains(t, err.Error(), "count")
}

func TestCoerce(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		in   any
		want any
		bad  bool
	}{
		{"int from integral float", KindInt, float64(3), int64(3), false},
		{"int from fractional float", KindInt, 3.5, nil, true},
		{"int from string", KindInt, " 42 ", int64(42), false},
		{"int from uint8", KindInt, uint8(7), int64(7), false},
		{"float from int", KindFloat, 2, 2.0, false},
		{"float from string", KindFloat, "0.25", 0.25, false},
		{"bool from string", KindBool, "true", true, false},
		{"bool from int", KindBool, 1, nil, true},
		{"string from number", KindString, 12, "12", false},
		{"list from strings", KindList, []string{"a"}, []any{"a"}, false},
		{"map from any keys", KindMap, map[any]any{"a": 1}, map[string]any{"a": 1}, false},
		{"map from list", KindMap, []any{}, nil, true},
		{"any passthrough", KindAny, struct{}{}, struct{}{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := Coerce(tc.kind, tc.in)
			if tc.bad {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, v.Raw())
		})
	}
}

func TestConfigAccessorsZeroValues(t *testing.T) {
	cfg, err := Resolve([]Argument{New("flag", KindBool)}, nil)
	require.NoError(t, err)
	v, ok := cfg.Value("flag")
	require.True(t, ok)
	assert.True(t, v.IsNil())
	assert.Equal(t, KindBool, v.Kind())
	assert.False(t, cfg.Bool("flag"))
	assert.Nil(t, cfg.Map("absent"))
	assert.Empty(t, cfg.Strings("absent"))
}
