package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Compare(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Value
		want    int
		wantErr bool
	}{
		{"ints", Int(1), Int(2), -1, false},
		{"equal ints", Int(5), Int(5), 0, false},
		{"int vs float", Int(2), Float(1.5), 1, false},
		{"float vs int equal", Float(3), Int(3), 0, false},
		{"bools", Bool(false), Bool(true), -1, false},
		{"strings", String("b"), String("a"), 1, false},
		{"string vs int", String("1"), Int(1), 0, true},
		{"bool vs int", Bool(true), Int(1), 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.a.Compare(tc.b)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValue_Coerce(t *testing.T) {
	v, err := Int(3).Coerce(KindFloat)
	require.NoError(t, err)
	assert.Equal(t, Float(3), v)

	_, err = Float(3).Coerce(KindInt)
	assert.Error(t, err)
	_, err = String("x").Coerce(KindBool)
	assert.Error(t, err)

	assert.True(t, Int(1).Convertible(KindFloat))
	assert.False(t, Float(1).Convertible(KindInt))
	assert.True(t, Bool(true).Convertible(KindBool))
}

func TestValue_UsableAsMapKey(t *testing.T) {
	m := map[Value]int{Int(1): 1, String("1"): 2, Bool(true): 3, Float(1): 4}
	assert.Len(t, m, 4)
	assert.Equal(t, 3, m[Bool(true)])
	assert.Equal(t, Zero(KindInt), Int(0))
	assert.True(t, Value{}.IsNone())
	assert.Equal(t, `"hi"`, String("hi").String())
	assert.Equal(t, "true", Bool(true).String())
}

func TestParseValueKind(t *testing.T) {
	for _, name := range []string{"bool", "int", "float", "string"} {
		k, err := ParseValueKind(name)
		require.NoError(t, err)
		assert.Equal(t, name, k.String())
	}
	_, err := ParseValueKind("none")
	assert.Error(t, err)
}
