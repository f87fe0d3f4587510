package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueInt(t *testing.T) {
	for name, tc := range map[string]struct {
		v   Value
		res int64
		ok  bool
	}{
		"int":             {IntValue(7), 7, true},
		"integral double": {DoubleValue(12), 12, true},
		"fraction":        {DoubleValue(1.5), 0, false},
		"too large":       {DoubleValue(1e20), 0, false},
		"too small":       {DoubleValue(-1e20), 0, false},
		"max int64":       {DoubleValue(math.MaxInt64), 0, false},
		"min int64":       {DoubleValue(math.MinInt64), math.MinInt64, true},
		"infinity":        {DoubleValue(math.Inf(1)), 0, false},
		"nan":             {DoubleValue(math.NaN()), 0, false},
		"numeric string":  {StringValue("42"), 42, true},
		"text":            {StringValue("x"), 0, false},
	} {
		t.Run(name, func(t *testing.T) {
			res, ok := tc.v.Int()
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.res, res)
		})
	}
}

func TestValueUnmarshalNumbers(t *testing.T) {
	var v Value
	assert.NoError(t, v.UnmarshalJSON([]byte(`1e20`)))
	_, ok := v.Int()
	assert.False(t, ok)
	f, ok := v.Float()
	assert.True(t, ok)
	assert.Equal(t, 1e20, f)

	assert.NoError(t, v.UnmarshalJSON([]byte(`12`)))
	assert.Equal(t, ValueInt, v.Type())
}
