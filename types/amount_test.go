package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxUint256 = "115792089237316195423570985008687907853269984665640564039457584007913129639935"

func TestAmountArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() (Amount, bool)
		expected string
		wrapped  bool
	}{
		{"Add", func() (Amount, bool) { return NewAmount(100).Add(NewAmount(200)) }, "300", false},
		{"Add overflow", func() (Amount, bool) { return MustParseAmount(maxUint256).Add(NewAmount(1)) }, "0", true},
		{"Sub", func() (Amount, bool) { return NewAmount(500).Sub(NewAmount(200)) }, "300", false},
		{"Sub underflow", func() (Amount, bool) { return NewAmount(1).Sub(NewAmount(2)) }, maxUint256, true},
		{"Mul", func() (Amount, bool) { return NewAmount(100).Mul(NewAmount(3)) }, "300", false},
		{"Mul overflow", func() (Amount, bool) { return MustParseAmount(maxUint256).Mul(NewAmount(2)) }, "", true},
		{"MulDiv scale", func() (Amount, bool) { return NewAmount(1_000_000).MulDiv(Pow10(18), NewAmount(500)) }, "2000000000000000000000", false},
		{"MulDiv zero divisor", func() (Amount, bool) { return NewAmount(1).MulDiv(NewAmount(1), Amount{}) }, "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, wrapped := tt.op()
			assert.Equal(t, tt.wrapped, wrapped)
			if tt.expected != "" {
				assert.Equal(t, tt.expected, got.String())
			}
		})
	}
}

func TestAmountHalf(t *testing.T) {
	tests := []struct {
		in, half uint64
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{7, 3},
		{1_000_001, 500_000},
	}

	for _, tt := range tests {
		a := NewAmount(tt.in)
		assert.Equal(t, NewAmount(tt.half), a.Half(), "half of %d", tt.in)

		rest, underflow := a.Sub(a.Half())
		require.False(t, underflow)
		sum, _ := a.Half().Add(rest)
		assert.True(t, sum.Eq(a))
	}
}

func TestAmountCompare(t *testing.T) {
	small, large := NewAmount(5), NewAmount(9)

	assert.True(t, small.Lt(large))
	assert.True(t, large.Gt(small))
	assert.Equal(t, -1, small.Cmp(large))
	assert.Equal(t, small, small.Min(large))
	assert.Equal(t, small, large.Min(small))
	assert.True(t, Amount{}.IsZero())
	assert.Equal(t, Amount{}, small.SaturatingSub(large))
	assert.Equal(t, NewAmount(4), large.SaturatingSub(small))
}

func TestAmountParse(t *testing.T) {
	a, err := ParseAmount("1000000000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, Pow10(24), a)

	_, err = ParseAmount("-1")
	assert.Error(t, err)

	_, err = ParseAmount("12abc")
	assert.Error(t, err)
}

func TestAmountFromBig(t *testing.T) {
	a, ok := AmountFromBig(big.NewInt(42))
	require.True(t, ok)
	assert.Equal(t, NewAmount(42), a)
	assert.Equal(t, int64(42), a.Big().Int64())

	_, ok = AmountFromBig(big.NewInt(-1))
	assert.False(t, ok)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, ok = AmountFromBig(tooBig)
	assert.False(t, ok)
}

func TestAmountJSON(t *testing.T) {
	type payload struct {
		Value Amount `json:"value"`
	}

	data, err := json.Marshal(payload{Value: Pow10(20)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"100000000000000000000"}`, string(data))

	var quoted payload
	require.NoError(t, json.Unmarshal(data, &quoted))
	assert.Equal(t, Pow10(20), quoted.Value)

	var bare payload
	require.NoError(t, json.Unmarshal([]byte(`{"value": 1500}`), &bare))
	assert.Equal(t, NewAmount(1500), bare.Value)
}

func TestAmountScan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want Amount
	}{
		{"nil", nil, Amount{}},
		{"string", "123", NewAmount(123)},
		{"bytes", []byte("77"), NewAmount(77)},
		{"int64", int64(9), NewAmount(9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Amount
			require.NoError(t, a.Scan(tt.src))
			assert.Equal(t, tt.want, a)
		})
	}

	var a Amount
	assert.Error(t, a.Scan(int64(-1)))
	assert.Error(t, a.Scan(3.5))

	v, err := NewAmount(55).Value()
	require.NoError(t, err)
	assert.Equal(t, "55", v)
}
