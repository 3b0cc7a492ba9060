package challenge

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad wei literal " + s)
	}
	return v
}

func TestFormatDecimal(t *testing.T) {
	cases := []struct {
		wei  string
		want string
	}{
		{"0", "0.0000"},
		{"1000000000000000000", "1.0000"},
		{"1234567890000000000", "1.2345"},
		{"1000000000000000", "0.0010"},
		{"999999999999999", "0.00099999"},
		{"1000000000000", "0.00000100"},
		{"999999999999", "0.000000999999999999"},
		{"1", "0.000000000000000001"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatDecimal(wei(tc.wei)), tc.wei)
	}
	assert.Equal(t, "0.0000", FormatDecimal(nil))
}

func TestFormatNeverShowsZeroForPositive(t *testing.T) {
	for _, s := range []string{"1", "17", "123456", "999999999999", "1000000000001"} {
		out := FormatDecimal(wei(s))
		assert.NotEqual(t, "0.0000", out, s)
		assert.NotEqual(t, "0.00000000", out, s)
	}
}

func TestFormatAmountSymbol(t *testing.T) {
	assert.Equal(t, "0.0010 ETH", FormatAmount(wei("1000000000000000"), "ETH"))
	assert.Equal(t, "0.0010", FormatAmount(wei("1000000000000000"), ""))
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("0.001")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000", got.String())

	got, err = ParseAmount(" 2 ")
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000000", got.String())

	got, err = ParseAmount("0.000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "1", got.String())
}

func TestParseAmountRejects(t *testing.T) {
	_, err := ParseAmount("")
	assert.ErrorIs(t, err, ErrEmptyAmount)

	_, err = ParseAmount("-1")
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = ParseAmount("0.0000000000000000001")
	assert.ErrorIs(t, err, ErrAmountTooFine)

	_, err = ParseAmount("abc")
	assert.Error(t, err)
}

func TestTotalCost(t *testing.T) {
	assert.Equal(t, "5000000000000000", TotalCost(wei("1000000000000000"), 5).String())
	assert.Equal(t, "0", TotalCost(nil, 5).String())
}
