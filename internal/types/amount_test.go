package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountFormatsInTokens(t *testing.T) {
	cases := []struct {
		amount Amount
		want   string
	}{
		{0, "0"},
		{Tokens(36), "36"},
		{Tokens(36) >> 3, "4.5"},
		{Tokens(36) >> 11, "0.01757812"},
		{1, "0.00000001"},
		{Tokens(12_614_400), "12614400"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.amount.String())

			data, err := json.Marshal(tc.amount)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(data))

			var back Amount
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tc.amount, back)
		})
	}
	assert.Equal(t, 4.5, (Tokens(36) >> 3).Float64())
}

func TestParseAmount(t *testing.T) {
	a, err := ParseAmount("4.50")
	require.NoError(t, err)
	assert.Equal(t, Amount(450_000_000), a)

	var quoted Amount
	require.NoError(t, json.Unmarshal([]byte(`"18"`), &quoted))
	assert.Equal(t, Tokens(18), quoted)

	for _, bad := range []string{"", "-1", "1e3", "1.", ".5", "0.000000001", "abc", "184467440737.09551616"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}

	largest, err := ParseAmount("184467440737.09551615")
	require.NoError(t, err)
	assert.Equal(t, Amount(math.MaxUint64), largest)
}

func TestLedgerStateJSONUsesTokens(t *testing.T) {
	data, err := json.Marshal(LedgerState{Height: 525_600, Supply: Tokens(11_037_564) + Tokens(9)/2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"height":525600,"supply":11037568.5,"lastHalvingEpoch":0}`, string(data))
}
