package entity_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/balancednetwork/xcall-tracker/entity"
)

func TestBigUintMarshalJSON(t *testing.T) {
	t.Parallel()

	blob, err := json.Marshal(entity.BigUint(18446744073709551615))
	require.NoError(t, err)
	require.JSONEq(t, `"BIGINT::18446744073709551615"`, string(blob))
}

func TestBigUintUnmarshalJSON(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name     string
		Input    string
		Expected uint64
		HasError bool
	}{
		{
			Name:     "Tagged string",
			Input:    `"BIGINT::18446744073709551615"`,
			Expected: 18446744073709551615,
		},
		{
			Name:     "Plain number",
			Input:    `42`,
			Expected: 42,
		},
		{
			Name:     "Untagged numeric string",
			Input:    `"1024"`,
			Expected: 1024,
		},
		{
			Name:     "Garbage string",
			Input:    `"BIGINT::xyz"`,
			HasError: true,
		},
		{
			Name:     "Unexpected shape",
			Input:    `{"value": 1}`,
			HasError: true,
		},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()

			var v entity.BigUint
			err := json.Unmarshal([]byte(test.Input), &v)
			if test.HasError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.Expected, v.Uint64())
		})
	}
}

func TestCurrencyAmountRoundTrip(t *testing.T) {
	t.Parallel()

	amount, err := entity.NewCurrencyAmount(entity.Currency{
		Symbol:   "bnUSD",
		Decimals: 18,
		ChainID:  "0x1.icon",
	}, big.NewInt(1500000000000000000), big.NewInt(1))
	require.NoError(t, err)

	blob, err := json.Marshal(amount)
	require.NoError(t, err)
	require.Contains(t, string(blob), `"__type":"CurrencyAmount"`)
	require.Contains(t, string(blob), `"BIGINT::1500000000000000000"`)

	restored := new(entity.CurrencyAmount)
	require.NoError(t, json.Unmarshal(blob, restored))
	require.True(t, amount.Equal(restored))
}

func TestCurrencyAmountRejectsWrongTag(t *testing.T) {
	t.Parallel()

	restored := new(entity.CurrencyAmount)
	err := json.Unmarshal([]byte(`{"__type":"Fraction","numerator":"1","denominator":"1","decimal_scale":"1"}`), restored)
	require.Error(t, err)
}

func TestCurrencyAmountString(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name      string
		Decimals  uint8
		Numerator int64
		Expected  string
	}{
		{
			Name:      "Whole units",
			Decimals:  18,
			Numerator: 2000000000000000000,
			Expected:  "2",
		},
		{
			Name:      "Fractional",
			Decimals:  18,
			Numerator: 1500000000000000000,
			Expected:  "1.5",
		},
		{
			Name:      "Small fraction needs zero padding",
			Decimals:  6,
			Numerator: 1000042,
			Expected:  "1.000042",
		},
		{
			Name:      "Zero",
			Decimals:  18,
			Numerator: 0,
			Expected:  "0",
		},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()

			amount, err := entity.NewCurrencyAmount(entity.Currency{
				Symbol:   "TEST",
				Decimals: test.Decimals,
			}, big.NewInt(test.Numerator), nil)
			require.NoError(t, err)
			require.Equal(t, test.Expected, amount.String())
		})
	}
}

func TestNewCurrencyAmountValidation(t *testing.T) {
	t.Parallel()

	_, err := entity.NewCurrencyAmount(entity.Currency{Symbol: "TEST"}, nil, nil)
	require.Error(t, err)

	_, err = entity.NewCurrencyAmount(entity.Currency{Symbol: "TEST"}, big.NewInt(1), big.NewInt(0))
	require.Error(t, err)
}

func TestEventMapMerge(t *testing.T) {
	t.Parallel()

	m := entity.EventMap{
		entity.EventCallMessageSent: {Type: entity.EventCallMessageSent, Sn: 5},
	}

	changed := m.Merge(entity.EventMap{
		entity.EventCallMessage: {Type: entity.EventCallMessage, Sn: 5, ReqID: 9},
	})
	require.True(t, changed)
	require.Len(t, m, 2)

	changed = m.Merge(entity.EventMap{
		entity.EventCallMessageSent: {Type: entity.EventCallMessageSent, Sn: 5},
	})
	require.False(t, changed)

	changed = m.Merge(entity.EventMap{
		entity.EventCallMessageSent: {Type: entity.EventCallMessageSent, Sn: 5, TxHash: "0xabc"},
	})
	require.True(t, changed)
	require.Equal(t, "0xabc", m[entity.EventCallMessageSent].TxHash)
}
