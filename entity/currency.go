package entity

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// CurrencyAmountTag marks serialized currency amounts so the persistence
// layer reconstructs them by explicit type tag instead of structural
// guessing.
const CurrencyAmountTag = "CurrencyAmount"

type Currency struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	ChainID  string `json:"chain_id,omitempty"`
}

// CurrencyAmount is an exact fraction of currency base units. Numerator
// and denominator are arbitrary precision, decimal scale is 10^decimals.
type CurrencyAmount struct {
	Currency     Currency
	Numerator    *big.Int
	Denominator  *big.Int
	DecimalScale *big.Int
}

func NewCurrencyAmount(currency Currency, numerator, denominator *big.Int) (*CurrencyAmount, error) {
	if numerator == nil {
		return nil, fmt.Errorf("currency amount numerator is nil")
	}
	if denominator == nil {
		denominator = big.NewInt(1)
	}
	if denominator.Sign() == 0 {
		return nil, fmt.Errorf("currency amount denominator is zero")
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(currency.Decimals)), nil)
	return &CurrencyAmount{
		Currency:     currency,
		Numerator:    new(big.Int).Set(numerator),
		Denominator:  new(big.Int).Set(denominator),
		DecimalScale: scale,
	}, nil
}

// Quotient returns the amount in base units, rounded towards zero.
func (a *CurrencyAmount) Quotient() *big.Int {
	return new(big.Int).Quo(a.Numerator, a.Denominator)
}

// String formats the amount in whole currency units with full precision,
// trailing zeros trimmed.
func (a *CurrencyAmount) String() string {
	den := new(big.Int).Mul(a.Denominator, a.DecimalScale)
	whole, rem := new(big.Int).QuoRem(a.Numerator, den, new(big.Int))
	if rem.Sign() == 0 {
		return whole.String()
	}
	// scale the remainder up to the currency's precision
	frac := new(big.Int).Mul(rem.Abs(rem), a.DecimalScale)
	frac.Quo(frac, den)
	digits := frac.String()
	if pad := int(a.Currency.Decimals) - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	fracStr := strings.TrimRight(digits, "0")
	if fracStr == "" {
		return whole.String()
	}
	return whole.String() + "." + fracStr
}

func (a *CurrencyAmount) Equal(b *CurrencyAmount) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Currency == b.Currency &&
		a.Numerator.Cmp(b.Numerator) == 0 &&
		a.Denominator.Cmp(b.Denominator) == 0 &&
		a.DecimalScale.Cmp(b.DecimalScale) == 0
}

func (a *CurrencyAmount) Clone() *CurrencyAmount {
	if a == nil {
		return nil
	}
	return &CurrencyAmount{
		Currency:     a.Currency,
		Numerator:    new(big.Int).Set(a.Numerator),
		Denominator:  new(big.Int).Set(a.Denominator),
		DecimalScale: new(big.Int).Set(a.DecimalScale),
	}
}

type currencyAmountJSON struct {
	Type         string   `json:"__type"`
	Currency     Currency `json:"currency"`
	Numerator    string   `json:"numerator"`
	Denominator  string   `json:"denominator"`
	DecimalScale string   `json:"decimal_scale"`
}

func (a *CurrencyAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(&currencyAmountJSON{
		Type:         CurrencyAmountTag,
		Currency:     a.Currency,
		Numerator:    BigintPrefix + a.Numerator.String(),
		Denominator:  BigintPrefix + a.Denominator.String(),
		DecimalScale: BigintPrefix + a.DecimalScale.String(),
	})
}

func (a *CurrencyAmount) UnmarshalJSON(blob []byte) error {
	var raw currencyAmountJSON
	if err := json.Unmarshal(blob, &raw); err != nil {
		return fmt.Errorf("can't unmarshal currency amount: %w", err)
	}
	if raw.Type != CurrencyAmountTag {
		return fmt.Errorf("unexpected currency amount tag %q", raw.Type)
	}
	num, err := parseTaggedBig(raw.Numerator)
	if err != nil {
		return err
	}
	den, err := parseTaggedBig(raw.Denominator)
	if err != nil {
		return err
	}
	scale, err := parseTaggedBig(raw.DecimalScale)
	if err != nil {
		return err
	}
	a.Currency = raw.Currency
	a.Numerator = num
	a.Denominator = den
	a.DecimalScale = scale
	return nil
}

func parseTaggedBig(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimPrefix(raw, BigintPrefix), 10)
	if !ok {
		return nil, fmt.Errorf("can't parse bigint %q", raw)
	}
	return v, nil
}
