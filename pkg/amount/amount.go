// Package amount converts between token-native amounts and the fixed 8-decimal precision transfer payloads carry.
package amount

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// MaxDecimals is the precision of amounts inside token bridge payloads.
const MaxDecimals = 8

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Normalize scales amount from decimals down to at most 8 decimals, truncating the dust.
// Amounts of tokens with 8 or fewer decimals are returned unchanged.
func Normalize(amount *big.Int, decimals uint8) *big.Int {
	if amount == nil {
		return nil
	}
	if decimals <= MaxDecimals {
		return new(big.Int).Set(amount)
	}
	return new(big.Int).Div(amount, pow10(decimals-MaxDecimals))
}

// Denormalize scales a payload amount back to the token's native decimals. The input is never mutated.
func Denormalize(amount *big.Int, decimals uint8) *big.Int {
	if amount == nil {
		return nil
	}
	if decimals <= MaxDecimals {
		return new(big.Int).Set(amount)
	}
	return new(big.Int).Mul(amount, pow10(decimals-MaxDecimals))
}

// Dust returns the part of amount that Normalize drops.
func Dust(amount *big.Int, decimals uint8) *big.Int {
	if amount == nil || decimals <= MaxDecimals {
		return new(big.Int)
	}
	return new(big.Int).Mod(amount, pow10(decimals-MaxDecimals))
}

// Format renders a native amount with the token's decimals, e.g. 1500000 with 6 decimals is 1.5.
func Format(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// FormatNormalized renders a payload amount, which always carries min(decimals, 8) decimals.
func FormatNormalized(amount *big.Int, decimals uint8) decimal.Decimal {
	if decimals > MaxDecimals {
		decimals = MaxDecimals
	}
	return Format(amount, decimals)
}

// Parse converts a human readable amount such as "1.5" to the token's native integer representation.
// Digits beyond the token's precision are truncated.
func Parse(s string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}
