// Package fixedpoint handles on-chain integer amounts. Remote monetary
// fields arrive as raw integers with an implicit 18-decimal scale (or the
// collateral token's native scale); everything here stays in exact
// arbitrary-precision arithmetic, never float64.
package fixedpoint

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ChainDecimals is the implicit scale of remote monetary integers.
const ChainDecimals = 18

// Unit is 10^18, the fixed-point representation of 1.
var Unit = decimal.New(1, ChainDecimals)

// ParseRaw decodes a raw fixed-point integer string as emitted by the remote
// source. The value keeps its integer representation; no scale is applied.
func ParseRaw(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse raw amount %q: %w", s, err)
	}
	return d, nil
}

// ScaleTo18 converts a raw integer at the token's native scale to the
// 18-decimal scale: value * 10^(18 - tokenDecimals). Exact for any
// tokenDecimals <= 18, which holds for every supported collateral.
func ScaleTo18(v decimal.Decimal, tokenDecimals int32) decimal.Decimal {
	return v.Shift(ChainDecimals - tokenDecimals)
}

// ScaleFrom18 is the inverse of ScaleTo18.
func ScaleFrom18(v decimal.Decimal, tokenDecimals int32) decimal.Decimal {
	return v.Shift(tokenDecimals - ChainDecimals)
}

// Sum adds amounts without any intermediate rounding.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// MulDiv1e18 computes a*b/1e18 floored to an integer. Division by the unit
// is an exact exponent shift, so no precision is lost before the floor.
func MulDiv1e18(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b).Shift(-ChainDecimals).Floor()
}

// Div1e18Floor floors v/1e18 to an integer.
func Div1e18Floor(v decimal.Decimal) decimal.Decimal {
	return v.Shift(-ChainDecimals).Floor()
}
