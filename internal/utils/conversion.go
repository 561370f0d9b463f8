/*
This file contains common utility functions for converting between raw
on-chain integer amounts and whole-token float values.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
)

// RawToFloat64 converts a raw on-chain integer amount to a whole-token
// float64 using the token's decimal precision.
func RawToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	decAmount := sdkmath.LegacyNewDecFromInt(amount)
	factor := sdkmath.LegacyNewDec(10).Power(uint64(precision))

	resultFloat, err := decAmount.Quo(factor).Float64()
	if err != nil {
		return 0, fmt.Errorf("conversion failed: %w", err)
	}
	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// RawAmountUSD values a raw on-chain amount at the given whole-token price.
func RawAmountUSD(amount sdkmath.Int, precision int, priceUSD float64) (float64, error) {
	tokens, err := RawToFloat64(amount, precision)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(priceUSD) || math.IsInf(priceUSD, 0) || priceUSD < 0 {
		return 0, fmt.Errorf("%w: price is %f", ErrNotFinite, priceUSD)
	}
	return tokens * priceUSD, nil
}
