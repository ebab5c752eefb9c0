// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package settlement

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitDecimals is the fixed-point precision of the escrow currency.
const MinorUnitDecimals = 6

const (
	// maxAmountLen bounds the textual form of an amount.
	maxAmountLen = 96
	// maxMinorDigits is the digit count of the largest uint256.
	maxMinorDigits = 78
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrPrecision     = errors.New("amount exceeds minor-unit precision")
	ErrAmountRange   = errors.New("amount out of uint256 range")
)

// ParseAmount converts a decimal currency string ("1200", "250.5") into
// integer minor units. Values with more fractional digits than the currency
// supports are rejected rather than rounded. The magnitude is checked
// against uint256 before any scaling, so exponent notation cannot inflate
// the work done per amount.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountLen {
		return nil, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsZero() {
		return new(big.Int), nil
	}

	exp := int(d.Exponent())
	if exp < -maxAmountLen {
		return nil, fmt.Errorf("%w: %q", ErrPrecision, s)
	}
	if d.NumDigits()+exp+MinorUnitDecimals > maxMinorDigits {
		return nil, fmt.Errorf("%w: %q", ErrAmountRange, s)
	}

	scaled := d.Shift(MinorUnitDecimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %q", ErrPrecision, s)
	}
	minor := scaled.BigInt()
	if minor.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %q", ErrAmountRange, s)
	}
	return minor, nil
}

// InReportRange reports whether minor fits the report's uint256 amount field.
func InReportRange(minor *big.Int) bool {
	return inUint256(minor)
}

// FormatAmount renders minor units back into a decimal currency string.
func FormatAmount(minor *big.Int) string {
	if minor == nil {
		return "0"
	}
	return decimal.NewFromBigInt(minor, -MinorUnitDecimals).String()
}

// ToMinor converts whole currency units into minor units.
func ToMinor(units int64) *big.Int {
	return decimal.NewFromInt(units).Shift(MinorUnitDecimals).BigInt()
}
