package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AmountDecimals is the number of fractional digits an Amount carries.
const AmountDecimals = 8

// BaseUnitsPerToken is the number of base units in one whole token.
const BaseUnitsPerToken Amount = 100_000_000

// ErrInvalidAmount is returned when a token quantity cannot be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a token quantity held as an integer count of base units, so
// halving and supply arithmetic is exact. It is written to JSON as a decimal
// token number, 4.5 rather than 450000000.
type Amount uint64

// Tokens converts whole tokens to an Amount.
func Tokens(n uint64) Amount {
	return Amount(n) * BaseUnitsPerToken
}

// Float64 returns the amount in tokens.
func (a Amount) Float64() float64 {
	return float64(a/BaseUnitsPerToken) + float64(a%BaseUnitsPerToken)/float64(BaseUnitsPerToken)
}

// String formats the amount in tokens without trailing zeros.
func (a Amount) String() string {
	whole := uint64(a / BaseUnitsPerToken)
	frac := uint64(a % BaseUnitsPerToken)
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	f := strings.TrimRight(fmt.Sprintf("%0*d", AmountDecimals, frac), "0")
	return strconv.FormatUint(whole, 10) + "." + f
}

// MarshalJSON writes the amount as a JSON number in tokens.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON reads a JSON number (or numeric string) in tokens.
func (a *Amount) UnmarshalJSON(data []byte) error {
	v, err := ParseAmount(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAmount parses a decimal token quantity such as "36", "4.5" or
// "0.00000001". More than AmountDecimals fractional digits, signs and
// exponents are rejected.
func ParseAmount(s string) (Amount, error) {
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || !allDigits(whole) || (hasFrac && (frac == "" || !allDigits(frac))) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if len(frac) > AmountDecimals {
		return 0, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, AmountDecimals)
	}

	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil || w > math.MaxUint64/uint64(BaseUnitsPerToken) {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, s)
	}
	var f uint64
	if frac != "" {
		f, _ = strconv.ParseUint(frac+strings.Repeat("0", AmountDecimals-len(frac)), 10, 64)
	}
	base := w * uint64(BaseUnitsPerToken)
	total := base + f
	if total < base {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, s)
	}
	return Amount(total), nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
