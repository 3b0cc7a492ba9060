package challenge

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// WeiDecimals is the number of fractional digits of the native currency.
const WeiDecimals = 18

var (
	ErrEmptyAmount    = errors.New("amount is empty")
	ErrNegativeAmount = errors.New("amount is negative")
	ErrAmountTooFine  = errors.New("amount has more than 18 decimal places")

	milli = decimal.New(1, -3)
	micro = decimal.New(1, -6)
)

// FormatDecimal renders a wei amount in whole units with a precision that
// grows as the amount shrinks: 4 places from 0.001 up, 8 places from
// 0.000001 up and every place below that. Digits are truncated, never
// rounded up, so a non-zero amount never prints as zero and never
// overstates the value.
func FormatDecimal(wei *big.Int) string {
	if wei == nil {
		wei = new(big.Int)
	}
	d := decimal.NewFromBigInt(wei, -WeiDecimals)
	places := precisionFor(d)
	return d.Truncate(places).StringFixed(places)
}

// FormatAmount is FormatDecimal with the currency symbol appended.
func FormatAmount(wei *big.Int, symbol string) string {
	if symbol == "" {
		return FormatDecimal(wei)
	}
	return FormatDecimal(wei) + " " + symbol
}

func precisionFor(d decimal.Decimal) int32 {
	abs := d.Abs()
	switch {
	case abs.IsZero(), abs.GreaterThanOrEqual(milli):
		return 4
	case abs.GreaterThanOrEqual(micro):
		return 8
	default:
		return WeiDecimals
	}
}

// ParseAmount converts a decimal string in whole units ("0.001") to wei.
// It fails rather than rounding or defaulting to zero.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeAmount, s)
	}
	if !d.Equal(d.Truncate(WeiDecimals)) {
		return nil, fmt.Errorf("%w: %s", ErrAmountTooFine, s)
	}
	return d.Shift(WeiDecimals).BigInt(), nil
}

// TotalCost is the value a creator must send: the per-participant reward
// times the participant cap.
func TotalCost(reward *big.Int, maxParticipants uint64) *big.Int {
	if reward == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(reward, new(big.Int).SetUint64(maxParticipants))
}
