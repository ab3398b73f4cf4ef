package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount of rupiah. IDR has no minor unit, so every amount is a
// whole number.
type Money int64

var maxMoney = decimal.NewFromInt(1 << 53)

// MoneyFromDecimal converts a parsed request amount into Money. Fractional
// rupiah are rejected.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s has a fractional part", ErrInvalidAmount, d.String())
	}
	if d.Abs().GreaterThan(maxMoney) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}
	return Money(d.IntPart()), nil
}

// ParseMoney parses strings such as "150000" or "150000.00".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return MoneyFromDecimal(d)
}

func (m Money) Positive() bool { return m > 0 }

// String renders the amount the way receipts show it, e.g. "Rp 1.500.000".
func (m Money) String() string {
	neg := m < 0
	abs := uint64(m)
	if neg {
		// two's complement negation stays exact for math.MinInt64
		abs = -abs
	}
	digits := strconv.FormatUint(abs, 10)
	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-Rp " + b.String()
	}
	return "Rp " + b.String()
}
