package quest

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// amountBits bounds every stored amount to an unsigned 128-bit value.
const amountBits = 128

// ParseAmount parses a decimal string literal into an amount. Only ASCII
// digits are accepted; signs, whitespace, separators and values wider than
// 128 bits are rejected.
func ParseAmount(field, raw string) (*uint256.Int, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: %s must be a valid number", ErrInvalidAmount, field)
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return nil, fmt.Errorf("%w: %s must be a valid number", ErrInvalidAmount, field)
		}
	}
	parsed, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a valid number", ErrInvalidAmount, field)
	}
	value, overflow := uint256.FromBig(parsed)
	if overflow || value.BitLen() > amountBits {
		return nil, fmt.Errorf("%w: %s exceeds 128 bits", ErrInvalidAmount, field)
	}
	return value, nil
}

// addAmount returns a+b, failing instead of wrapping past 128 bits.
func addAmount(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(amountOrZero(a), amountOrZero(b))
	if overflow || sum.BitLen() > amountBits {
		return nil, ErrAmountOverflow
	}
	return sum, nil
}

// subAmount returns a-b. Callers must have checked a >= b; a violation is
// reported rather than wrapped.
func subAmount(a, b *uint256.Int) (*uint256.Int, error) {
	left, right := amountOrZero(a), amountOrZero(b)
	if left.Lt(right) {
		return nil, &InsufficientFundsError{Required: cloneAmount(right), Available: cloneAmount(left)}
	}
	return new(uint256.Int).Sub(left, right), nil
}

func amountOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

// FormatAmount renders an amount as a decimal string.
func FormatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
