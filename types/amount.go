package types

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Amount is an unsigned 256-bit token or reference-currency quantity.
// All arithmetic is integer-only and every operation that can wrap reports it.
//
// The zero value is 0 and ready to use. Amount is a value type; copies are
// independent.
//
//nolint:recvcheck // Value receivers for arithmetic, pointer receivers for UnmarshalText/Scan.
type Amount struct {
	v uint256.Int
}

// MaxDecimals is the largest decimal exponent Pow10 accepts.
const MaxDecimals = 77

// NewAmount creates an Amount from a uint64.
func NewAmount(x uint64) Amount {
	var a Amount
	a.v.SetUint64(x)
	return a
}

// ParseAmount parses a base-10 string such as "1000000000000000000".
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if err := a.v.SetFromDecimal(s); err != nil {
		return Amount{}, fmt.Errorf("amount: parse %q: %w", s, err)
	}
	return a, nil
}

// MustParseAmount is like ParseAmount but panics on error. Use for constants.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AmountFromBig converts a big.Int. ok is false if b is negative or does not
// fit in 256 bits.
func AmountFromBig(b *big.Int) (a Amount, ok bool) {
	if b == nil {
		return Amount{}, true
	}
	if b.Sign() < 0 {
		return Amount{}, false
	}
	overflow := a.v.SetFromBig(b)
	return a, !overflow
}

// Pow10 returns 10^n. It panics if n > MaxDecimals.
func Pow10(n uint8) Amount {
	if n > MaxDecimals {
		panic(fmt.Sprintf("amount: 10^%d overflows 256 bits", n))
	}
	var a Amount
	a.v.Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
	return a
}

// Arithmetic

// Add returns a+b. overflow is true if the sum wrapped.
func (a Amount) Add(b Amount) (sum Amount, overflow bool) {
	_, overflow = sum.v.AddOverflow(&a.v, &b.v)
	return sum, overflow
}

// Sub returns a-b. underflow is true if b > a.
func (a Amount) Sub(b Amount) (diff Amount, underflow bool) {
	_, underflow = diff.v.SubOverflow(&a.v, &b.v)
	return diff, underflow
}

// SaturatingSub returns a-b, or zero if b > a.
func (a Amount) SaturatingSub(b Amount) Amount {
	diff, underflow := a.Sub(b)
	if underflow {
		return Amount{}
	}
	return diff
}

// Mul returns a*b. overflow is true if the product wrapped.
func (a Amount) Mul(b Amount) (product Amount, overflow bool) {
	_, overflow = product.v.MulOverflow(&a.v, &b.v)
	return product, overflow
}

// Div returns floor(a/b). Division by zero returns zero; callers that care
// must check the divisor first.
func (a Amount) Div(b Amount) Amount {
	var q Amount
	q.v.Div(&a.v, &b.v)
	return q
}

// MulDiv returns floor(a*b/d) using a 512-bit intermediate product.
// overflow is true if d is zero or the quotient does not fit in 256 bits.
func (a Amount) MulDiv(b, d Amount) (q Amount, overflow bool) {
	if d.IsZero() {
		return Amount{}, true
	}
	_, overflow = q.v.MulDivOverflow(&a.v, &b.v, &d.v)
	return q, overflow
}

// Half returns floor(a/2).
func (a Amount) Half() Amount {
	var h Amount
	h.v.Rsh(&a.v, 1)
	return h
}

// Mod returns a mod b, or zero if b is zero.
func (a Amount) Mod(b Amount) Amount {
	var r Amount
	r.v.Mod(&a.v, &b.v)
	return r
}

// Comparison

// IsZero reports whether a is 0.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// Cmp returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// Eq reports whether a == b.
func (a Amount) Eq(b Amount) bool { return a.v.Eq(&b.v) }

// Lt reports whether a < b.
func (a Amount) Lt(b Amount) bool { return a.v.Lt(&b.v) }

// Gt reports whether a > b.
func (a Amount) Gt(b Amount) bool { return a.v.Gt(&b.v) }

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a.Lt(b) {
		return a
	}
	return b
}

// Conversion

// Big returns a new big.Int holding a.
func (a Amount) Big() *big.Int { return a.v.ToBig() }

// Uint64 returns a as a uint64. ok is false if a does not fit.
func (a Amount) Uint64() (x uint64, ok bool) {
	if !a.v.IsUint64() {
		return 0, false
	}
	return a.v.Uint64(), true
}

// Float64 returns an approximation of a, for metrics only.
func (a Amount) Float64() float64 {
	f, _ := new(big.Float).SetInt(a.v.ToBig()).Float64()
	return f
}

// String returns the base-10 representation.
func (a Amount) String() string { return a.v.Dec() }

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = Amount{}
		return nil
	}
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes a as a JSON string so large values survive clients
// that decode numbers as float64.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.v.Dec() + `"`), nil
}

// UnmarshalJSON accepts both a JSON string and a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	return a.UnmarshalText(bytes.Trim(data, `"`))
}

// Value implements driver.Valuer. Amounts are stored as decimal strings.
func (a Amount) Value() (driver.Value, error) {
	return a.v.Dec(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("amount: cannot scan negative value %d", v)
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("amount: cannot scan %T into Amount", src)
	}
}
