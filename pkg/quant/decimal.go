package quant

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimal is an exact decimal price or quantity that may be unspecified (NaN).
// The zero value is unspecified. Arithmetic touching an unspecified operand is
// unspecified, and comparisons against it report ok == false.
type Decimal struct {
	v decimal.NullDecimal
}

var nanText = []byte("nan")

// NaN returns the unspecified value.
func NaN() Decimal { return Decimal{} }

// Zero returns a specified zero.
func Zero() Decimal { return DecimalFromInt(0) }

// NewDecimal wraps a shopspring decimal.
func NewDecimal(d decimal.Decimal) Decimal {
	return Decimal{decimal.NullDecimal{Decimal: d, Valid: true}}
}

func DecimalFromInt(i int64) Decimal { return NewDecimal(decimal.NewFromInt(i)) }

// ParseDecimal parses s; "nan" (any case) yields the unspecified value.
func ParseDecimal(s string) (Decimal, error) {
	if len(s) == 3 && bytes.EqualFold([]byte(s), nanText) {
		return NaN(), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return NaN(), fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return NewDecimal(d), nil
}

// MustDecimal is ParseDecimal for literals; it panics on error.
func MustDecimal(s string) Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ScanDecimal parses the longest decimal prefix of b, in the manner of strtod.
// n is 0 when no number was found, in which case the result is unspecified.
func ScanDecimal(b []byte) (Decimal, int) {
	if len(b) >= 3 && bytes.EqualFold(b[:3], nanText) {
		return NaN(), 3
	}
	i := 0
	if i < len(b) && (b[i] == '-' || b[i] == '+') {
		i++
	}
	digits := 0
	for ; i < len(b) && isDigit(b[i]); i++ {
		digits++
	}
	if i < len(b) && b[i] == '.' {
		i++
		for ; i < len(b) && isDigit(b[i]); i++ {
			digits++
		}
	}
	if digits == 0 {
		return NaN(), 0
	}
	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		j := i + 1
		if j < len(b) && (b[j] == '-' || b[j] == '+') {
			j++
		}
		k := j
		for ; k < len(b) && isDigit(b[k]); k++ {
		}
		if k > j && k-j <= 4 {
			i = k
		}
	}
	num := b[:i]
	if num[0] == '+' {
		num = num[1:]
	}
	d, err := decimal.NewFromString(string(num))
	if err != nil {
		return NaN(), 0
	}
	return NewDecimal(d), i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (d Decimal) IsNaN() bool { return !d.v.Valid }

// Decimal returns the underlying value and whether it is specified.
func (d Decimal) Decimal() (decimal.Decimal, bool) { return d.v.Decimal, d.v.Valid }

func (d Decimal) Add(o Decimal) Decimal {
	if d.IsNaN() || o.IsNaN() {
		return NaN()
	}
	return NewDecimal(d.v.Decimal.Add(o.v.Decimal))
}

func (d Decimal) Sub(o Decimal) Decimal {
	if d.IsNaN() || o.IsNaN() {
		return NaN()
	}
	return NewDecimal(d.v.Decimal.Sub(o.v.Decimal))
}

func (d Decimal) Mul(o Decimal) Decimal {
	if d.IsNaN() || o.IsNaN() {
		return NaN()
	}
	return NewDecimal(d.v.Decimal.Mul(o.v.Decimal))
}

// Div divides with shopspring's DivisionPrecision; division by zero is unspecified.
func (d Decimal) Div(o Decimal) Decimal {
	if d.IsNaN() || o.IsNaN() || o.v.Decimal.IsZero() {
		return NaN()
	}
	return NewDecimal(d.v.Decimal.Div(o.v.Decimal))
}

func (d Decimal) Neg() Decimal {
	if d.IsNaN() {
		return d
	}
	return NewDecimal(d.v.Decimal.Neg())
}

func (d Decimal) Abs() Decimal {
	if d.IsNaN() {
		return d
	}
	return NewDecimal(d.v.Decimal.Abs())
}

// Sign is -1, 0 or +1; unspecified values report 0.
func (d Decimal) Sign() int {
	if d.IsNaN() {
		return 0
	}
	return d.v.Decimal.Sign()
}

// IsZero reports a specified zero.
func (d Decimal) IsZero() bool { return !d.IsNaN() && d.v.Decimal.IsZero() }

// Cmp compares d and o. ok is false if either side is unspecified.
func (d Decimal) Cmp(o Decimal) (c int, ok bool) {
	if d.IsNaN() || o.IsNaN() {
		return 0, false
	}
	return d.v.Decimal.Cmp(o.v.Decimal), true
}

// Equal is true for two unspecified values or two specified equal values.
func (d Decimal) Equal(o Decimal) bool {
	if d.IsNaN() || o.IsNaN() {
		return d.IsNaN() == o.IsNaN()
	}
	return d.v.Decimal.Equal(o.v.Decimal)
}

// Min returns the smaller of two specified values, or NaN.
func Min(a, b Decimal) Decimal {
	c, ok := a.Cmp(b)
	switch {
	case !ok:
		return NaN()
	case c <= 0:
		return a
	default:
		return b
	}
}

// Truncate drops the fractional part.
func (d Decimal) Truncate() Decimal {
	if d.IsNaN() {
		return d
	}
	return NewDecimal(d.v.Decimal.Truncate(0))
}

// IsInt64 reports whether the integer part fits an int64.
func (d Decimal) IsInt64() bool {
	if d.IsNaN() {
		return false
	}
	return d.v.Decimal.BigInt().IsInt64()
}

func (d Decimal) IntPart() int64 { return d.v.Decimal.IntPart() }

func (d Decimal) String() string {
	if d.IsNaN() {
		return string(nanText)
	}
	return d.v.Decimal.String()
}

// AppendTo appends the String form of d to b.
func (d Decimal) AppendTo(b []byte) []byte {
	if d.IsNaN() {
		return append(b, nanText...)
	}
	return append(b, d.v.Decimal.String()...)
}

func (d Decimal) MarshalText() ([]byte, error) {
	return d.AppendTo(nil), nil
}

func (d *Decimal) UnmarshalText(b []byte) error {
	v, err := ParseDecimal(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
