package safe

import (
	"math"
)

// Int is any integer type with an int64 representation, e.g. quant.Time or time.Duration.
type Int interface {
	~int64
}

// Add returns a+b and panics on overflow/underflow.
func Add[T Int](a, b T) T {
	if (b > 0 && a > T(math.MaxInt64)-b) || (b < 0 && a < T(math.MinInt64)-b) {
		panic("CORE_SAFE_ADD_OVERFLOW")
	}
	return a + b
}

// Sub returns a-b and panics on overflow/underflow.
func Sub[T Int](a, b T) T {
	if (b > 0 && a < T(math.MinInt64)+b) || (b < 0 && a > T(math.MaxInt64)+b) {
		panic("CORE_SAFE_SUB_OVERFLOW")
	}
	return a - b
}

// Mul returns a*b and panics on overflow/underflow.
func Mul[T Int](a, b T) T {
	if a == 0 || b == 0 {
		return 0
	}
	r := a * b
	if r/b != a || (a == -1 && b == T(math.MinInt64)) || (b == -1 && a == T(math.MinInt64)) {
		panic("CORE_SAFE_MUL_OVERFLOW")
	}
	return r
}
