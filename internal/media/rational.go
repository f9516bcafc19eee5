package media

import (
	"fmt"
	"math/big"
	"strings"
)

// Rational is an exact fraction such as a frame rate (30000/1001) or a time
// base (1/48000). The zero value is invalid.
type Rational struct {
	Num int64
	Den int64
}

// NewRational returns num/den reduced to lowest terms with a positive
// denominator.
func NewRational(num, den int64) Rational {
	if den == 0 {
		return Rational{Num: num}
	}
	if den < 0 {
		num, den = -num, -den
	}
	if g := gcd(abs(num), den); g > 1 {
		num, den = num/g, den/g
	}
	return Rational{Num: num, Den: den}
}

// ParseRational accepts "30", "30000/1001", "29.97" and "30:1".
func ParseRational(s string) (Rational, error) {
	s = strings.TrimSpace(strings.Replace(s, ":", "/", 1))
	if s == "" {
		return Rational{}, fmt.Errorf("empty rational")
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Rational{}, fmt.Errorf("invalid rational %q", s)
	}
	if !r.Num().IsInt64() || !r.Denom().IsInt64() {
		return Rational{}, fmt.Errorf("rational %q out of range", s)
	}
	return NewRational(r.Num().Int64(), r.Denom().Int64()), nil
}

// Valid reports whether r is a positive, finite fraction.
func (r Rational) Valid() bool { return r.Num > 0 && r.Den > 0 }

// IsZero reports whether r is unset.
func (r Rational) IsZero() bool { return r.Num == 0 && r.Den == 0 }

// Inverse returns den/num. Used to turn a rate into its time base.
func (r Rational) Inverse() Rational { return NewRational(r.Den, r.Num) }

// Equal compares by value, so 60/2 equals 30/1.
func (r Rational) Equal(o Rational) bool {
	if !r.Valid() || !o.Valid() {
		return r == o
	}
	return new(big.Int).Mul(big.NewInt(r.Num), big.NewInt(o.Den)).Cmp(
		new(big.Int).Mul(big.NewInt(o.Num), big.NewInt(r.Den))) == 0
}

// Float64 is for display only; never use it for timestamp arithmetic.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	if r.Den == 1 {
		return fmt.Sprintf("%d", r.Num)
	}
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// RoundHalfAway divides num by den (den > 0) rounding to the nearest
// integer, ties away from zero.
func RoundHalfAway(num, den *big.Int) int64 {
	q, m := new(big.Int).QuoRem(num, den, new(big.Int))
	twice := new(big.Int).Mul(new(big.Int).Abs(m), big.NewInt(2))
	if twice.Cmp(den) >= 0 {
		if num.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	return q.Int64()
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
