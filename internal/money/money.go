// Package money converts decimal currency strings to exact minor units and back.
//
// Amounts are held as arbitrary-precision integers of cents. Parsing keeps at
// most two fractional digits: extra digits are truncated, never rounded, so
// "1.239" parses to 123 cents. Callers that need rounding must do it before
// handing the string over.
package money

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalidAmount is returned when a string is not a plain decimal number.
var ErrInvalidAmount = errors.New("money: invalid amount")

var hundred = big.NewInt(100)

// Amount is an exact count of minor units. The zero value is 0.00.
type Amount struct {
	cents *big.Int
}

// Zero returns a zero amount.
func Zero() Amount {
	return Amount{cents: new(big.Int)}
}

// FromMinorUnits builds an amount from an integer count of cents.
func FromMinorUnits(cents int64) Amount {
	return Amount{cents: big.NewInt(cents)}
}

// Parse converts a decimal string such as "123.45" into minor units.
func Parse(value string) (Amount, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	whole, frac, hasPoint := strings.Cut(s, ".")
	if strings.Contains(frac, ".") {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if whole == "" && (!hasPoint || frac == "") {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if whole == "" {
		whole = "0"
	}
	switch {
	case len(frac) > 2:
		frac = frac[:2]
	case len(frac) < 2:
		frac += strings.Repeat("0", 2-len(frac))
	}

	cents, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	fraction, ok := new(big.Int).SetString(frac, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	cents.Mul(cents, hundred).Add(cents, fraction)
	if negative {
		cents.Neg(cents)
	}
	return Amount{cents: cents}, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(value string) Amount {
	a, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return a
}

// Canonical parses and re-formats value, e.g. "5" becomes "5.00".
func Canonical(value string) (string, error) {
	a, err := Parse(value)
	if err != nil {
		return "", err
	}
	return a.String(), nil
}

// String formats the amount as "whole.XX".
func (a Amount) String() string {
	c := a.int()
	abs := new(big.Int).Abs(c)
	quo, rem := new(big.Int).QuoRem(abs, hundred, new(big.Int))
	sign := ""
	if c.Sign() < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%s.%02d", sign, quo.String(), rem.Int64())
}

// MinorUnits returns a copy of the underlying cent count.
func (a Amount) MinorUnits() *big.Int {
	return new(big.Int).Set(a.int())
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{cents: new(big.Int).Add(a.int(), b.int())}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{cents: new(big.Int).Sub(a.int(), b.int())}
}

// MulInt multiplies the amount by an integer factor such as a quantity.
func (a Amount) MulInt(n int64) Amount {
	return Amount{cents: new(big.Int).Mul(a.int(), big.NewInt(n))}
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.int().Cmp(b.int())
}

// Equal reports whether both amounts hold the same number of cents.
func (a Amount) Equal(b Amount) bool {
	return a.Cmp(b) == 0
}

// IsZero reports whether the amount is 0.00.
func (a Amount) IsZero() bool {
	return a.int().Sign() == 0
}

// Sum adds all amounts. An empty call returns zero.
func Sum(amounts ...Amount) Amount {
	total := new(big.Int)
	for _, a := range amounts {
		total.Add(total, a.int())
	}
	return Amount{cents: total}
}

func (a Amount) int() *big.Int {
	if a.cents == nil {
		return new(big.Int)
	}
	return a.cents
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
